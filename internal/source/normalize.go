package source

import (
	"time"

	"github.com/mmeshcher/tipout/internal/model"
	"github.com/mmeshcher/tipout/internal/square"
)

func parseInstant(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func amount(m *square.Money) int64 {
	if m == nil {
		return 0
	}
	return m.Amount
}

// NormalizeTimecard приводит смену Square к model.Shift.
// Смены без сотрудника, начала или окончания не участвуют в расчёте (ok == false).
// Перерывы без окончания пропускаются.
func NormalizeTimecard(tc square.Timecard) (model.Shift, bool) {
	if tc.TeamMemberID == "" {
		return model.Shift{}, false
	}
	start, ok := parseInstant(tc.StartAt)
	if !ok {
		return model.Shift{}, false
	}
	end, ok := parseInstant(tc.EndAt)
	if !ok {
		return model.Shift{}, false
	}

	shift := model.Shift{
		ID:               tc.ID,
		TeamMemberID:     tc.TeamMemberID,
		LocationID:       tc.LocationID,
		Start:            start,
		End:              end,
		DeclaredCashTips: amount(tc.DeclaredCashTipMoney),
	}
	if tc.Wage != nil && tc.Wage.TipEligible != nil {
		shift.TipEligible = *tc.Wage.TipEligible
	}

	for _, b := range tc.Breaks {
		bs, okStart := parseInstant(b.StartAt)
		be, okEnd := parseInstant(b.EndAt)
		if !okStart || !okEnd {
			continue
		}
		shift.Breaks = append(shift.Breaks, model.Break{Start: bs, End: be})
	}

	return shift, true
}

// NormalizePayment приводит платёж Square к model.Payment.
// Платёж без времени создания нельзя отнести ко дню (ok == false).
// Платёж без сотрудника сохраняется: его чаевые учитываются при распределении по сменам.
func NormalizePayment(p square.Payment) (model.Payment, bool) {
	created, ok := parseInstant(p.CreatedAt)
	if !ok {
		return model.Payment{}, false
	}
	return model.Payment{
		ID:           p.ID,
		TeamMemberID: p.TeamMemberID,
		LocationID:   p.LocationID,
		OrderID:      p.OrderID,
		Status:       model.PaymentStatus(p.Status),
		CreatedAt:    created,
		TipCents:     amount(p.TipMoney),
	}, true
}

// NormalizeServiceCharges приводит сборы заказа к model.ServiceCharge.
func NormalizeServiceCharges(o square.Order) []model.ServiceCharge {
	charges := make([]model.ServiceCharge, 0, len(o.ServiceCharges))
	for _, sc := range o.ServiceCharges {
		charges = append(charges, model.ServiceCharge{
			OrderID:      o.ID,
			Name:         sc.Name,
			Type:         model.ServiceChargeType(sc.Type),
			AppliedCents: amount(sc.AppliedMoney),
		})
	}
	return charges
}

// NormalizeLocation приводит точку Square к model.Location.
func NormalizeLocation(l square.Location) model.Location {
	return model.Location{ID: l.ID, Name: l.Name, Timezone: l.Timezone}
}

// NormalizeTeamMember приводит сотрудника Square к model.TeamMember.
func NormalizeTeamMember(m square.TeamMember) model.TeamMember {
	return model.TeamMember{ID: m.ID, GivenName: m.GivenName, FamilyName: m.FamilyName}
}
