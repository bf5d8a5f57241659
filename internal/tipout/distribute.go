package tipout

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/tipout/internal/model"
)

// CardProcessingFactor задаёт долю распределённой суммы после комиссии за карту 2.5%.
const CardProcessingFactor = 0.975

// Policy описывает политику распределения чаевых.
type Policy string

const (
	// PolicyDailyPool делит дневной пул поровну между допущенными сотрудниками дня.
	PolicyDailyPool Policy = "daily_pool"
	// PolicyClockIn делит чаевые каждого платежа между допущенными сотрудниками на смене.
	PolicyClockIn Policy = "clock_in"
)

// Policies перечисляет поддерживаемые политики в порядке вывода.
var Policies = []Policy{PolicyDailyPool, PolicyClockIn}

// Title возвращает заголовок политики для отчётов.
func (p Policy) Title() string {
	switch p {
	case PolicyDailyPool:
		return "Daily Pool Tip Report"
	case PolicyClockIn:
		return "Clock-In Tip Report"
	default:
		return string(p)
	}
}

// Contribution описывает вклад одного дня или платежа в итог сотрудника.
type Contribution struct {
	// Key содержит дату для дневного пула либо "payment:<id>" или "shift:<id>" для распределения по сменам.
	Key          string
	TeamMemberID string
	Record       model.AllocationRecord
}

func allocation(share float64) model.AllocationRecord {
	return model.AllocationRecord{
		TipOutAllocated:                    share,
		TipOutAllocatedAfterCardProcessing: share * CardProcessingFactor,
	}
}

// DistributeDailyPool распределяет дневные пулы поровну, без учёта часов.
// Чаевые недопущенных сотрудников попадают в пул, но доли они не получают.
func DistributeDailyPool(bucket *DailyBucket) []Contribution {
	var out []Contribution

	for _, date := range bucket.Dates() {
		members := bucket.Members(date)
		ids := sortedIDs(members)

		var pool int64
		var eligible []string
		for _, id := range ids {
			rec := members[id]
			pool += rec.DeclaredCashTips + rec.CardTips
			if rec.Eligible && rec.Hours > 0 {
				eligible = append(eligible, id)
			}

			out = append(out, Contribution{
				Key:          date,
				TeamMemberID: id,
				Record: model.AllocationRecord{
					Hours:            rec.Hours,
					DeclaredCashTips: float64(rec.DeclaredCashTips),
					CardTips:         float64(rec.CardTips),
				},
			})
		}

		if len(eligible) == 0 {
			continue
		}

		share := float64(pool) / float64(len(eligible))
		for _, id := range eligible {
			out = append(out, Contribution{Key: date, TeamMemberID: id, Record: allocation(share)})
		}
	}

	return out
}

// ClockOutSimulation обрезает смены одного сотрудника до локального часа CutoffHour.
type ClockOutSimulation struct {
	TeamMemberID string
	CutoffHour   int
}

// Validate проверяет параметры симуляции.
func (s *ClockOutSimulation) Validate() error {
	if s == nil {
		return nil
	}
	if s.TeamMemberID == "" {
		return fmt.Errorf("simulation requires a team member id")
	}
	if s.CutoffHour < 0 || s.CutoffHour > 23 {
		return fmt.Errorf("simulation cutoff hour %d out of range", s.CutoffHour)
	}
	return nil
}

type clockSpan struct {
	memberID string
	start    time.Time
	end      time.Time
	eligible bool
}

// ClockInDistributor делит чаевые платежа между сотрудниками, отмеченными на смене в момент оплаты.
type ClockInDistributor struct {
	gratuity GratuityResolver
	loc      *time.Location
}

// NewClockInDistributor создаёт распределитель для локальной зоны loc.
func NewClockInDistributor(gratuity GratuityResolver, loc *time.Location) *ClockInDistributor {
	return &ClockInDistributor{gratuity: gratuity, loc: loc}
}

// Distribute возвращает вклады смен (часы и наличные) и платежей (доли чаевых).
// Платёж, в момент которого нет ни одного допущенного сотрудника на смене, отбрасывается.
func (d *ClockInDistributor) Distribute(ctx context.Context, payments []model.Payment, shifts []model.Shift, sim *ClockOutSimulation) []Contribution {
	var out []Contribution

	spans := make([]clockSpan, 0, len(shifts))
	for _, s := range shifts {
		if s.TeamMemberID == "" {
			continue
		}

		start := s.Start.In(d.loc)
		end := d.simulatedEnd(s, sim)

		spans = append(spans, clockSpan{
			memberID: s.TeamMemberID,
			start:    start,
			end:      end,
			eligible: s.TipEligible,
		})

		out = append(out, Contribution{
			Key:          "shift:" + s.ID,
			TeamMemberID: s.TeamMemberID,
			Record: model.AllocationRecord{
				Hours:            s.WorkedHoursUntil(end),
				DeclaredCashTips: float64(s.DeclaredCashTips),
			},
		})
	}

	for _, p := range payments {
		if !p.Completed() {
			continue
		}

		var auto int64
		if d.gratuity != nil && p.OrderID != "" {
			auto = d.gratuity.AutoGratuity(ctx, p.OrderID)
		}
		total := p.TipCents + auto
		if total == 0 {
			continue
		}

		at := p.CreatedAt.In(d.loc)
		var matched []string
		seen := make(map[string]struct{})
		for _, sp := range spans {
			if !sp.eligible || at.Before(sp.start) || at.After(sp.end) {
				continue
			}
			// Смежные смены одного сотрудника дают ему одну долю.
			if _, ok := seen[sp.memberID]; ok {
				continue
			}
			seen[sp.memberID] = struct{}{}
			matched = append(matched, sp.memberID)
		}
		if len(matched) == 0 {
			continue
		}

		n := float64(len(matched))
		share := float64(total) / n
		for _, id := range matched {
			rec := allocation(share)
			rec.CardTips = float64(p.TipCents)/n + float64(auto)/n
			out = append(out, Contribution{Key: "payment:" + p.ID, TeamMemberID: id, Record: rec})
		}
	}

	return out
}

func (d *ClockInDistributor) simulatedEnd(s model.Shift, sim *ClockOutSimulation) time.Time {
	end := s.End.In(d.loc)
	if sim == nil || sim.TeamMemberID != s.TeamMemberID || end.Hour() <= sim.CutoffHour {
		return end
	}

	cut := time.Date(end.Year(), end.Month(), end.Day(), sim.CutoffHour, 0, 0, 0, d.loc)
	if cut.Before(s.Start) {
		return s.Start.In(d.loc)
	}
	return cut
}
