// Package model содержит доменные сущности сервиса расчёта чаевых.
package model

import "time"

// Location описывает торговую точку.
type Location struct {
	ID       string
	Name     string
	Timezone string
}

// TeamMember описывает сотрудника точки.
type TeamMember struct {
	ID         string
	GivenName  string
	FamilyName string
}

// DisplayName возвращает имя сотрудника для отчётов.
func (m TeamMember) DisplayName() string {
	switch {
	case m.GivenName == "":
		return m.FamilyName
	case m.FamilyName == "":
		return m.GivenName
	}
	return m.GivenName + " " + m.FamilyName
}

// Break описывает перерыв внутри смены.
type Break struct {
	Start time.Time
	End   time.Time
}

// Shift описывает отработанную смену сотрудника.
type Shift struct {
	ID               string
	TeamMemberID     string
	LocationID       string
	Start            time.Time
	End              time.Time
	Breaks           []Break
	DeclaredCashTips int64
	TipEligible      bool
}

// WorkedHours возвращает отработанные часы за вычетом перерывов.
func (s Shift) WorkedHours() float64 {
	return s.WorkedHoursUntil(s.End)
}

// WorkedHoursUntil возвращает часы смены, если бы она закончилась в end.
// Перерывы обрезаются по границам [Start, end]; пересекающиеся перерывы суммируются.
func (s Shift) WorkedHoursUntil(end time.Time) float64 {
	total := end.Sub(s.Start)
	for _, b := range s.Breaks {
		bs, be := b.Start, b.End
		if end.Before(s.End) {
			if !bs.Before(end) {
				continue
			}
			if be.After(end) {
				be = end
			}
		}
		total -= be.Sub(bs)
	}
	return total.Hours()
}

// PaymentStatus описывает статус платежа.
type PaymentStatus string

const (
	PaymentStatusApproved  PaymentStatus = "APPROVED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusCanceled  PaymentStatus = "CANCELED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment описывает платёж покупателя.
type Payment struct {
	ID           string
	TeamMemberID string
	LocationID   string
	OrderID      string
	Status       PaymentStatus
	CreatedAt    time.Time
	TipCents     int64
}

// Completed сообщает, участвует ли платёж в расчёте.
func (p Payment) Completed() bool {
	return p.Status == PaymentStatusCompleted
}

// ServiceChargeType описывает тип сервисного сбора заказа.
type ServiceChargeType string

const (
	ServiceChargeAutoGratuity ServiceChargeType = "AUTO_GRATUITY"
	ServiceChargeCustom       ServiceChargeType = "CUSTOM"
)

// ServiceCharge описывает сервисный сбор, применённый к заказу.
type ServiceCharge struct {
	OrderID      string
	Name         string
	Type         ServiceChargeType
	AppliedCents int64
}

// AggregateRecord содержит дневные суммы сотрудника.
type AggregateRecord struct {
	Hours            float64
	DeclaredCashTips int64
	CardTips         int64
	Eligible         bool
}

// AllocationRecord содержит итоговые суммы сотрудника за окно отчёта в центах.
type AllocationRecord struct {
	Hours                              float64 `json:"hours"`
	DeclaredCashTips                   float64 `json:"declared_cash_tips"`
	CardTips                           float64 `json:"card_tips"`
	TipOutAllocated                    float64 `json:"tip_out_allocated"`
	TipOutAllocatedAfterCardProcessing float64 `json:"tip_out_allocated_after_card_processing"`
}

// Add прибавляет все поля другой записи.
func (r *AllocationRecord) Add(o AllocationRecord) {
	r.Hours += o.Hours
	r.DeclaredCashTips += o.DeclaredCashTips
	r.CardTips += o.CardTips
	r.TipOutAllocated += o.TipOutAllocated
	r.TipOutAllocatedAfterCardProcessing += o.TipOutAllocatedAfterCardProcessing
}
