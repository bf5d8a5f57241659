package tipout

import (
	"context"
	"time"

	"github.com/mmeshcher/tipout/internal/model"
)

// Aggregator строит DailyBucket по сменам и платежам.
type Aggregator struct {
	gratuity GratuityResolver
	loc      *time.Location
}

// NewAggregator создаёт агрегатор для локальной зоны loc.
func NewAggregator(gratuity GratuityResolver, loc *time.Location) *Aggregator {
	return &Aggregator{gratuity: gratuity, loc: loc}
}

// Aggregate раскладывает смены по дате начала, а платежи по дате создания.
// Сотрудник считается допущенным к чаевым в день, если допущена хотя бы одна его смена.
// Платежи без сотрудника пропускаются без запроса сборов.
func (a *Aggregator) Aggregate(ctx context.Context, shifts []model.Shift, payments []model.Payment) *DailyBucket {
	bucket := NewDailyBucket()

	for _, s := range shifts {
		if s.TeamMemberID == "" {
			continue
		}
		rec := bucket.Record(LocalDate(s.Start, a.loc), s.TeamMemberID)
		rec.Hours += s.WorkedHours()
		rec.DeclaredCashTips += s.DeclaredCashTips
		rec.Eligible = rec.Eligible || s.TipEligible
	}

	for _, p := range payments {
		if !p.Completed() || p.TeamMemberID == "" {
			continue
		}

		amount := p.TipCents + a.autoGratuity(ctx, p.OrderID)
		if amount == 0 {
			continue
		}

		rec := bucket.Record(LocalDate(p.CreatedAt, a.loc), p.TeamMemberID)
		rec.CardTips += amount
	}

	return bucket
}

func (a *Aggregator) autoGratuity(ctx context.Context, orderID string) int64 {
	if a.gratuity == nil || orderID == "" {
		return 0
	}
	return a.gratuity.AutoGratuity(ctx, orderID)
}
