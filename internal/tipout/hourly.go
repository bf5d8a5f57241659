package tipout

import (
	"context"
	"sort"
	"time"

	"github.com/mmeshcher/tipout/internal/model"
)

// HourlyTips содержит чаевые за локальный час.
type HourlyTips struct {
	Hour         time.Time `json:"hour"`
	CardTips     int64     `json:"card_tips"`
	AutoGratuity int64     `json:"auto_gratuity"`
}

// Total возвращает сумму карточных чаевых и автоматических сборов.
func (h HourlyTips) Total() int64 {
	return h.CardTips + h.AutoGratuity
}

// AggregateByHour группирует завершённые платежи по локальному часу, по возрастанию.
func AggregateByHour(ctx context.Context, payments []model.Payment, gratuity GratuityResolver, loc *time.Location) []HourlyTips {
	byHour := make(map[time.Time]*HourlyTips)

	for _, p := range payments {
		if !p.Completed() || p.CreatedAt.IsZero() {
			continue
		}

		local := p.CreatedAt.In(loc)
		hour := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)

		h, ok := byHour[hour]
		if !ok {
			h = &HourlyTips{Hour: hour}
			byHour[hour] = h
		}
		h.CardTips += p.TipCents
		if gratuity != nil && p.OrderID != "" {
			h.AutoGratuity += gratuity.AutoGratuity(ctx, p.OrderID)
		}
	}

	out := make([]HourlyTips, 0, len(byHour))
	for _, h := range byHour {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out
}
