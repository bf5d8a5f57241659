package tipout

import (
	"time"

	"github.com/mmeshcher/tipout/internal/model"
)

// ExcludePaymentDates убирает платежи, локальная дата которых входит в ignore.
func ExcludePaymentDates(payments []model.Payment, ignore []string, loc *time.Location) []model.Payment {
	if len(ignore) == 0 {
		return payments
	}

	skip := make(map[string]struct{}, len(ignore))
	for _, d := range ignore {
		skip[d] = struct{}{}
	}

	kept := make([]model.Payment, 0, len(payments))
	for _, p := range payments {
		if _, ok := skip[LocalDate(p.CreatedAt, loc)]; ok {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
