package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/tipout/internal/service"
	"github.com/mmeshcher/tipout/internal/tipout"
)

// Document описывает JSON-представление отчёта.
type Document struct {
	RunID       string           `json:"run_id"`
	WindowStart string           `json:"window_start"`
	WindowEnd   string           `json:"window_end"`
	GeneratedAt time.Time        `json:"generated_at"`
	Policies    []PolicyDocument `json:"policies"`
	Hourly      []HourlyDocument `json:"hourly,omitempty"`
}

// PolicyDocument содержит итоги одной политики.
type PolicyDocument struct {
	Policy    tipout.Policy   `json:"policy"`
	Title     string          `json:"title"`
	Locations []TableDocument `json:"locations"`
	Combined  TableDocument   `json:"combined"`
}

// TableDocument содержит строки и итог одной таблицы.
type TableDocument struct {
	LocationID string `json:"location_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Staff      []Row  `json:"staff"`
	Totals     Row    `json:"totals"`
}

// HourlyDocument содержит чаевые точки за час.
type HourlyDocument struct {
	LocationID   string          `json:"location_id"`
	Hour         time.Time       `json:"hour"`
	CardTips     decimal.Decimal `json:"card_tips"`
	AutoGratuity decimal.Decimal `json:"auto_gratuity"`
	Total        decimal.Decimal `json:"total"`
}

// NewDocument строит JSON-представление отчёта.
func NewDocument(r *service.Report) Document {
	start, end := r.Window.UTC()
	doc := Document{
		RunID:       r.RunID.String(),
		WindowStart: start,
		WindowEnd:   end,
		GeneratedAt: r.GeneratedAt,
	}

	for _, p := range tipout.Policies {
		pd := PolicyDocument{
			Policy: p,
			Title:  p.Title(),
			Combined: TableDocument{
				Staff:  CombinedRows(r.Combined[p], r),
				Totals: TotalRow(r.Combined[p]),
			},
		}
		for _, lr := range r.Locations {
			pd.Locations = append(pd.Locations, TableDocument{
				LocationID: lr.Location.ID,
				Name:       lr.Location.Name,
				Staff:      LocationRows(lr.Totals[p], r),
				Totals:     TotalRow(lr.Totals[p]),
			})
		}
		doc.Policies = append(doc.Policies, pd)
	}

	for _, lr := range r.Locations {
		for _, h := range lr.Hourly {
			doc.Hourly = append(doc.Hourly, HourlyDocument{
				LocationID:   lr.Location.ID,
				Hour:         h.Hour,
				CardTips:     Dollars(float64(h.CardTips)),
				AutoGratuity: Dollars(float64(h.AutoGratuity)),
				Total:        Dollars(float64(h.Total())),
			})
		}
	}

	return doc
}

// WriteJSON выводит отчёт в JSON.
func WriteJSON(w io.Writer, r *service.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(r))
}
