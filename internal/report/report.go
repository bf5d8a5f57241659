// Package report отображает результат расчёта в текстовом, JSON и XLSX форматах.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/tipout/internal/model"
	"github.com/mmeshcher/tipout/internal/service"
	"github.com/mmeshcher/tipout/internal/tipout"
)

// Format описывает формат вывода отчёта.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat разбирает имя формата.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Write выводит отчёт в формате f.
func Write(w io.Writer, f Format, r *service.Report) error {
	switch f {
	case FormatText:
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatXLSX:
		return WriteXLSX(w, r)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// Dollars переводит центы в доллары с округлением до цента.
func Dollars(cents float64) decimal.Decimal {
	return decimal.NewFromFloat(cents).Shift(-2).Round(2)
}

// Row описывает строку отчёта по сотруднику в долларах.
type Row struct {
	TeamMemberID        string          `json:"team_member_id"`
	Name                string          `json:"name"`
	Hours               decimal.Decimal `json:"hours"`
	DeclaredCashTips    decimal.Decimal `json:"declared_cash_tips"`
	CardTips            decimal.Decimal `json:"card_tips"`
	Allocated           decimal.Decimal `json:"tip_out_allocated"`
	AfterCardProcessing decimal.Decimal `json:"tip_out_allocated_after_card_processing"`
}

func newRow(id, name string, rec model.AllocationRecord) Row {
	return Row{
		TeamMemberID:        id,
		Name:                name,
		Hours:               decimal.NewFromFloat(rec.Hours).Round(2),
		DeclaredCashTips:    Dollars(rec.DeclaredCashTips),
		CardTips:            Dollars(rec.CardTips),
		Allocated:           Dollars(rec.TipOutAllocated),
		AfterCardProcessing: Dollars(rec.TipOutAllocatedAfterCardProcessing),
	}
}

// LocationRows возвращает строки точки по убыванию распределённой суммы.
func LocationRows(totals tipout.Totals, r *service.Report) []Row {
	rows := rowsOf(totals, r)
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Allocated.Cmp(rows[j].Allocated); c != 0 {
			return c > 0
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// CombinedRows возвращает строки сводного отчёта по имени сотрудника.
func CombinedRows(totals tipout.Totals, r *service.Report) []Row {
	rows := rowsOf(totals, r)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].TeamMemberID < rows[j].TeamMemberID
	})
	return rows
}

func rowsOf(totals tipout.Totals, r *service.Report) []Row {
	rows := make([]Row, 0, len(totals))
	for _, id := range totals.IDs() {
		rows = append(rows, newRow(id, r.Name(id), totals[id]))
	}
	return rows
}

// TotalRow возвращает итоговую строку.
func TotalRow(totals tipout.Totals) Row {
	return newRow("", "TOTALS", totals.Sum())
}
