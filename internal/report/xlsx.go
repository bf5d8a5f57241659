package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/tipout/internal/service"
	"github.com/mmeshcher/tipout/internal/tipout"
)

const hourlySheet = "Hourly"

var moneyFormat = "$#,##0.00"

// SheetName возвращает имя листа политики.
func SheetName(p tipout.Policy) string {
	switch p {
	case tipout.PolicyDailyPool:
		return "Daily Pool"
	case tipout.PolicyClockIn:
		return "Clock-In"
	default:
		return string(p)
	}
}

// WriteXLSX выводит отчёт книгой Excel: по листу на политику и лист почасовых чаевых.
func WriteXLSX(w io.Writer, r *service.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newSheetStyles(f)
	if err != nil {
		return err
	}

	for i, p := range tipout.Policies {
		name := SheetName(p)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writePolicySheet(f, name, p, r, styles); err != nil {
			return err
		}
	}

	if hasHourly(r) {
		if _, err := f.NewSheet(hourlySheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", hourlySheet, err)
		}
		if err := writeHourlySheet(f, r, styles); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	header int
	money  int
	total  int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	if s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFormat}); err != nil {
		return s, fmt.Errorf("money style: %w", err)
	}
	if s.total, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFormat}); err != nil {
		return s, fmt.Errorf("total style: %w", err)
	}
	return s, nil
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	err   error
}

func (sw *sheetWriter) put(values []any) {
	if sw.err != nil {
		return
	}
	sw.row++
	cell, err := excelize.CoordinatesToCellName(1, sw.row)
	if err != nil {
		sw.err = err
		return
	}
	if err := sw.f.SetSheetRow(sw.sheet, cell, &values); err != nil {
		sw.err = fmt.Errorf("write row %d of %s: %w", sw.row, sw.sheet, err)
	}
}

// style применяет стиль к столбцам from..to последней записанной строки.
func (sw *sheetWriter) style(from, to, style int) {
	if sw.err != nil {
		return
	}
	first, err := excelize.CoordinatesToCellName(from, sw.row)
	if err != nil {
		sw.err = err
		return
	}
	last, err := excelize.CoordinatesToCellName(to, sw.row)
	if err != nil {
		sw.err = err
		return
	}
	if err := sw.f.SetCellStyle(sw.sheet, first, last, style); err != nil {
		sw.err = fmt.Errorf("style row %d of %s: %w", sw.row, sw.sheet, err)
	}
}

func (sw *sheetWriter) skip() {
	sw.row++
}

func rowValues(section string, row Row) []any {
	return []any{
		section,
		row.Name,
		row.Hours.InexactFloat64(),
		row.DeclaredCashTips.InexactFloat64(),
		row.CardTips.InexactFloat64(),
		row.Allocated.InexactFloat64(),
		row.AfterCardProcessing.InexactFloat64(),
	}
}

func writePolicySheet(f *excelize.File, name string, p tipout.Policy, r *service.Report, styles sheetStyles) error {
	sw := &sheetWriter{f: f, sheet: name}
	start, end := r.Window.UTC()

	sw.put([]any{p.Title()})
	sw.style(1, 1, styles.header)
	sw.put([]any{"Window", start, end})
	sw.skip()
	sw.put([]any{"Location", "Team Member", "Hours", "Cash Tips", "Card Tips", "Tip Out", "After Fee"})
	sw.style(1, 7, styles.header)

	table := func(section string, rows []Row, total Row) {
		for _, row := range rows {
			sw.put(rowValues(section, row))
			sw.style(4, 7, styles.money)
		}
		sw.put(rowValues(section, total))
		sw.style(1, 3, styles.header)
		sw.style(4, 7, styles.total)
	}

	for _, lr := range r.Locations {
		table(lr.Location.Name, LocationRows(lr.Totals[p], r), TotalRow(lr.Totals[p]))
	}
	if len(r.Locations) > 1 {
		table("All Locations", CombinedRows(r.Combined[p], r), TotalRow(r.Combined[p]))
	}
	if sw.err != nil {
		return sw.err
	}

	if err := f.SetColWidth(name, "A", "B", 24); err != nil {
		return fmt.Errorf("size columns of %s: %w", name, err)
	}
	return nil
}

func writeHourlySheet(f *excelize.File, r *service.Report, styles sheetStyles) error {
	sw := &sheetWriter{f: f, sheet: hourlySheet}
	sw.put([]any{"Location", "Hour", "Card Tips", "Auto Gratuity", "Total"})
	sw.style(1, 5, styles.header)

	for _, lr := range r.Locations {
		for _, h := range lr.Hourly {
			sw.put([]any{
				lr.Location.Name,
				h.Hour.Format("2006-01-02 15:04"),
				Dollars(float64(h.CardTips)).InexactFloat64(),
				Dollars(float64(h.AutoGratuity)).InexactFloat64(),
				Dollars(float64(h.Total())).InexactFloat64(),
			})
			sw.style(3, 5, styles.money)
		}
	}
	if sw.err != nil {
		return sw.err
	}

	return f.SetColWidth(hourlySheet, "A", "B", 20)
}

func hasHourly(r *service.Report) bool {
	for _, lr := range r.Locations {
		if len(lr.Hourly) > 0 {
			return true
		}
	}
	return false
}
