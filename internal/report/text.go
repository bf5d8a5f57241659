package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mmeshcher/tipout/internal/service"
	"github.com/mmeshcher/tipout/internal/tipout"
)

const (
	nameWidth  = 24
	tableWidth = nameWidth + 9 + 4*14
)

// WriteText выводит отчёт таблицами фиксированной ширины: по точкам и сводную, для каждой политики.
func WriteText(w io.Writer, r *service.Report) error {
	bw := bufio.NewWriter(w)
	start, end := r.Window.UTC()

	for _, p := range tipout.Policies {
		fmt.Fprintf(bw, "%s\n", p.Title())
		fmt.Fprintf(bw, "Window: %s to %s (%s)\n", r.Window.Start.Format(tipout.DateLayout),
			r.Window.End.AddDate(0, 0, -1).Format(tipout.DateLayout), start+" - "+end)
		fmt.Fprintln(bw, strings.Repeat("=", tableWidth))

		for _, lr := range r.Locations {
			fmt.Fprintf(bw, "\nLocation: %s (%s)\n", lr.Location.Name, lr.Location.ID)
			writeTable(bw, LocationRows(lr.Totals[p], r), TotalRow(lr.Totals[p]))
		}

		if len(r.Locations) > 1 {
			fmt.Fprintf(bw, "\nAll Locations Combined\n")
			writeTable(bw, CombinedRows(r.Combined[p], r), TotalRow(r.Combined[p]))
		}
		fmt.Fprintln(bw)
	}

	for _, lr := range r.Locations {
		if len(lr.Hourly) == 0 {
			continue
		}
		fmt.Fprintf(bw, "Hourly Tips: %s (%s)\n", lr.Location.Name, lr.Location.ID)
		fmt.Fprintf(bw, "%-17s %13s %13s %13s\n", "Hour", "Card Tips", "Auto Grat.", "Total")
		for _, h := range lr.Hourly {
			fmt.Fprintf(bw, "%-17s %13s %13s %13s\n", h.Hour.Format("2006-01-02 15:04"),
				money(Dollars(float64(h.CardTips)).StringFixed(2)),
				money(Dollars(float64(h.AutoGratuity)).StringFixed(2)),
				money(Dollars(float64(h.Total())).StringFixed(2)))
		}
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

func writeTable(w io.Writer, rows []Row, total Row) {
	fmt.Fprintf(w, "%-*s %8s %13s %13s %13s %13s\n", nameWidth,
		"Team Member", "Hours", "Cash Tips", "Card Tips", "Tip Out", "After Fee")
	fmt.Fprintln(w, strings.Repeat("-", tableWidth))
	for _, row := range rows {
		writeRow(w, row)
	}
	fmt.Fprintln(w, strings.Repeat("-", tableWidth))
	writeRow(w, total)
}

func writeRow(w io.Writer, row Row) {
	fmt.Fprintf(w, "%-*s %8s %13s %13s %13s %13s\n", nameWidth, truncate(row.Name, nameWidth),
		row.Hours.StringFixed(2),
		money(row.DeclaredCashTips.StringFixed(2)),
		money(row.CardTips.StringFixed(2)),
		money(row.Allocated.StringFixed(2)),
		money(row.AfterCardProcessing.StringFixed(2)),
	)
}

func money(s string) string {
	if strings.HasPrefix(s, "-") {
		return "-$" + s[1:]
	}
	return "$" + s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
