// Package tipout реализует агрегацию смен и платежей и распределение чаевых.
package tipout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout задаёт формат календарной даты в отчётах и фильтрах.
const DateLayout = "2006-01-02"

// ErrInvalidDateFormat возвращается, если дата не разбирается как YYYY-MM-DD.
var ErrInvalidDateFormat = errors.New("invalid date format")

// Window описывает полуоткрытый интервал [Start, End) в локальной зоне.
type Window struct {
	Start time.Time
	End   time.Time
}

// WeekWindow возвращает семидневное окно, содержащее target.
// Пустой target означает текущую дату now. Окно начинается в полночь дня weekStart.
func WeekWindow(target string, weekStart time.Weekday, loc *time.Location, now time.Time) (Window, error) {
	day, err := resolveDay(target, loc, now)
	if err != nil {
		return Window{}, err
	}

	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	start := day.AddDate(0, 0, -offset)

	return Window{Start: start, End: start.AddDate(0, 0, 7)}, nil
}

// CustomWindow возвращает окно от полуночи from до полуночи дня, следующего за to.
func CustomWindow(from, to string, loc *time.Location) (Window, error) {
	start, err := ParseLocalDate(from, loc)
	if err != nil {
		return Window{}, err
	}
	last, err := ParseLocalDate(to, loc)
	if err != nil {
		return Window{}, err
	}
	if last.Before(start) {
		return Window{}, fmt.Errorf("window end %s before start %s", to, from)
	}
	return Window{Start: start, End: last.AddDate(0, 0, 1)}, nil
}

// ParseLocalDate разбирает дату YYYY-MM-DD как полночь в зоне loc.
func ParseLocalDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	return t, nil
}

func resolveDay(target string, loc *time.Location, now time.Time) (time.Time, error) {
	if strings.TrimSpace(target) != "" {
		return ParseLocalDate(target, loc)
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc), nil
}

// UTC возвращает границы окна в формате RFC 3339 с обозначением UTC.
func (w Window) UTC() (string, string) {
	return w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339)
}

// Contains сообщает, попадает ли момент t в окно.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Days возвращает локальные даты окна.
func (w Window) Days() []string {
	var days []string
	for d := w.Start; d.Before(w.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}

// String возвращает окно интервалом ISO 8601 в UTC.
func (w Window) String() string {
	start, end := w.UTC()
	return start + "/" + end
}

// LocalDate возвращает календарную дату момента t в зоне loc.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

// ParseWeekStart разбирает день начала недели: имя дня или число 0..6, где 0 означает понедельник.
func ParseWeekStart(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Monday, nil
	}
	if d, ok := weekdayNames[s]; ok {
		return d, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("invalid week start %q", s)
	}
	return MondayIndexed(n), nil
}

// MondayIndexed переводит номер дня с понедельника (0..6) в time.Weekday.
func MondayIndexed(n int) time.Weekday {
	return time.Weekday((n + 1) % 7)
}
