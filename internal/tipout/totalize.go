package tipout

import (
	"sort"

	"github.com/mmeshcher/tipout/internal/model"
)

// Totals содержит итоговые записи по сотрудникам.
type Totals map[string]model.AllocationRecord

// Totalize суммирует вклады в одну запись на сотрудника.
func Totalize(contribs []Contribution) Totals {
	totals := make(Totals)
	for _, c := range contribs {
		rec := totals[c.TeamMemberID]
		rec.Add(c.Record)
		totals[c.TeamMemberID] = rec
	}
	return totals
}

// Combine складывает итоги нескольких точек.
func Combine(parts ...Totals) Totals {
	combined := make(Totals)
	for _, part := range parts {
		for id, rec := range part {
			acc := combined[id]
			acc.Add(rec)
			combined[id] = acc
		}
	}
	return combined
}

// Sum возвращает сумму всех записей.
func (t Totals) Sum() model.AllocationRecord {
	var sum model.AllocationRecord
	for _, rec := range t {
		sum.Add(rec)
	}
	return sum
}

// IDs возвращает идентификаторы сотрудников по возрастанию.
func (t Totals) IDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ByKey группирует вклады по ключу дня или платежа.
func ByKey(contribs []Contribution) map[string]Totals {
	out := make(map[string]Totals)
	for _, c := range contribs {
		t, ok := out[c.Key]
		if !ok {
			t = make(Totals)
			out[c.Key] = t
		}
		rec := t[c.TeamMemberID]
		rec.Add(c.Record)
		t[c.TeamMemberID] = rec
	}
	return out
}
