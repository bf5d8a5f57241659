package tipout

import (
	"sort"

	"github.com/mmeshcher/tipout/internal/model"
)

// DailyBucket группирует дневные суммы по локальной дате и сотруднику.
type DailyBucket struct {
	days map[string]map[string]*model.AggregateRecord
}

// NewDailyBucket создаёт пустую корзину.
func NewDailyBucket() *DailyBucket {
	return &DailyBucket{days: make(map[string]map[string]*model.AggregateRecord)}
}

// Record возвращает запись (date, member), создавая нулевую при первом обращении.
func (b *DailyBucket) Record(date, memberID string) *model.AggregateRecord {
	members, ok := b.days[date]
	if !ok {
		members = make(map[string]*model.AggregateRecord)
		b.days[date] = members
	}
	rec, ok := members[memberID]
	if !ok {
		rec = &model.AggregateRecord{}
		members[memberID] = rec
	}
	return rec
}

// Dates возвращает даты корзины по возрастанию.
func (b *DailyBucket) Dates() []string {
	dates := make([]string, 0, len(b.days))
	for d := range b.days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Members возвращает копию записей за дату.
func (b *DailyBucket) Members(date string) map[string]model.AggregateRecord {
	members := b.days[date]
	out := make(map[string]model.AggregateRecord, len(members))
	for id, rec := range members {
		out[id] = *rec
	}
	return out
}

// Len возвращает количество дат в корзине.
func (b *DailyBucket) Len() int {
	return len(b.days)
}

func sortedIDs(m map[string]model.AggregateRecord) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
