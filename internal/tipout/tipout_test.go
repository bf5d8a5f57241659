package tipout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/tipout/internal/model"
)

const epsilon = 1e-9

type stubGratuity struct {
	amounts map[string]int64
	calls   []string
}

func (s *stubGratuity) AutoGratuity(ctx context.Context, orderID string) int64 {
	s.calls = append(s.calls, orderID)
	return s.amounts[orderID]
}

func at(t *testing.T, loc *time.Location, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func shift(id, member string, start, end time.Time, cash int64, eligible bool) model.Shift {
	return model.Shift{
		ID:               id,
		TeamMemberID:     member,
		Start:            start,
		End:              end,
		DeclaredCashTips: cash,
		TipEligible:      eligible,
	}
}

func payment(id, member string, created time.Time, tip int64) model.Payment {
	return model.Payment{
		ID:           id,
		TeamMemberID: member,
		Status:       model.PaymentStatusCompleted,
		CreatedAt:    created,
		TipCents:     tip,
	}
}

func TestAggregate_DateAttribution(t *testing.T) {
	loc := newYork(t)
	agg := NewAggregator(&stubGratuity{}, loc)

	shifts := []model.Shift{
		// 23:30-23:59 local, which is already the next day in UTC.
		shift("s1", "A", at(t, loc, "2025-01-10 23:30"), at(t, loc, "2025-01-10 23:59"), 0, true),
	}
	payments := []model.Payment{
		payment("p1", "A", at(t, loc, "2025-01-11 00:05").UTC(), 500),
	}

	bucket := agg.Aggregate(context.Background(), shifts, payments)

	assert.Equal(t, []string{"2025-01-10", "2025-01-11"}, bucket.Dates())

	day1 := bucket.Members("2025-01-10")
	assert.InDelta(t, 29.0/60.0, day1["A"].Hours, epsilon)
	assert.Zero(t, day1["A"].CardTips)

	day2 := bucket.Members("2025-01-11")
	assert.Equal(t, int64(500), day2["A"].CardTips)
	assert.Zero(t, day2["A"].Hours)
}

func TestAggregate_SkipsUnattributedAndIncomplete(t *testing.T) {
	loc := newYork(t)
	grat := &stubGratuity{amounts: map[string]int64{"o1": 300, "o2": 700}}
	agg := NewAggregator(grat, loc)

	day := "2025-01-10 "
	p1 := payment("p1", "", at(t, loc, day+"12:00"), 1000)
	p1.OrderID = "o1"
	p2 := payment("p2", "B", at(t, loc, day+"13:00"), 200)
	p2.OrderID = "o2"
	p3 := payment("p3", "B", at(t, loc, day+"14:00"), 900)
	p3.Status = model.PaymentStatusCanceled
	p4 := payment("p4", "B", at(t, loc, day+"15:00"), 0)

	bucket := agg.Aggregate(context.Background(), []model.Shift{
		shift("s0", "", at(t, loc, day+"09:00"), at(t, loc, day+"17:00"), 100, true),
	}, []model.Payment{p1, p2, p3, p4})

	members := bucket.Members("2025-01-10")
	require.Len(t, members, 1)
	assert.Equal(t, int64(900), members["B"].CardTips)
	assert.Equal(t, []string{"o2"}, grat.calls, "unattributed payments must not be looked up")
}

func TestAggregate_EligibleIfAnyShiftEligible(t *testing.T) {
	loc := newYork(t)
	agg := NewAggregator(nil, loc)

	day := "2025-01-10 "
	bucket := agg.Aggregate(context.Background(), []model.Shift{
		shift("s1", "A", at(t, loc, day+"08:00"), at(t, loc, day+"12:00"), 100, true),
		shift("s2", "A", at(t, loc, day+"13:00"), at(t, loc, day+"15:00"), 50, false),
	}, nil)

	rec := bucket.Members("2025-01-10")["A"]
	assert.True(t, rec.Eligible)
	assert.InDelta(t, 6.0, rec.Hours, epsilon)
	assert.Equal(t, int64(150), rec.DeclaredCashTips)
}

func TestAggregate_SubtractsBreaks(t *testing.T) {
	loc := newYork(t)
	agg := NewAggregator(nil, loc)

	day := "2025-01-10 "
	s := shift("s1", "A", at(t, loc, day+"08:00"), at(t, loc, day+"16:00"), 0, true)
	s.Breaks = []model.Break{
		{Start: at(t, loc, day+"12:00"), End: at(t, loc, day+"12:30")},
		{Start: at(t, loc, day+"12:15"), End: at(t, loc, day+"12:45")},
	}

	bucket := agg.Aggregate(context.Background(), []model.Shift{s}, nil)
	assert.InDelta(t, 7.0, bucket.Members("2025-01-10")["A"].Hours, epsilon)
}

func dailyScenario(t *testing.T, withIneligible bool) Totals {
	t.Helper()
	loc := newYork(t)
	day := "2025-01-10 "

	shifts := []model.Shift{
		shift("sa", "A", at(t, loc, day+"09:00"), at(t, loc, day+"17:00"), 4000, true),
		shift("sb", "B", at(t, loc, day+"09:00"), at(t, loc, day+"17:00"), 0, true),
	}
	if withIneligible {
		shifts = append(shifts, shift("sc", "C", at(t, loc, day+"09:00"), at(t, loc, day+"17:00"), 1000, false))
	}
	payments := []model.Payment{payment("p1", "B", at(t, loc, day+"12:00"), 2000)}

	bucket := NewAggregator(&stubGratuity{}, loc).Aggregate(context.Background(), shifts, payments)
	return Totalize(DistributeDailyPool(bucket))
}

func TestDistributeDailyPool_EvenSplit(t *testing.T) {
	totals := dailyScenario(t, false)

	for _, id := range []string{"A", "B"} {
		assert.InDelta(t, 3000.0, totals[id].TipOutAllocated, epsilon, id)
		assert.InDelta(t, 2925.0, totals[id].TipOutAllocatedAfterCardProcessing, epsilon, id)
	}
	assert.Equal(t, 4000.0, totals["A"].DeclaredCashTips)
	assert.Equal(t, 2000.0, totals["B"].CardTips)
}

func TestDistributeDailyPool_IneligibleContributes(t *testing.T) {
	totals := dailyScenario(t, true)

	assert.InDelta(t, 3500.0, totals["A"].TipOutAllocated, epsilon)
	assert.InDelta(t, 3500.0, totals["B"].TipOutAllocated, epsilon)
	assert.Zero(t, totals["C"].TipOutAllocated)
	assert.Equal(t, 1000.0, totals["C"].DeclaredCashTips)
	assert.InDelta(t, 8.0, totals["C"].Hours, epsilon)
}

func TestDistributeDailyPool_Conservation(t *testing.T) {
	loc := newYork(t)
	grat := &stubGratuity{amounts: map[string]int64{"o1": 1500}}

	var shifts []model.Shift
	var payments []model.Payment
	for i, day := range []string{"2025-01-06 ", "2025-01-07 ", "2025-01-08 "} {
		shifts = append(shifts,
			shift("a"+day, "A", at(t, loc, day+"09:00"), at(t, loc, day+"17:00"), int64(1000+i), true),
			shift("b"+day, "B", at(t, loc, day+"10:00"), at(t, loc, day+"14:00"), 333, true),
			shift("c"+day, "C", at(t, loc, day+"11:00"), at(t, loc, day+"19:00"), 77, i != 1),
		)
		p := payment("p"+day, "C", at(t, loc, day+"12:00"), 1001)
		p.OrderID = "o1"
		payments = append(payments, p)
	}

	bucket := NewAggregator(grat, loc).Aggregate(context.Background(), shifts, payments)
	contribs := DistributeDailyPool(bucket)

	for date, day := range ByKey(contribs) {
		var pool float64
		for _, rec := range bucket.Members(date) {
			pool += float64(rec.DeclaredCashTips + rec.CardTips)
		}
		assert.InDelta(t, pool, day.Sum().TipOutAllocated, 1e-6, date)
	}

	for _, c := range contribs {
		assert.Equal(t, c.Record.TipOutAllocated*CardProcessingFactor, c.Record.TipOutAllocatedAfterCardProcessing)
	}
}

func TestDistributeDailyPool_NoEligible(t *testing.T) {
	loc := newYork(t)
	day := "2025-01-10 "

	bucket := NewAggregator(nil, loc).Aggregate(context.Background(), []model.Shift{
		shift("s1", "A", at(t, loc, day+"09:00"), at(t, loc, day+"17:00"), 1200, false),
		shift("s2", "B", at(t, loc, day+"09:00"), at(t, loc, day+"09:00"), 0, true),
	}, []model.Payment{payment("p1", "A", at(t, loc, day+"12:00"), 800)})

	totals := Totalize(DistributeDailyPool(bucket))

	sum := totals.Sum()
	assert.Zero(t, sum.TipOutAllocated)
	assert.Zero(t, sum.TipOutAllocatedAfterCardProcessing)
	assert.Equal(t, 1200.0, sum.DeclaredCashTips)
	assert.Equal(t, 800.0, sum.CardTips)
	assert.InDelta(t, 8.0, sum.Hours, epsilon)
}

func TestClockIn_SplitsAmongClockedIn(t *testing.T) {
	loc := newYork(t)
	day := "2025-01-10 "
	grat := &stubGratuity{amounts: map[string]int64{"o1": 600}}

	shifts := []model.Shift{
		shift("sa", "A", at(t, loc, day+"09:00"), at(t, loc, day+"17:00"), 500, true),
		shift("sb", "B", at(t, loc, day+"12:00"), at(t, loc, day+"20:00"), 0, true),
		shift("sc", "C", at(t, loc, day+"09:00"), at(t, loc, day+"20:00"), 0, false),
	}
	p1 := payment("p1", "", at(t, loc, day+"13:00"), 900)
	p1.OrderID = "o1"
	p2 := payment("p2", "C", at(t, loc, day+"18:00"), 400)

	contribs := NewClockInDistributor(grat, loc).Distribute(context.Background(), []model.Payment{p1, p2}, shifts, nil)
	totals := Totalize(contribs)

	assert.InDelta(t, 750.0, totals["A"].TipOutAllocated, epsilon)
	assert.InDelta(t, 750.0, totals["A"].CardTips, epsilon)
	assert.InDelta(t, 1150.0, totals["B"].TipOutAllocated, epsilon)
	assert.InDelta(t, 1150.0*CardProcessingFactor, totals["B"].TipOutAllocatedAfterCardProcessing, 1e-9)
	assert.Zero(t, totals["C"].TipOutAllocated)
	assert.InDelta(t, 11.0, totals["C"].Hours, epsilon)
	assert.Equal(t, 500.0, totals["A"].DeclaredCashTips)

	perPayment := ByKey(contribs)
	assert.InDelta(t, 1500.0, perPayment["payment:p1"].Sum().TipOutAllocated, epsilon)
	assert.InDelta(t, 400.0, perPayment["payment:p2"].Sum().TipOutAllocated, epsilon)
}

func TestClockIn_BoundaryInclusion(t *testing.T) {
	loc := newYork(t)
	day := "2025-01-10 "

	shifts := []model.Shift{
		shift("sa", "A", at(t, loc, day+"09:00"), at(t, loc, day+"17:00"), 0, true),
		shift("sb", "B", at(t, loc, day+"17:00"), at(t, loc, day+"22:00"), 0, true),
	}
	payments := []model.Payment{
		payment("start", "", at(t, loc, day+"09:00").UTC(), 100),
		payment("handover", "", at(t, loc, day+"17:00").UTC(), 200),
	}

	totals := Totalize(NewClockInDistributor(nil, loc).Distribute(context.Background(), payments, shifts, nil))

	assert.InDelta(t, 200.0, totals["A"].TipOutAllocated, epsilon)
	assert.InDelta(t, 100.0, totals["B"].TipOutAllocated, epsilon)
}

func TestClockIn_BackToBackShiftsCountOnce(t *testing.T) {
	loc := newYork(t)
	day := "2025-01-10 "

	shifts := []model.Shift{
		shift("sa1", "A", at(t, loc, day+"09:00"), at(t, loc, day+"14:00"), 0, true),
		shift("sa2", "A", at(t, loc, day+"14:00"), at(t, loc, day+"18:00"), 0, true),
		shift("sb", "B", at(t, loc, day+"09:00"), at(t, loc, day+"18:00"), 0, true),
	}
	payments := []model.Payment{payment("switch", "", at(t, loc, day+"14:00"), 900)}

	contribs := NewClockInDistributor(nil, loc).Distribute(context.Background(), payments, shifts, nil)
	totals := Totalize(contribs)

	assert.InDelta(t, 450.0, totals["A"].TipOutAllocated, epsilon)
	assert.InDelta(t, 450.0, totals["A"].CardTips, epsilon)
	assert.InDelta(t, 450.0, totals["B"].TipOutAllocated, epsilon)
	assert.InDelta(t, 9.0, totals["A"].Hours, epsilon)
	assert.Len(t, ByKey(contribs)["payment:switch"], 2)
}

func TestClockIn_NoOverlapDropsPayment(t *testing.T) {
	loc := newYork(t)
	day := "2025-01-10 "

	shifts := []model.Shift{
		shift("sa", "A", at(t, loc, day+"09:00"), at(t, loc, day+"17:00"), 0, true),
	}
	payments := []model.Payment{payment("late", "A", at(t, loc, day+"21:00"), 1000)}

	contribs := NewClockInDistributor(nil, loc).Distribute(context.Background(), payments, shifts, nil)
	totals := Totalize(contribs)

	assert.Zero(t, totals.Sum().TipOutAllocated)
	assert.Zero(t, totals.Sum().CardTips)
	assert.NotContains(t, ByKey(contribs), "payment:late")
}

func TestClockIn_Simulation(t *testing.T) {
	loc := newYork(t)
	day := "2025-01-10 "

	shifts := []model.Shift{
		shift("sa", "A", at(t, loc, day+"16:00"), at(t, loc, day+"23:00"), 0, true),
		shift("sb", "B", at(t, loc, day+"16:00"), at(t, loc, day+"23:00"), 0, true),
	}
	payments := []model.Payment{payment("p1", "", at(t, loc, day+"21:00"), 1000)}
	sim := &ClockOutSimulation{TeamMemberID: "A", CutoffHour: 20}
	require.NoError(t, sim.Validate())

	totals := Totalize(NewClockInDistributor(nil, loc).Distribute(context.Background(), payments, shifts, sim))

	assert.InDelta(t, 4.0, totals["A"].Hours, epsilon)
	assert.InDelta(t, 7.0, totals["B"].Hours, epsilon)
	assert.Zero(t, totals["A"].TipOutAllocated)
	assert.InDelta(t, 1000.0, totals["B"].TipOutAllocated, epsilon)
	assert.Equal(t, at(t, loc, day+"23:00"), shifts[0].End, "input shifts must not change")
}

func TestClockOutSimulation_Validate(t *testing.T) {
	var none *ClockOutSimulation
	assert.NoError(t, none.Validate())
	assert.Error(t, (&ClockOutSimulation{CutoffHour: 20}).Validate())
	assert.Error(t, (&ClockOutSimulation{TeamMemberID: "A", CutoffHour: 24}).Validate())
}

func TestCombine(t *testing.T) {
	a := Totals{"A": {Hours: 1, TipOutAllocated: 100}}
	b := Totals{"A": {Hours: 2, TipOutAllocated: 50}, "B": {CardTips: 10}}

	c := Combine(a, b)
	assert.Equal(t, 3.0, c["A"].Hours)
	assert.Equal(t, 150.0, c["A"].TipOutAllocated)
	assert.Equal(t, 10.0, c["B"].CardTips)
	assert.Equal(t, []string{"A", "B"}, c.IDs())
}

func TestAggregateByHour(t *testing.T) {
	loc := newYork(t)
	grat := &stubGratuity{amounts: map[string]int64{"o1": 250}}

	p1 := payment("p1", "A", at(t, loc, "2025-01-10 12:05"), 100)
	p2 := payment("p2", "", at(t, loc, "2025-01-10 12:55"), 200)
	p2.OrderID = "o1"
	p3 := payment("p3", "A", at(t, loc, "2025-01-10 14:10"), 300)

	hours := AggregateByHour(context.Background(), []model.Payment{p3, p1, p2}, grat, loc)
	require.Len(t, hours, 2)
	assert.True(t, at(t, loc, "2025-01-10 12:00").Equal(hours[0].Hour))
	assert.Equal(t, int64(300), hours[0].CardTips)
	assert.Equal(t, int64(250), hours[0].AutoGratuity)
	assert.Equal(t, int64(550), hours[0].Total())
	assert.Equal(t, int64(300), hours[1].Total())
}

func TestExcludePaymentDates(t *testing.T) {
	loc := newYork(t)
	payments := []model.Payment{
		payment("p1", "A", at(t, loc, "2025-01-10 23:50").UTC(), 100),
		payment("p2", "A", at(t, loc, "2025-01-11 00:10").UTC(), 100),
	}

	kept := ExcludePaymentDates(payments, []string{"2025-01-10"}, loc)
	require.Len(t, kept, 1)
	assert.Equal(t, "p2", kept[0].ID)
}
