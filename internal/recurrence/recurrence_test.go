package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func recurring(start time.Time, rule models.RecurrenceRule) *models.Event {
	return &models.Event{
		ID:             "ev",
		Title:          "Series",
		Start:          start,
		End:            start.Add(2 * time.Hour),
		IsRecurring:    true,
		RecurrenceRule: &rule,
		Status:         models.EventStatusScheduled,
	}
}

func starts(seq []Occurrence) []time.Time {
	out := make([]time.Time, 0, len(seq))
	for _, o := range seq {
		out = append(out, o.Start.UTC())
	}
	return out
}

func collect(e *models.Event, w Window) []Occurrence {
	var out []Occurrence
	for o := range Occurrences(e, w) {
		out = append(out, o)
	}
	return out
}

func TestWeeklyOpenEndedYieldsOnePerWeek(t *testing.T) {
	start := date(2024, 1, 1, 10)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyWeekly, Interval: 1})

	for _, n := range []int{1, 4, 52} {
		w := Window{From: start, To: start.AddDate(0, 0, 7*n).Add(-time.Second)}
		got := collect(e, w)
		assert.Len(t, got, n, "weeks=%d", n)
	}
}

func TestMonthlyClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		count int
		want  []time.Time
	}{
		{
			name:  "leap year",
			start: date(2024, 1, 31, 9),
			count: 3,
			want:  []time.Time{date(2024, 1, 31, 9), date(2024, 2, 29, 9), date(2024, 3, 31, 9)},
		},
		{
			name:  "common year",
			start: date(2023, 1, 31, 9),
			count: 4,
			want:  []time.Time{date(2023, 1, 31, 9), date(2023, 2, 28, 9), date(2023, 3, 31, 9), date(2023, 4, 30, 9)},
		},
		{
			name:  "day 30",
			start: date(2023, 1, 30, 9),
			count: 3,
			want:  []time.Time{date(2023, 1, 30, 9), date(2023, 2, 28, 9), date(2023, 3, 30, 9)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := recurring(tt.start, models.RecurrenceRule{Frequency: models.FrequencyMonthly, Interval: 1, Count: tt.count})
			got := collect(e, Window{From: tt.start, To: tt.start.AddDate(1, 0, 0)})
			assert.Equal(t, tt.want, starts(got))
		})
	}
}

func TestYearlyLeapDay(t *testing.T) {
	start := date(2024, 2, 29, 12)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyYearly, Interval: 1, Count: 5})
	got := collect(e, Window{From: start, To: start.AddDate(10, 0, 0)})
	assert.Equal(t, []time.Time{
		date(2024, 2, 29, 12),
		date(2025, 2, 28, 12),
		date(2026, 2, 28, 12),
		date(2027, 2, 28, 12),
		date(2028, 2, 29, 12),
	}, starts(got))
}

func TestCancelledOccurrenceIsSkipped(t *testing.T) {
	start := date(2024, 3, 1, 18)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyWeekly, Interval: 1})
	e.CancelledOccurrences = []time.Time{date(2024, 3, 15, 0)}

	got := collect(e, Window{From: date(2024, 3, 10, 0), To: date(2024, 3, 31, 0)})
	assert.Equal(t, []time.Time{date(2024, 3, 22, 18), date(2024, 3, 29, 18)}, starts(got))
	assert.Equal(t, 3, got[0].Index)
}

func TestCountIncludesOccurrencesBeforeWindow(t *testing.T) {
	start := date(2024, 1, 1, 18)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1, Count: 5})
	e.CancelledOccurrences = []time.Time{date(2024, 1, 4, 0)}

	got := collect(e, Window{From: date(2024, 1, 3, 0), To: date(2024, 2, 1, 0)})
	assert.Equal(t, []time.Time{date(2024, 1, 3, 18), date(2024, 1, 5, 18)}, starts(got))
	assert.Equal(t, []int{2, 4}, []int{got[0].Index, got[1].Index})
}

func TestEndDateIsInclusive(t *testing.T) {
	start := date(2024, 1, 1, 18)
	until := date(2024, 1, 3, 0)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 2, EndDate: &until})

	got := collect(e, Window{From: start, To: date(2024, 2, 1, 0)})
	assert.Equal(t, []time.Time{date(2024, 1, 1, 18), date(2024, 1, 3, 18)}, starts(got))
}

func TestOccurrenceKeepsDuration(t *testing.T) {
	start := date(2024, 1, 1, 18)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1, Count: 2})
	for o := range Occurrences(e, Window{From: start, To: start.AddDate(0, 0, 5)}) {
		assert.Equal(t, 2*time.Hour, o.End.Sub(o.Start))
		assert.Same(t, e, o.Event)
	}
}

func TestSubSecondStartIsKept(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 500_000_000, time.UTC)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1, Count: 2})

	got := collect(e, Window{From: start, To: start.AddDate(0, 0, 5)})
	require.Len(t, got, 2)
	assert.Equal(t, []time.Time{start, start.AddDate(0, 0, 1)}, starts(got))
	assert.Equal(t, start.Add(2*time.Hour), got[0].End)

	next, ok := Expander{}.Next(e, start)
	require.True(t, ok)
	assert.True(t, next.Start.Equal(start))
}

func TestTimeZoneAwareSteps(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// DST starts 2024-03-10 in New York; the local hour must not shift.
	start := time.Date(2024, 3, 7, 18, 0, 0, 0, ny)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyWeekly, Interval: 1, Count: 2})
	e.TimeZone = "America/New_York"

	got := collect(e, Window{From: start, To: start.AddDate(0, 1, 0)})
	require.Len(t, got, 2)
	assert.Equal(t, 18, got[1].Start.In(ny).Hour())
	assert.Equal(t, 14, got[1].Start.In(ny).Day())
}

func TestNonRecurringEvent(t *testing.T) {
	start := date(2024, 5, 1, 12)
	e := &models.Event{ID: "single", Start: start, End: start.Add(time.Hour)}

	assert.Len(t, collect(e, Window{From: start, To: start}), 1)
	assert.Len(t, collect(e, Window{From: start.Add(time.Minute), To: start.AddDate(0, 1, 0)}), 0)
}

func TestEmptyWindows(t *testing.T) {
	start := date(2024, 1, 1, 10)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1})

	assert.Empty(t, collect(e, Window{From: start.AddDate(0, 0, 5), To: start}))
	assert.Empty(t, collect(e, Window{From: start.AddDate(-1, 0, 0), To: start.Add(-time.Second)}))
}

func TestSequenceIsRestartable(t *testing.T) {
	start := date(2024, 1, 1, 10)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 3, Count: 4})
	seq := Occurrences(e, Window{From: start, To: start.AddDate(0, 1, 0)})

	var first, second []time.Time
	for o := range seq {
		first = append(first, o.Start)
	}
	for o := range seq {
		second = append(second, o.Start)
	}
	assert.Len(t, first, 4)
	assert.Equal(t, first, second)
}

func TestExpandSortsAndCaps(t *testing.T) {
	a := recurring(date(2024, 1, 1, 20), models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1})
	a.ID = "a"
	b := &models.Event{ID: "b", Start: date(2024, 1, 2, 8), End: date(2024, 1, 2, 9)}

	x := Expander{MaxPerEvent: 3}
	res := x.Expand([]*models.Event{a, b}, Window{From: date(2024, 1, 1, 0), To: date(2024, 1, 10, 0)})

	require.Len(t, res.Occurrences, 4)
	assert.Equal(t, []string{"a"}, res.Truncated)
	assert.Equal(t, []time.Time{
		date(2024, 1, 1, 20),
		date(2024, 1, 2, 8),
		date(2024, 1, 2, 20),
		date(2024, 1, 3, 20),
	}, starts(res.Occurrences))
}

func TestNextAndEnded(t *testing.T) {
	start := date(2024, 1, 1, 18)
	e := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyWeekly, Interval: 1, Count: 3})
	x := Expander{}

	next, ok := x.Next(e, date(2024, 1, 2, 0))
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 8, 18), next.Start)

	_, ok = x.Next(e, date(2024, 2, 1, 0))
	assert.False(t, ok)

	assert.False(t, x.Ended(e, date(2024, 1, 15, 19)))
	assert.True(t, x.Ended(e, date(2024, 1, 15, 21)))

	open := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyWeekly, Interval: 1})
	assert.False(t, x.Ended(open, date(2030, 1, 1, 0)))

	single := &models.Event{Start: start, End: start.Add(time.Hour)}
	assert.True(t, x.Ended(single, start.Add(2*time.Hour)))
	assert.False(t, x.Ended(single, start))
}

func TestValidate(t *testing.T) {
	start := date(2024, 1, 1, 18)
	assert.NoError(t, Validate(&models.Event{Start: start}))

	missing := &models.Event{Start: start, IsRecurring: true}
	assert.True(t, errdef.IsValidation(Validate(missing)))

	both := recurring(start, models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1, Count: 2, EndDate: &start})
	assert.True(t, errdef.IsValidation(Validate(both)))

	badFreq := recurring(start, models.RecurrenceRule{Frequency: "hourly", Interval: 1})
	assert.True(t, errdef.IsValidation(Validate(badFreq)))

	assert.NoError(t, Validate(recurring(start, models.RecurrenceRule{Frequency: models.FrequencyMonthly, Interval: 2})))
}
