package breeding

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = day(2025, 3, 1)

func forecastOf(raw any) Forecast {
	return Summarize(Normalize(raw), today)
}

func TestForecast_ScenarioA_BeyondHorizonCountedNotListed(t *testing.T) {
	fc := forecastOf(map[string]any{"k": map[string]any{"female_id": "F1", "mating_date": "2025-01-01"}})
	assert.Equal(t, 1, fc.TotalCount)
	assert.Equal(t, 0, fc.DueSoonCount)
	assert.Equal(t, 0, fc.OverdueCount)
	assert.Empty(t, fc.Entries)
}

func TestForecast_ScenarioB_DueSoon(t *testing.T) {
	fc := forecastOf(map[string]any{"k": map[string]any{"female_id": "F2", "due_date": "2025-03-05"}})
	require.Len(t, fc.Entries, 1)
	assert.Equal(t, 4, fc.Entries[0].DaysLeft)
	assert.Equal(t, StatusDueSoon, fc.Entries[0].Status)
	assert.Equal(t, 1, fc.DueSoonCount)
	assert.Equal(t, UnknownID, fc.Entries[0].MaleID)
}

func TestForecast_ScenarioC_Overdue(t *testing.T) {
	fc := forecastOf(map[string]any{"k": map[string]any{"female_id": "F3", "due_date": "2025-02-20"}})
	require.Len(t, fc.Entries, 1)
	assert.Equal(t, -9, fc.Entries[0].DaysLeft)
	assert.Equal(t, StatusOverdue, fc.Entries[0].Status)
	assert.Equal(t, 1, fc.OverdueCount)
}

func TestForecast_ScenarioD_NoDatesExcluded(t *testing.T) {
	fc := forecastOf(map[string]any{"k": map[string]any{"female_id": "F4", "notes": "first heat"}})
	assert.Equal(t, 0, fc.TotalCount)
	assert.Empty(t, fc.Entries)
}

func TestForecast_ScenarioE_TieBreakByFemaleID(t *testing.T) {
	fc := forecastOf(map[string]any{
		"a": map[string]any{"female_id": "F5", "due_date": "2025-03-10"},
		"b": map[string]any{"female_id": "F2", "due_date": "2025-03-10"},
	})
	require.Len(t, fc.Entries, 2)
	assert.Equal(t, "F2", fc.Entries[0].FemaleID)
	assert.Equal(t, "F5", fc.Entries[1].FemaleID)
}

func TestForecast_Boundaries(t *testing.T) {
	fc := forecastOf(map[string]any{
		"today":   map[string]any{"female_id": "A", "due_date": "2025-03-01"},
		"seven":   map[string]any{"female_id": "B", "due_date": "2025-03-08"},
		"eight":   map[string]any{"female_id": "C", "due_date": "2025-03-09"},
		"thirty":  map[string]any{"female_id": "D", "due_date": "2025-03-31"},
		"thirty1": map[string]any{"female_id": "E", "due_date": "2025-04-01"},
		"past":    map[string]any{"female_id": "F", "due_date": "2025-02-28"},
	})
	byFemale := map[string]Entry{}
	for _, entry := range fc.Entries {
		byFemale[entry.FemaleID] = entry
	}
	assert.Equal(t, StatusDueSoon, byFemale["A"].Status)
	assert.Equal(t, StatusDueSoon, byFemale["B"].Status)
	assert.Equal(t, StatusScheduled, byFemale["C"].Status)
	assert.Equal(t, 30, byFemale["D"].DaysLeft)
	assert.NotContains(t, byFemale, "E")
	assert.Equal(t, StatusOverdue, byFemale["F"].Status)
	assert.Equal(t, 6, fc.TotalCount)
	assert.Equal(t, 2, fc.DueSoonCount)
	assert.Equal(t, 1, fc.OverdueCount)
}

func TestForecast_Properties(t *testing.T) {
	raw := map[string]any{}
	dates := []string{
		"2025-01-15", "2025-02-27", "2025-03-01", "2025-03-03", "2025-03-03",
		"2025-03-20", "2025-03-31", "2025-04-15", "2025-12-01", "bogus",
	}
	females := []string{"F9", "F1", "F5", "F3", "F2", "F8", "F7", "F6", "F4", "F0"}
	for i, due := range dates {
		raw[females[i]+"-rec"] = map[string]any{"female_id": females[i], "due_date": due}
	}
	raw["mated"] = map[string]any{"female_id": "F10", "mating_date": "2024-10-05"}

	fc := forecastOf(raw)

	assert.Equal(t, 10, fc.TotalCount)
	assert.LessOrEqual(t, fc.OverdueCount+fc.DueSoonCount, fc.TotalCount)
	assert.True(t, sort.SliceIsSorted(fc.Entries, func(i, j int) bool {
		a, b := fc.Entries[i], fc.Entries[j]
		if a.DaysLeft != b.DaysLeft {
			return a.DaysLeft < b.DaysLeft
		}
		return a.FemaleID < b.FemaleID
	}))
	for _, entry := range fc.Entries {
		assert.LessOrEqual(t, entry.DaysLeft, HorizonDays)
		assert.Equal(t, DefaultPolicy().Classify(entry.DaysLeft), entry.Status)
	}
	counts := fc.StatusCounts()
	assert.Equal(t, fc.OverdueCount, counts[StatusOverdue])
	assert.Equal(t, fc.DueSoonCount, counts[StatusDueSoon])
}

func TestForecast_EmptyInput(t *testing.T) {
	fc := Summarize(nil, today)
	assert.Equal(t, 0, fc.TotalCount)
	assert.NotNil(t, fc.Entries)
	assert.Empty(t, fc.Entries)
	assert.Equal(t, InsightSuccess, fc.Insight().Level)
}

func TestForecast_Filter(t *testing.T) {
	fc := forecastOf(map[string]any{
		"a": map[string]any{"female_id": "A", "due_date": "2025-02-01"},
		"b": map[string]any{"female_id": "B", "due_date": "2025-03-02"},
		"c": map[string]any{"female_id": "C", "due_date": "2025-03-25"},
	})
	assert.Len(t, fc.Filter(StatusScheduled), 3)
	assert.Len(t, fc.Filter(StatusDueSoon), 2)
	overdue := fc.Filter(StatusOverdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, "A", overdue[0].FemaleID)
}

func TestInsight_Priority(t *testing.T) {
	assert.Equal(t, Insight{Level: InsightWarning, Message: "2 overdue birth(s). Check those animals immediately."},
		Forecast{OverdueCount: 2, DueSoonCount: 3}.Insight())
	assert.Equal(t, Insight{Level: InsightInfo, Message: "3 birth(s) due within 7 days. Prepare birthing area."},
		Forecast{DueSoonCount: 3}.Insight())
	assert.Equal(t, InsightSuccess, Forecast{TotalCount: 4}.Insight().Level)
}

func TestStatus_TextForms(t *testing.T) {
	assert.Equal(t, "Overdue", StatusOverdue.Label())
	assert.Equal(t, "Due Soon", StatusDueSoon.Label())
	assert.Equal(t, "Scheduled", StatusScheduled.Label())
	assert.Equal(t, "due_soon", StatusDueSoon.String())

	for input, want := range map[string]Status{
		"overdue": StatusOverdue, "Due Soon": StatusDueSoon, "due_soon": StatusDueSoon, "SCHEDULED": StatusScheduled,
	} {
		got, ok := ParseStatus(input)
		require.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}
	_, ok := ParseStatus("critical")
	assert.False(t, ok)
}
