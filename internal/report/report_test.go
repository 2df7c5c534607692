package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox-triage/internal/model"
)

func triaged(id string, cat model.Category, level int, at time.Time) model.TriagedMessage {
	return model.TriagedMessage{
		Message:      model.Message{MessageID: id, Subject: "s-" + id, Message: "b-" + id, Datetime: at},
		Category:     cat,
		UrgencyLevel: level,
		Confidence:   0.9,
	}
}

func sample() []model.TriagedMessage {
	day1 := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 11, 16, 30, 0, 0, time.UTC)
	return []model.TriagedMessage{
		triaged("a", model.CategoryClinical, 5, day1),
		triaged("b", model.CategoryPrescription, 2, day1.Add(time.Hour)),
		triaged("c", model.CategoryClinical, 5, day2),
		triaged("d", model.CategoryAdministrative, 1, day2.Add(-time.Hour)),
		triaged("e", model.CategoryClinical, 3, day2.Add(time.Minute)),
	}
}

func TestDateRange(t *testing.T) {
	r := DateRange(sample(), time.Now())
	assert.Equal(t, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 1, 11, 16, 31, 0, 0, time.UTC), r.End)
}

func TestDateRangeEmptyDefaultsToLastThirtyDays(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	r := DateRange(nil, now)
	assert.Equal(t, now, r.End)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), r.Start)
}

func TestCountByUrgencyZeroFilled(t *testing.T) {
	counts := CountByUrgency(sample())
	require.Len(t, counts, 5)

	assert.Equal(t, 5, counts[0].Level)
	assert.Equal(t, "IMMEDIATE", counts[0].Name)
	assert.Equal(t, 2, counts[0].Count)
	assert.Equal(t, 4, counts[1].Level)
	assert.Equal(t, 0, counts[1].Count)
	assert.Equal(t, 1, counts[4].Level)
	assert.Equal(t, 1, counts[4].Count)

	empty := CountByUrgency(nil)
	require.Len(t, empty, 5)
	for _, c := range empty {
		assert.Zero(t, c.Count)
	}
}

func TestCountByCategory(t *testing.T) {
	counts := CountByCategory(sample())
	require.Len(t, counts, 3)
	assert.Equal(t, CategoryCount{Category: model.CategoryClinical, Color: "#f39c12", Count: 3}, counts[0])
	assert.Equal(t, model.CategoryPrescription, counts[1].Category)
	assert.Equal(t, model.CategoryAdministrative, counts[2].Category)
}

func TestCategoryUrgencyMatrix(t *testing.T) {
	cells := CategoryUrgencyMatrix(sample())
	assert.Equal(t, []MatrixCell{
		{Category: model.CategoryClinical, UrgencyLevel: 5, Count: 2},
		{Category: model.CategoryClinical, UrgencyLevel: 3, Count: 1},
		{Category: model.CategoryPrescription, UrgencyLevel: 2, Count: 1},
		{Category: model.CategoryAdministrative, UrgencyLevel: 1, Count: 1},
	}, cells)
}

func TestDailySeries(t *testing.T) {
	points := DailySeries(sample())
	assert.Equal(t, []DailyPoint{
		{Date: "2024-01-10", Category: model.CategoryClinical, Count: 1},
		{Date: "2024-01-10", Category: model.CategoryPrescription, Count: 1},
		{Date: "2024-01-11", Category: model.CategoryClinical, Count: 2},
		{Date: "2024-01-11", Category: model.CategoryAdministrative, Count: 1},
	}, points)
}

func TestGroupByUrgency(t *testing.T) {
	groups := GroupByUrgency(sample())
	require.Len(t, groups, 4)

	assert.Equal(t, 5, groups[0].Level)
	assert.True(t, groups[0].Expanded)
	require.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "a", groups[0].Messages[0].MessageID)
	assert.Equal(t, "c", groups[0].Messages[1].MessageID)

	assert.Equal(t, 3, groups[1].Level)
	assert.False(t, groups[1].Expanded)
	assert.Equal(t, 2, groups[2].Level)
	assert.Equal(t, 1, groups[3].Level)
}

func TestAggregationsSumToInputSize(t *testing.T) {
	inputs := [][]model.TriagedMessage{nil, sample(), sample()[:1]}
	for _, msgs := range inputs {
		total := 0
		for _, c := range CountByUrgency(msgs) {
			total += c.Count
		}
		assert.Equal(t, len(msgs), total)

		total = 0
		for _, c := range CountByCategory(msgs) {
			total += c.Count
		}
		assert.Equal(t, len(msgs), total)

		total = 0
		for _, c := range CategoryUrgencyMatrix(msgs) {
			total += c.Count
		}
		assert.Equal(t, len(msgs), total)

		total = 0
		for _, p := range DailySeries(msgs) {
			total += p.Count
		}
		assert.Equal(t, len(msgs), total)

		total = 0
		for _, g := range GroupByUrgency(msgs) {
			total += len(g.Messages)
		}
		assert.Equal(t, len(msgs), total)

		assert.Equal(t, len(msgs), Build(msgs, time.Now()).Total)
	}
}

func TestColorsAndNames(t *testing.T) {
	assert.Equal(t, "#e74c3c", AlertColor(5))
	assert.Equal(t, "#2ecc71", AlertColor(2))
	assert.Equal(t, "#95a5a6", AlertColor(42))
	assert.Equal(t, "#3498db", CategoryColor(model.CategoryPrescription))
	assert.Equal(t, "#95a5a6", CategoryColor("OTHER"))
	assert.Equal(t, "URGENT", UrgencyName(4))
	assert.Equal(t, "UNKNOWN", UrgencyName(0))
}

func TestFormatDatetime(t *testing.T) {
	assert.Equal(t, "Mar 05, 2024 02:07 PM", FormatDatetime(time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)))
}
