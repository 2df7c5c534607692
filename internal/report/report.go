// Package report computes dashboard aggregations over triaged messages.
// Every function is pure and every count aggregation sums to the input size.
package report

import (
	"sort"
	"time"

	"inbox-triage/internal/model"
)

// DisplayLayout is the human readable timestamp format.
const DisplayLayout = "Jan 02, 2006 03:04 PM"

const defaultColor = "#95a5a6"

var alertColors = map[int]string{
	model.UrgencyImmediate: "#e74c3c",
	model.UrgencyUrgent:    "#f39c12",
	model.UrgencyPriority:  "#3498db",
	model.UrgencyRoutine:   "#2ecc71",
	model.UrgencyLow:       "#95a5a6",
}

var categoryColors = map[model.Category]string{
	model.CategoryClinical:       "#f39c12",
	model.CategoryPrescription:   "#3498db",
	model.CategoryAdministrative: "#2ecc71",
	model.CategoryInformational:  "#95a5a6",
}

// AlertColor returns the CSS color for an urgency level.
func AlertColor(level int) string {
	if c, ok := alertColors[level]; ok {
		return c
	}
	return defaultColor
}

// CategoryColor returns the chart color for a category.
func CategoryColor(c model.Category) string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return defaultColor
}

// UrgencyName returns the display name of an urgency level.
func UrgencyName(level int) string {
	return model.UrgencyName(level)
}

// FormatDatetime formats t for display.
func FormatDatetime(t time.Time) string {
	return t.Format(DisplayLayout)
}

// Range is an inclusive time span.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DateRange returns the earliest and latest message datetime. With no
// messages it returns the 30 days ending at now.
func DateRange(msgs []model.TriagedMessage, now time.Time) Range {
	if len(msgs) == 0 {
		return Range{Start: now.AddDate(0, 0, -30), End: now}
	}
	r := Range{Start: msgs[0].Datetime, End: msgs[0].Datetime}
	for _, m := range msgs[1:] {
		if m.Datetime.Before(r.Start) {
			r.Start = m.Datetime
		}
		if m.Datetime.After(r.End) {
			r.End = m.Datetime
		}
	}
	return r
}

// UrgencyCount is the number of messages at one urgency level.
type UrgencyCount struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// CountByUrgency returns one entry per urgency level, most urgent first.
// All five levels are present even when zero.
func CountByUrgency(msgs []model.TriagedMessage) []UrgencyCount {
	counts := make(map[int]int)
	for _, m := range msgs {
		counts[m.UrgencyLevel]++
	}

	levels := model.UrgencyLevels()
	for level := range counts {
		if !model.ValidUrgency(level) {
			levels = append(levels, level)
		}
	}
	sort.SliceStable(levels, func(i, j int) bool { return levels[i] > levels[j] })

	out := make([]UrgencyCount, 0, len(levels))
	for _, level := range levels {
		out = append(out, UrgencyCount{
			Level: level,
			Name:  UrgencyName(level),
			Color: AlertColor(level),
			Count: counts[level],
		})
	}
	return out
}

// CategoryCount is the number of messages in one category.
type CategoryCount struct {
	Category model.Category `json:"category"`
	Color    string         `json:"color"`
	Count    int            `json:"count"`
}

// CountByCategory returns counts for the categories present in msgs.
func CountByCategory(msgs []model.TriagedMessage) []CategoryCount {
	counts := make(map[model.Category]int)
	for _, m := range msgs {
		counts[m.Category]++
	}

	cats := make([]model.Category, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sortCategories(cats)

	out := make([]CategoryCount, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryCount{Category: c, Color: CategoryColor(c), Count: counts[c]})
	}
	return out
}

// MatrixCell counts messages sharing a category and urgency level.
type MatrixCell struct {
	Category     model.Category `json:"category"`
	UrgencyLevel int            `json:"urgency_level"`
	Count        int            `json:"count"`
}

// CategoryUrgencyMatrix returns the non-empty category x urgency cells,
// ordered by category then urgency descending.
func CategoryUrgencyMatrix(msgs []model.TriagedMessage) []MatrixCell {
	type key struct {
		c model.Category
		u int
	}
	counts := make(map[key]int)
	for _, m := range msgs {
		counts[key{m.Category, m.UrgencyLevel}]++
	}

	out := make([]MatrixCell, 0, len(counts))
	for k, n := range counts {
		out = append(out, MatrixCell{Category: k.c, UrgencyLevel: k.u, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return categoryLess(out[i].Category, out[j].Category)
		}
		return out[i].UrgencyLevel > out[j].UrgencyLevel
	})
	return out
}

// DailyPoint is the number of messages in one category on one UTC day.
type DailyPoint struct {
	Date     string         `json:"date"`
	Category model.Category `json:"category"`
	Count    int            `json:"count"`
}

// DailySeries buckets messages by UTC day and category.
func DailySeries(msgs []model.TriagedMessage) []DailyPoint {
	type key struct {
		day string
		c   model.Category
	}
	counts := make(map[key]int)
	for _, m := range msgs {
		counts[key{m.Datetime.UTC().Format("2006-01-02"), m.Category}]++
	}

	out := make([]DailyPoint, 0, len(counts))
	for k, n := range counts {
		out = append(out, DailyPoint{Date: k.day, Category: k.c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return categoryLess(out[i].Category, out[j].Category)
	})
	return out
}

// UrgencyGroup holds the messages at one urgency level.
type UrgencyGroup struct {
	Level    int                    `json:"level"`
	Name     string                 `json:"name"`
	Color    string                 `json:"color"`
	Expanded bool                   `json:"expanded"`
	Messages []model.TriagedMessage `json:"messages"`
}

// GroupByUrgency splits msgs into per-level groups, most urgent first.
// Empty levels are omitted and input order is kept within a group.
func GroupByUrgency(msgs []model.TriagedMessage) []UrgencyGroup {
	var out []UrgencyGroup
	for _, level := range model.UrgencyLevels() {
		var group []model.TriagedMessage
		for _, m := range msgs {
			if m.UrgencyLevel == level {
				group = append(group, m)
			}
		}
		if len(group) == 0 {
			continue
		}
		out = append(out, UrgencyGroup{
			Level:    level,
			Name:     UrgencyName(level),
			Color:    AlertColor(level),
			Expanded: level == model.UrgencyImmediate,
			Messages: group,
		})
	}
	return out
}

// Dashboard is the read model behind the dashboard view.
type Dashboard struct {
	Range      Range           `json:"range"`
	Total      int             `json:"total"`
	ByUrgency  []UrgencyCount  `json:"by_urgency"`
	ByCategory []CategoryCount `json:"by_category"`
	Matrix     []MatrixCell    `json:"matrix"`
	Daily      []DailyPoint    `json:"daily"`
	Groups     []UrgencyGroup  `json:"groups"`
}

// Build computes every dashboard aggregation for msgs.
func Build(msgs []model.TriagedMessage, now time.Time) *Dashboard {
	return &Dashboard{
		Range:      DateRange(msgs, now),
		Total:      len(msgs),
		ByUrgency:  CountByUrgency(msgs),
		ByCategory: CountByCategory(msgs),
		Matrix:     CategoryUrgencyMatrix(msgs),
		Daily:      DailySeries(msgs),
		Groups:     GroupByUrgency(msgs),
	}
}

func categoryRank(c model.Category) int {
	for i, known := range model.Categories() {
		if c == known {
			return i
		}
	}
	return len(model.Categories())
}

func categoryLess(a, b model.Category) bool {
	ra, rb := categoryRank(a), categoryRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func sortCategories(cats []model.Category) {
	sort.Slice(cats, func(i, j int) bool { return categoryLess(cats[i], cats[j]) })
}
