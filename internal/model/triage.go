package model

import (
	"strings"
	"time"
)

// Category is the subject-matter classification of a message.
type Category string

const (
	CategoryClinical       Category = "CLINICAL"
	CategoryPrescription   Category = "PRESCRIPTION"
	CategoryAdministrative Category = "ADMINISTRATIVE"
	CategoryInformational  Category = "INFORMATIONAL"
)

// Categories returns the fixed category set in display order.
func Categories() []Category {
	return []Category{
		CategoryClinical,
		CategoryPrescription,
		CategoryAdministrative,
		CategoryInformational,
	}
}

// ParseCategory matches s case-insensitively against the category set.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Urgency levels, 5 being the most time-critical.
const (
	UrgencyLow       = 1
	UrgencyRoutine   = 2
	UrgencyPriority  = 3
	UrgencyUrgent    = 4
	UrgencyImmediate = 5
)

var urgencyNames = map[int]string{
	UrgencyImmediate: "IMMEDIATE",
	UrgencyUrgent:    "URGENT",
	UrgencyPriority:  "PRIORITY",
	UrgencyRoutine:   "ROUTINE",
	UrgencyLow:       "LOW",
}

// UrgencyLevels returns all levels, most urgent first.
func UrgencyLevels() []int {
	return []int{UrgencyImmediate, UrgencyUrgent, UrgencyPriority, UrgencyRoutine, UrgencyLow}
}

// UrgencyName returns the display name of an urgency level.
func UrgencyName(level int) string {
	if name, ok := urgencyNames[level]; ok {
		return name
	}
	return "UNKNOWN"
}

// ValidUrgency reports whether level is within 1..5.
func ValidUrgency(level int) bool {
	return level >= UrgencyLow && level <= UrgencyImmediate
}

// TriageResult is the classification assigned to a single message.
type TriageResult struct {
	MessageID    string    `json:"message_id"`
	Category     Category  `json:"category"`
	UrgencyLevel int       `json:"urgency_level"`
	Confidence   float64   `json:"confidence"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// TriagedMessage joins a message with its triage result.
type TriagedMessage struct {
	Message
	Category     Category  `json:"category"`
	UrgencyLevel int       `json:"urgency_level"`
	Confidence   float64   `json:"confidence"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Result extracts the triage result part.
func (t TriagedMessage) Result() TriageResult {
	return TriageResult{
		MessageID:    t.MessageID,
		Category:     t.Category,
		UrgencyLevel: t.UrgencyLevel,
		Confidence:   t.Confidence,
		ProcessedAt:  t.ProcessedAt,
	}
}

// TriageRow is the persisted form of TriageResult.
type TriageRow struct {
	MessageID      string  `gorm:"column:message_id;type:varchar(255);primaryKey"`
	TriageCategory string  `gorm:"column:triage_category;type:varchar(50);not null;index"`
	UrgencyLevel   int     `gorm:"column:urgency_level;not null;index"`
	Confidence     float64 `gorm:"column:confidence;not null"`
	ProcessedAt    string  `gorm:"column:processed_at;type:varchar(40);not null"`

	Message *MessageRow `gorm:"foreignKey:MessageID;references:MessageID"`
}

// TableName specifies the table name for TriageRow
func (TriageRow) TableName() string {
	return "triaged_messages"
}

// NewTriageRow converts a triage result into its persisted form.
func NewTriageRow(r TriageResult) TriageRow {
	return TriageRow{
		MessageID:      r.MessageID,
		TriageCategory: string(r.Category),
		UrgencyLevel:   r.UrgencyLevel,
		Confidence:     r.Confidence,
		ProcessedAt:    FormatTimestamp(r.ProcessedAt),
	}
}
