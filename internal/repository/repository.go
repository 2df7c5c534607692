package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inbox-triage/internal/model"
)

// ErrMessageNotFound is returned when a message id is not stored.
var ErrMessageNotFound = errors.New("message not found")

// TriageFilter narrows ListTriaged. Nil or empty options are ignored;
// the rest are AND-ed. Date bounds are inclusive.
type TriageFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	Category     string
	UrgencyLevel *int
}

// Repository is the message store over the messages and triaged_messages tables.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var messageIDConflict = []clause.Column{{Name: "message_id"}}

// UpsertMessages inserts messages or replaces them by message_id.
func (r *Repository) UpsertMessages(ctx context.Context, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}

	rows := make([]model.MessageRow, 0, len(messages))
	for _, m := range messages {
		if err := validateMessage(m); err != nil {
			return err
		}
		rows = append(rows, model.NewMessageRow(m))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{Columns: messageIDConflict, UpdateAll: true}).
			CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert messages: %w", err)
	}
	return nil
}

// UpsertTriageResult stores the message if it is not already present, without
// overwriting it, then inserts or replaces its triage result.
func (r *Repository) UpsertTriageResult(ctx context.Context, t model.TriagedMessage) error {
	if err := validateMessage(t.Message); err != nil {
		return err
	}
	if err := validateResult(t.Result()); err != nil {
		return err
	}
	if t.ProcessedAt.IsZero() {
		t.ProcessedAt = time.Now()
	}

	msgRow := model.NewMessageRow(t.Message)
	triageRow := model.NewTriageRow(t.Result())

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{Columns: messageIDConflict, DoNothing: true}).
			Create(&msgRow).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{Columns: messageIDConflict, UpdateAll: true}).
			Create(&triageRow).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert triage result for %s: %w", t.MessageID, err)
	}
	return nil
}

type triagedRow struct {
	MessageID      string
	Subject        string
	Body           string `gorm:"column:message"`
	Datetime       string
	TriageCategory string
	UrgencyLevel   int
	Confidence     float64
	ProcessedAt    string
}

// ListTriaged returns triaged messages matching f, most urgent first and,
// within a level, most recent first.
func (r *Repository) ListTriaged(ctx context.Context, f TriageFilter) ([]model.TriagedMessage, error) {
	q := r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.message_id, m.subject, m.message, m.datetime, t.triage_category, t.urgency_level, t.confidence, t.processed_at").
		Joins("JOIN triaged_messages AS t ON t.message_id = m.message_id")

	if f.StartDate != nil {
		q = q.Where("m.datetime >= ?", model.FormatTimestamp(*f.StartDate))
	}
	if f.EndDate != nil {
		q = q.Where("m.datetime <= ?", model.FormatTimestamp(*f.EndDate))
	}
	if f.Category != "" {
		q = q.Where("t.triage_category = ?", f.Category)
	}
	if f.UrgencyLevel != nil {
		q = q.Where("t.urgency_level = ?", *f.UrgencyLevel)
	}

	var rows []triagedRow
	if err := q.Order("t.urgency_level DESC").Order("m.datetime DESC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list triaged messages: %w", err)
	}

	result := make([]model.TriagedMessage, 0, len(rows))
	for _, row := range rows {
		tm, err := row.decode()
		if err != nil {
			logrus.WithField("message_id", row.MessageID).Warnf("Skipping triaged message: %v", err)
			continue
		}
		result = append(result, tm)
	}
	return result, nil
}

// ListUntriaged returns stored messages that have no triage result, oldest first.
func (r *Repository) ListUntriaged(ctx context.Context) ([]model.Message, error) {
	var rows []model.MessageRow
	err := r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.message_id, m.subject, m.message, m.datetime").
		Joins("LEFT JOIN triaged_messages AS t ON t.message_id = m.message_id").
		Where("t.message_id IS NULL").
		Order("m.datetime ASC").Order("m.message_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list untriaged messages: %w", err)
	}

	messages := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		m, err := decodeMessage(row)
		if err != nil {
			logrus.WithField("message_id", row.MessageID).Warnf("Skipping untriaged message: %v", err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// GetMessage returns a single stored message.
func (r *Repository) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	var row model.MessageRow
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error fetching message: %w", err)
	}

	m, err := decodeMessage(row)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DistinctCategories returns each category present in the triage table once.
func (r *Repository) DistinctCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).Model(&model.TriageRow{}).
		Distinct().Order("triage_category").Pluck("triage_category", &categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

// DistinctUrgencyLevels returns each urgency level present once, ascending.
func (r *Repository) DistinctUrgencyLevels(ctx context.Context) ([]int, error) {
	var levels []int
	err := r.db.WithContext(ctx).Model(&model.TriageRow{}).
		Distinct().Order("urgency_level ASC").Pluck("urgency_level", &levels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get urgency levels: %w", err)
	}
	return levels, nil
}

// CountMessages returns the number of stored messages.
func (r *Repository) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.MessageRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// CountTriaged returns the number of stored triage results.
func (r *Repository) CountTriaged(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.TriageRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count triage results: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func validateMessage(m model.Message) error {
	if strings.TrimSpace(m.MessageID) == "" {
		return fmt.Errorf("message_id is required")
	}
	if m.Datetime.IsZero() {
		return fmt.Errorf("message %s has no datetime", m.MessageID)
	}
	return nil
}

func validateResult(t model.TriageResult) error {
	if _, ok := model.ParseCategory(string(t.Category)); !ok {
		return fmt.Errorf("message %s: unknown category %q", t.MessageID, t.Category)
	}
	if !model.ValidUrgency(t.UrgencyLevel) {
		return fmt.Errorf("message %s: urgency level %d out of range", t.MessageID, t.UrgencyLevel)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("message %s: confidence %v out of range", t.MessageID, t.Confidence)
	}
	return nil
}

func decodeMessage(row model.MessageRow) (model.Message, error) {
	dt, err := model.ParseTimestamp(row.Datetime)
	if err != nil {
		return model.Message{}, fmt.Errorf("datetime: %w", err)
	}
	return model.Message{
		MessageID: row.MessageID,
		Subject:   row.Subject,
		Message:   row.Body,
		Datetime:  dt,
	}, nil
}

func (row triagedRow) decode() (model.TriagedMessage, error) {
	msg, err := decodeMessage(model.MessageRow{
		MessageID: row.MessageID,
		Subject:   row.Subject,
		Body:      row.Body,
		Datetime:  row.Datetime,
	})
	if err != nil {
		return model.TriagedMessage{}, err
	}
	processedAt, err := model.ParseTimestamp(row.ProcessedAt)
	if err != nil {
		return model.TriagedMessage{}, fmt.Errorf("processed_at: %w", err)
	}
	return model.TriagedMessage{
		Message:      msg,
		Category:     model.Category(row.TriageCategory),
		UrgencyLevel: row.UrgencyLevel,
		Confidence:   row.Confidence,
		ProcessedAt:  processedAt,
	}, nil
}
