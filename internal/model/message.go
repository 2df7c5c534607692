package model

import "time"

// Message is a patient inbox message as received.
type Message struct {
	MessageID string    `json:"message_id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Datetime  time.Time `json:"datetime"`
}

// MessageRow is the persisted form of Message. Timestamps are stored as text.
type MessageRow struct {
	MessageID string `gorm:"column:message_id;type:varchar(255);primaryKey"`
	Subject   string `gorm:"column:subject;type:text;not null"`
	Body      string `gorm:"column:message;type:text;not null"`
	Datetime  string `gorm:"column:datetime;type:varchar(40);not null;index"`
}

// TableName specifies the table name for MessageRow
func (MessageRow) TableName() string {
	return "messages"
}

// NewMessageRow converts a Message into its persisted form.
func NewMessageRow(m Message) MessageRow {
	return MessageRow{
		MessageID: m.MessageID,
		Subject:   m.Subject,
		Body:      m.Message,
		Datetime:  FormatTimestamp(m.Datetime),
	}
}
