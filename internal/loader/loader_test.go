package loader

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox-triage/internal/model"
)

var fixedNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestLoader() *Loader {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestLoadFromTabularOneMessagePerRow(t *testing.T) {
	input := `message_id,subject,message,datetime
m1,Chest pain,"I have chest pain, since this morning",2024-01-15 09:30:00
m2,Refill,Need a refill,2024-01-15T10:45:00-05:00
m3,Thanks,Thank you doctor,2024/01/16
m4,Billing,Question about my bill,sometime last week
`
	result, err := newTestLoader().LoadFromTabular(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Messages, 4)

	assert.Equal(t, "m1", result.Messages[0].MessageID)
	assert.Equal(t, "I have chest pain, since this morning", result.Messages[0].Message)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC), result.Messages[0].Datetime.UTC())
	assert.Equal(t, time.Date(2024, 1, 15, 15, 45, 0, 0, time.UTC), result.Messages[1].Datetime.UTC())
	assert.Equal(t, 16, result.Messages[2].Datetime.Day())

	assert.Equal(t, fixedNow, result.Messages[3].Datetime)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "m4", result.Warnings[0].MessageID)
	assert.Equal(t, 5, result.Warnings[0].Line)
	assert.Empty(t, result.Skipped)

	for _, m := range result.Messages {
		assert.False(t, m.Datetime.IsZero())
	}
}

func TestLoadFromTabularExtraColumnsAndOrder(t *testing.T) {
	input := "\ufeffdatetime,patient,message,subject,message_id\n" +
		"2024-03-01 08:00:00,Jane,Body text,Subject text,abc\n"

	result, err := newTestLoader().LoadFromTabular(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	got := result.Messages[0]
	assert.Equal(t, "abc", got.MessageID)
	assert.Equal(t, "Subject text", got.Subject)
	assert.Equal(t, "Body text", got.Message)
	assert.True(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC).Equal(got.Datetime))
}

func TestLoadFromTabularSchemaErrorForEverySubset(t *testing.T) {
	for mask := 1; mask < 1<<len(RequiredColumns); mask++ {
		var present, missing []string
		for i, col := range RequiredColumns {
			if mask&(1<<i) != 0 {
				missing = append(missing, col)
			} else {
				present = append(present, col)
			}
		}
		header := strings.Join(append(present, "extra"), ",")

		_, err := newTestLoader().LoadFromTabular(strings.NewReader(header + "\n"))
		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr), "mask %b", mask)
		assert.Equal(t, missing, schemaErr.Missing, "mask %b", mask)
	}
}

func TestLoadFromTabularSchemaCheckedBeforeRows(t *testing.T) {
	input := "message_id,subject,message\n\"unterminated\n"
	_, err := newTestLoader().LoadFromTabular(strings.NewReader(input))

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"datetime"}, schemaErr.Missing)
	assert.Contains(t, err.Error(), "datetime")
}

func TestLoadFromTabularEmptyInput(t *testing.T) {
	_, err := newTestLoader().LoadFromTabular(strings.NewReader(""))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, RequiredColumns, schemaErr.Missing)
}

func TestLoadFromTabularSkipsMalformedRows(t *testing.T) {
	input := `message_id,subject,message,datetime
m1,Hello,Body,2024-01-15 09:30:00
,No id,Body,2024-01-15 09:31:00
m3,Short row
m4,Fine,Body,2024-01-15 09:33:00
`
	result, err := newTestLoader().LoadFromTabular(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "m1", result.Messages[0].MessageID)
	assert.Equal(t, "m4", result.Messages[1].MessageID)

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, 3, result.Skipped[0].Line)
	assert.Equal(t, 4, result.Skipped[1].Line)
}

func TestLoadFromTabularDelimiter(t *testing.T) {
	input := "message_id;subject;message;datetime\nx;Hi;Body, with comma;2024-02-02 10:00:00\n"
	result, err := New(WithDelimiter(';')).LoadFromTabular(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "Body, with comma", result.Messages[0].Message)
}

func TestWriteTabularIsReadable(t *testing.T) {
	messages := []model.Message{
		{MessageID: "1", Subject: "Quote \"here\"", Message: "line one\nline two", Datetime: time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC)},
		{MessageID: "2", Subject: "Plain", Message: "text", Datetime: time.Date(2024, 5, 6, 6, 6, 6, 0, time.UTC)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTabular(&buf, messages))

	result, err := newTestLoader().LoadFromTabular(&buf)
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	for i := range messages {
		assert.Equal(t, messages[i].MessageID, result.Messages[i].MessageID)
		assert.Equal(t, messages[i].Subject, result.Messages[i].Subject)
		assert.Equal(t, messages[i].Message, result.Messages[i].Message)
		assert.True(t, messages[i].Datetime.Equal(result.Messages[i].Datetime))
	}
	assert.Empty(t, result.Warnings)
}
