// Package loader parses delimited message batches into validated records.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/sirupsen/logrus"

	"inbox-triage/internal/model"
)

// RequiredColumns lists the header columns every batch must carry.
var RequiredColumns = []string{"message_id", "subject", "message", "datetime"}

// SchemaError reports required columns absent from the header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("file missing required columns: %s", strings.Join(e.Missing, ", "))
}

// RowParseError records a row whose datetime could not be parsed. The row is
// kept with the ingest time substituted.
type RowParseError struct {
	Line      int    `json:"line"`
	MessageID string `json:"message_id"`
	Value     string `json:"value"`
}

func (e RowParseError) Error() string {
	return fmt.Sprintf("line %d: could not parse datetime %q for message %s", e.Line, e.Value, e.MessageID)
}

// SkippedRow is a malformed row left out of the batch.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// LoadResult is the outcome of parsing a batch.
type LoadResult struct {
	Messages []model.Message `json:"messages"`
	Warnings []RowParseError `json:"warnings,omitempty"`
	Skipped  []SkippedRow    `json:"skipped,omitempty"`
}

// Loader parses tabular message batches.
type Loader struct {
	comma rune
	now   func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithDelimiter sets the field delimiter (default ',').
func WithDelimiter(r rune) Option {
	return func(l *Loader) { l.comma = r }
}

// WithClock sets the time source used for unparseable datetimes.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

func New(opts ...Option) *Loader {
	l := &Loader{comma: ',', now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFromFile opens path and parses it.
func (l *Loader) LoadFromFile(path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return l.LoadFromTabular(f)
}

// LoadFromTabular parses a header row followed by message rows. The header is
// checked before any row is read; a missing required column fails the whole
// batch with a *SchemaError.
func (l *Loader) LoadFromTabular(r io.Reader) (*LoadResult, error) {
	cr := csv.NewReader(r)
	cr.Comma = l.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Missing: append([]string(nil), RequiredColumns...)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.Skipped = append(result.Skipped, SkippedRow{Line: perr.Line, Reason: perr.Err.Error()})
				logrus.Warnf("Skipping malformed row at line %d: %v", perr.Line, perr.Err)
				continue
			}
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
		line, _ := cr.FieldPos(0)

		msg, warn, skip := l.parseRow(record, index, line)
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			logrus.Warnf("Skipping row at line %d: %s", skip.Line, skip.Reason)
			continue
		}
		if warn != nil {
			result.Warnings = append(result.Warnings, *warn)
			logrus.WithField("message_id", msg.MessageID).Warn(warn.Error() + ", using current time")
		}
		result.Messages = append(result.Messages, msg)
	}

	return result, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return index, nil
}

func (l *Loader) parseRow(record []string, index map[string]int, line int) (model.Message, *RowParseError, *SkippedRow) {
	field := func(col string) (string, bool) {
		i := index[col]
		if i >= len(record) {
			return "", false
		}
		return record[i], true
	}

	values := make(map[string]string, len(RequiredColumns))
	for _, col := range RequiredColumns {
		v, ok := field(col)
		if !ok {
			return model.Message{}, nil, &SkippedRow{Line: line, Reason: fmt.Sprintf("row has no %s field", col)}
		}
		values[col] = v
	}

	id := strings.TrimSpace(values["message_id"])
	if id == "" {
		return model.Message{}, nil, &SkippedRow{Line: line, Reason: "message_id is empty"}
	}

	msg := model.Message{
		MessageID: id,
		Subject:   values["subject"],
		Message:   values["message"],
	}

	raw := strings.TrimSpace(values["datetime"])
	dt, err := dateparse.ParseAny(raw)
	if err != nil || raw == "" {
		msg.Datetime = l.now()
		return msg, &RowParseError{Line: line, MessageID: id, Value: raw}, nil
	}
	msg.Datetime = dt
	return msg, nil, nil
}

// WriteTabular writes messages in the format LoadFromTabular reads.
func WriteTabular(w io.Writer, messages []model.Message) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RequiredColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, m := range messages {
		if err := cw.Write([]string{m.MessageID, m.Subject, m.Message, m.Datetime.Format(time.RFC3339)}); err != nil {
			return fmt.Errorf("failed to write message %s: %w", m.MessageID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
