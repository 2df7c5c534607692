// Package fetcher imports batches of patient messages from a mailbox.
package fetcher

import (
	"context"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"

	"inbox-triage/internal/config"
	"inbox-triage/internal/model"
)

// Source yields the messages received since a point in time.
type Source interface {
	Fetch(ctx context.Context, since time.Time) ([]model.Message, error)
	Close() error
}

// New creates the source selected by cfg.Source.
func New(ctx context.Context, cfg config.MailboxConfig) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Source {
	case "imap":
		return NewIMAPSource(cfg)
	case "gmail":
		return NewGmailSource(ctx, cfg)
	default:
		return nil, fmt.Errorf("no mailbox source configured")
	}
}

var tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

func htmlToText(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func normalizeMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// readBody extracts the text of a MIME message, preferring text/plain over
// text/html.
func readBody(r io.Reader) (string, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	var plain, htmlBody string
	err = entity.Walk(func(path []int, part *message.Entity, err error) error {
		if err != nil {
			return err
		}
		if part.MultipartReader() != nil {
			return nil
		}
		mediaType, _, _ := part.Header.ContentType()
		if mediaType == "" {
			mediaType = "text/plain"
		}
		if mediaType != "text/plain" && mediaType != "text/html" {
			return nil
		}
		content, err := io.ReadAll(part.Body)
		if err != nil {
			return fmt.Errorf("failed to read part body: %w", err)
		}
		if mediaType == "text/plain" && plain == "" {
			plain = string(content)
		} else if mediaType == "text/html" && htmlBody == "" {
			htmlBody = string(content)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(plain) != "" {
		return strings.TrimSpace(plain), nil
	}
	return htmlToText(htmlBody), nil
}
