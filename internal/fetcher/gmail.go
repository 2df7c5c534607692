package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inbox-triage/internal/config"
	"inbox-triage/internal/model"
)

// GmailSource reads messages through the Gmail API.
type GmailSource struct {
	service   *gmail.Service
	userEmail string
}

// OAuthConfig is the read-only Gmail client configuration.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
	}
}

// NewGmailSource authenticates with a stored refresh token.
func NewGmailSource(ctx context.Context, cfg config.MailboxConfig) (*GmailSource, error) {
	oauth2Config := OAuthConfig(cfg.ClientID, cfg.ClientSecret, "")
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	return NewGmailSourceWithOptions(ctx, cfg.UserEmail, option.WithTokenSource(tokenSource))
}

// NewGmailSourceWithOptions builds a source from explicit client options.
func NewGmailSourceWithOptions(ctx context.Context, userEmail string, opts ...option.ClientOption) (*GmailSource, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	if userEmail == "" {
		userEmail = "me"
	}
	return &GmailSource{service: service, userEmail: userEmail}, nil
}

// Fetch lists messages received after since and downloads each one.
func (s *GmailSource) Fetch(ctx context.Context, since time.Time) ([]model.Message, error) {
	query := fmt.Sprintf("after:%d", since.Unix())

	var ids []string
	err := s.service.Users.Messages.List(s.userEmail).Q(query).Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := s.service.Users.Messages.Get(s.userEmail, id).Format("full").Context(ctx).Do()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logrus.WithField("gmail_id", id).Warnf("Failed to get message: %v", err)
			continue
		}

		m, err := parseGmailMessage(msg)
		if err != nil {
			logrus.WithField("gmail_id", id).Warnf("Failed to parse message: %v", err)
			continue
		}
		out = append(out, m)
	}

	logrus.WithFields(logrus.Fields{
		"user":  s.userEmail,
		"count": len(out),
	}).Info("Fetched messages from Gmail")
	return out, nil
}

func parseGmailMessage(msg *gmail.Message) (model.Message, error) {
	m := model.Message{MessageID: msg.Id}
	if msg.InternalDate > 0 {
		m.Datetime = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		return m, fmt.Errorf("message %s has no payload", msg.Id)
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			m.Subject = header.Value
		case "message-id":
			if id := normalizeMessageID(header.Value); id != "" {
				m.MessageID = id
			}
		}
	}
	if m.Datetime.IsZero() {
		m.Datetime = time.Now()
	}

	var plain, htmlBody string
	if err := collectGmailBody(msg.Payload, &plain, &htmlBody); err != nil {
		return m, err
	}
	if strings.TrimSpace(plain) != "" {
		m.Message = strings.TrimSpace(plain)
	} else {
		m.Message = htmlToText(htmlBody)
	}
	return m, nil
}

func collectGmailBody(part *gmail.MessagePart, plain, htmlBody *string) error {
	if part.Body != nil && part.Body.Data != "" {
		data, err := decodeGmailData(part.Body.Data)
		if err != nil {
			return fmt.Errorf("failed to decode body data: %w", err)
		}
		switch part.MimeType {
		case "text/plain":
			if *plain == "" {
				*plain = string(data)
			}
		case "text/html":
			if *htmlBody == "" {
				*htmlBody = string(data)
			}
		}
	}
	for _, sub := range part.Parts {
		if err := collectGmailBody(sub, plain, htmlBody); err != nil {
			return err
		}
	}
	return nil
}

// Gmail sends base64url, sometimes without padding.
func decodeGmailData(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// Close is a no-op; the Gmail client holds no connection.
func (s *GmailSource) Close() error {
	return nil
}
