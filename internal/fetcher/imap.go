package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"inbox-triage/internal/config"
	"inbox-triage/internal/model"
)

// IMAPSource reads messages from one IMAP folder.
type IMAPSource struct {
	client *client.Client
	folder string
}

// NewIMAPSource connects over TLS and logs in.
func NewIMAPSource(cfg config.MailboxConfig) (*IMAPSource, error) {
	addr := fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort)
	return DialIMAP(addr, true, cfg.IMAPUser, cfg.IMAPPassword, cfg.Folder)
}

// DialIMAP connects to addr and logs in. An empty folder means INBOX.
func DialIMAP(addr string, useTLS bool, user, password, folder string) (*IMAPSource, error) {
	var (
		c   *client.Client
		err error
	)
	if useTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(user, password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPSource{client: c, folder: folder}, nil
}

// Fetch returns the messages received on or after the day of since.
func (s *IMAPSource) Fetch(ctx context.Context, since time.Time) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := s.client.Select(s.folder, true); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", s.folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return []model.Message{}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	fetched := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, fetched)
	}()

	var out []model.Message
	for msg := range fetched {
		m, err := parseIMAPMessage(msg, section)
		if err != nil {
			logrus.WithField("uid", msg.Uid).Warnf("Failed to parse IMAP message: %v", err)
			continue
		}
		out = append(out, m)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"folder": s.folder,
		"count":  len(out),
	}).Info("Fetched messages from IMAP")
	return out, nil
}

func parseIMAPMessage(msg *imap.Message, section *imap.BodySectionName) (model.Message, error) {
	m := model.Message{MessageID: fmt.Sprintf("imap-%d", msg.Uid)}

	if env := msg.Envelope; env != nil {
		m.Subject = env.Subject
		m.Datetime = env.Date
		if id := normalizeMessageID(env.MessageId); id != "" {
			m.MessageID = id
		}
	}
	if m.Datetime.IsZero() {
		m.Datetime = msg.InternalDate
	}
	if m.Datetime.IsZero() {
		m.Datetime = time.Now()
	}

	r := msg.GetBody(section)
	if r == nil {
		return m, fmt.Errorf("server did not return a message body")
	}
	body, err := readBody(r)
	if err != nil {
		return m, err
	}
	m.Message = body
	return m, nil
}

// Close logs out.
func (s *IMAPSource) Close() error {
	return s.client.Logout()
}
