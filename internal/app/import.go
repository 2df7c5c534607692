package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"inbox-triage/internal/fetcher"
	"inbox-triage/internal/loader"
	"inbox-triage/internal/model"
	"inbox-triage/internal/service"
)

// ImportOptions selects what a one-shot import does.
type ImportOptions struct {
	File       string
	Since      time.Duration
	Triage     bool
	ExportPath string
}

// ImportSummary is printed by the import command.
type ImportSummary struct {
	File    *service.IngestReport `json:"file,omitempty"`
	Mailbox *service.IngestReport `json:"mailbox,omitempty"`
	Triage  *service.RunReport    `json:"triage,omitempty"`
}

// Import ingests a CSV file and/or a mailbox batch, then optionally triages
// everything pending. src may be nil.
func Import(ctx context.Context, svc *service.TriageService, src fetcher.Source, opts ImportOptions) (*ImportSummary, error) {
	summary := &ImportSummary{}

	if opts.File != "" {
		f, err := os.Open(opts.File)
		if err != nil {
			return summary, fmt.Errorf("failed to open %s: %w", opts.File, err)
		}
		rep, err := svc.Ingest(ctx, f)
		f.Close()
		if err != nil {
			return summary, err
		}
		summary.File = rep
	}

	if src != nil {
		since := time.Now().Add(-opts.Since)
		msgs, err := src.Fetch(ctx, since)
		if err != nil {
			return summary, fmt.Errorf("mailbox import: %w", err)
		}
		if opts.ExportPath != "" {
			if err := export(opts.ExportPath, msgs); err != nil {
				return summary, err
			}
		}
		rep, err := svc.ImportMessages(ctx, msgs)
		if err != nil {
			return summary, err
		}
		summary.Mailbox = rep
	}

	if opts.Triage {
		rep, err := svc.TriagePending(ctx, func(done, total int, t model.TriagedMessage) {
			logrus.WithFields(logrus.Fields{
				"message_id": t.MessageID,
				"category":   t.Category,
				"urgency":    t.UrgencyLevel,
			}).Infof("Triaged %d/%d", done, total)
		})
		summary.Triage = rep
		if err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func export(path string, msgs []model.Message) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := loader.WriteTabular(f, msgs); err != nil {
		f.Close()
		return fmt.Errorf("failed to export messages: %w", err)
	}
	logrus.WithField("path", path).Infof("Exported %d messages", len(msgs))
	return f.Close()
}
