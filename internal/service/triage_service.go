package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"inbox-triage/internal/loader"
	"inbox-triage/internal/metrics"
	"inbox-triage/internal/model"
	"inbox-triage/internal/report"
	"inbox-triage/internal/repository"
	"inbox-triage/internal/triage"
)

// ErrTriageInProgress is returned when a triage run is requested while
// another one is still working through the pending set.
var ErrTriageInProgress = errors.New("triage run already in progress")

// Store is the persistence the triage service needs.
type Store interface {
	UpsertMessages(ctx context.Context, messages []model.Message) error
	UpsertTriageResult(ctx context.Context, t model.TriagedMessage) error
	ListTriaged(ctx context.Context, f repository.TriageFilter) ([]model.TriagedMessage, error)
	ListUntriaged(ctx context.Context) ([]model.Message, error)
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	DistinctCategories(ctx context.Context) ([]string, error)
	DistinctUrgencyLevels(ctx context.Context) ([]int, error)
	CountMessages(ctx context.Context) (int64, error)
	CountTriaged(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Classifier assigns a category and urgency to a message.
type Classifier interface {
	ClassifyDetailed(ctx context.Context, m model.Message) triage.Outcome
}

// IngestReport summarizes one ingest or import.
type IngestReport struct {
	Loaded   int                    `json:"loaded"`
	Warnings []loader.RowParseError `json:"warnings,omitempty"`
	Skipped  []loader.SkippedRow    `json:"skipped,omitempty"`
	Pending  int                    `json:"pending"`
}

// RunReport summarizes one triage run.
type RunReport struct {
	Pending   int           `json:"pending"`
	Triaged   int           `json:"triaged"`
	Fallbacks int           `json:"fallbacks"`
	Canceled  bool          `json:"canceled"`
	Duration  time.Duration `json:"duration"`
}

// Progress is called after each message of a run is stored.
type Progress func(done, total int, t model.TriagedMessage)

// FilterOptions lists the values observed in the triage table.
type FilterOptions struct {
	Categories    []string `json:"categories"`
	UrgencyLevels []int    `json:"urgency_levels"`
}

// Stats is a snapshot of store contents.
type Stats struct {
	Messages int64 `json:"messages"`
	Triaged  int64 `json:"triaged"`
	Pending  int64 `json:"pending"`
	Running  bool  `json:"triage_running"`
}

// TriageService runs ingest -> store -> classify -> store.
type TriageService struct {
	store      Store
	classifier Classifier
	loader     *loader.Loader
	metrics    *metrics.Metrics
	now        func() time.Time

	runMu   sync.Mutex
	running atomic.Bool
}

// New creates a triage service. m may be nil.
func New(store Store, classifier Classifier, l *loader.Loader, m *metrics.Metrics) *TriageService {
	if l == nil {
		l = loader.New()
	}
	return &TriageService{
		store:      store,
		classifier: classifier,
		loader:     l,
		metrics:    m,
		now:        time.Now,
	}
}

// Ingest loads a tabular batch and stores every parsed message. A schema
// error aborts before anything is written.
func (s *TriageService) Ingest(ctx context.Context, r io.Reader) (*IngestReport, error) {
	res, err := s.loader.LoadFromTabular(r)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}

	for _, w := range res.Warnings {
		logrus.WithFields(logrus.Fields{
			"line":       w.Line,
			"message_id": w.MessageID,
			"value":      w.Value,
		}).Warn("Unparseable datetime, using ingest time")
	}
	for _, sk := range res.Skipped {
		logrus.WithField("line", sk.Line).Warnf("Skipping malformed row: %s", sk.Reason)
	}
	if s.metrics != nil {
		s.metrics.SkippedRows.Add(float64(len(res.Skipped)))
	}

	rep, err := s.ImportMessages(ctx, res.Messages)
	if err != nil {
		return nil, err
	}
	rep.Warnings = res.Warnings
	rep.Skipped = res.Skipped
	return rep, nil
}

// ImportMessages stores already parsed messages.
func (s *TriageService) ImportMessages(ctx context.Context, msgs []model.Message) (*IngestReport, error) {
	if err := s.store.UpsertMessages(ctx, msgs); err != nil {
		return nil, fmt.Errorf("store messages: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IngestedMessages.Add(float64(len(msgs)))
	}

	pending, err := s.store.ListUntriaged(ctx)
	if err != nil {
		return nil, fmt.Errorf("list untriaged: %w", err)
	}
	s.setPending(len(pending))

	logrus.WithFields(logrus.Fields{
		"loaded":  len(msgs),
		"pending": len(pending),
	}).Info("Messages ingested")

	return &IngestReport{Loaded: len(msgs), Pending: len(pending)}, nil
}

// Pending returns the messages that have no triage result yet.
func (s *TriageService) Pending(ctx context.Context) ([]model.Message, error) {
	return s.store.ListUntriaged(ctx)
}

// Running reports whether a triage run is active.
func (s *TriageService) Running() bool {
	return s.running.Load()
}

// TriagePending classifies every untriaged message, storing each result as
// soon as it is produced so an interrupted run can be resumed. Only one run
// may be active at a time.
func (s *TriageService) TriagePending(ctx context.Context, progress Progress) (*RunReport, error) {
	if !s.runMu.TryLock() {
		return nil, ErrTriageInProgress
	}
	defer s.runMu.Unlock()
	s.running.Store(true)
	defer s.running.Store(false)

	start := time.Now()
	pending, err := s.store.ListUntriaged(ctx)
	if err != nil {
		return nil, fmt.Errorf("list untriaged: %w", err)
	}

	rep := &RunReport{Pending: len(pending)}
	logrus.WithField("pending", len(pending)).Info("Starting triage run")

	for i, m := range pending {
		if ctx.Err() != nil {
			rep.Canceled = true
			break
		}

		out := s.classifier.ClassifyDetailed(ctx, m)
		// a fallback caused by cancellation is not a real result
		if ctx.Err() != nil {
			rep.Canceled = true
			break
		}

		if err := s.store.UpsertTriageResult(ctx, out.Triaged); err != nil {
			rep.Duration = time.Since(start)
			return rep, fmt.Errorf("store triage result for %s: %w", m.MessageID, err)
		}

		rep.Triaged++
		if out.Fallback {
			rep.Fallbacks++
		}
		if s.metrics != nil {
			s.metrics.TriagedByUrgency.WithLabelValues(model.UrgencyName(out.Triaged.UrgencyLevel)).Inc()
		}
		if progress != nil {
			progress(i+1, len(pending), out.Triaged)
		}
	}

	s.setPending(rep.Pending - rep.Triaged)
	rep.Duration = time.Since(start)
	if s.metrics != nil {
		s.metrics.TriageRuns.Inc()
	}

	logrus.WithFields(logrus.Fields{
		"triaged":   rep.Triaged,
		"fallbacks": rep.Fallbacks,
		"canceled":  rep.Canceled,
		"duration":  rep.Duration.String(),
	}).Info("Triage run completed")

	if rep.Canceled {
		return rep, ctx.Err()
	}
	return rep, nil
}

// Retriage classifies a stored message again and replaces its result.
func (s *TriageService) Retriage(ctx context.Context, messageID string) (*model.TriagedMessage, error) {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	out := s.classifier.ClassifyDetailed(ctx, *m)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.UpsertTriageResult(ctx, out.Triaged); err != nil {
		return nil, fmt.Errorf("store triage result for %s: %w", messageID, err)
	}

	logrus.WithFields(logrus.Fields{
		"message_id": messageID,
		"category":   out.Triaged.Category,
		"urgency":    out.Triaged.UrgencyLevel,
		"fallback":   out.Fallback,
	}).Info("Message re-triaged")
	return &out.Triaged, nil
}

// ListTriaged returns the filtered triage results.
func (s *TriageService) ListTriaged(ctx context.Context, f repository.TriageFilter) ([]model.TriagedMessage, error) {
	return s.store.ListTriaged(ctx, f)
}

// GetMessage returns one stored message.
func (s *TriageService) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	return s.store.GetMessage(ctx, messageID)
}

// Dashboard returns the filtered results with every aggregation.
func (s *TriageService) Dashboard(ctx context.Context, f repository.TriageFilter) (*report.Dashboard, error) {
	msgs, err := s.store.ListTriaged(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list triaged: %w", err)
	}
	return report.Build(msgs, s.now()), nil
}

// Filters returns the categories and urgency levels present in the store.
func (s *TriageService) Filters(ctx context.Context) (*FilterOptions, error) {
	cats, err := s.store.DistinctCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("distinct categories: %w", err)
	}
	levels, err := s.store.DistinctUrgencyLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("distinct urgency levels: %w", err)
	}
	return &FilterOptions{Categories: cats, UrgencyLevels: levels}, nil
}

// Stats returns current store counts. It also checks the store is reachable.
func (s *TriageService) Stats(ctx context.Context) (*Stats, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping store: %w", err)
	}
	total, err := s.store.CountMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	triaged, err := s.store.CountTriaged(ctx)
	if err != nil {
		return nil, fmt.Errorf("count triaged: %w", err)
	}
	return &Stats{
		Messages: total,
		Triaged:  triaged,
		Pending:  total - triaged,
		Running:  s.Running(),
	}, nil
}

func (s *TriageService) setPending(n int) {
	if s.metrics != nil {
		s.metrics.PendingMessages.Set(float64(n))
	}
}
