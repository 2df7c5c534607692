package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"inbox-triage/internal/config"
	"inbox-triage/internal/fetcher"
	"inbox-triage/internal/model"
	"inbox-triage/internal/service"
)

// Triager is the part of the triage service a sweep drives.
type Triager interface {
	ImportMessages(ctx context.Context, msgs []model.Message) (*service.IngestReport, error)
	TriagePending(ctx context.Context, progress service.Progress) (*service.RunReport, error)
}

// Status is a snapshot of the sweep.
type Status struct {
	Running         bool               `json:"running"`
	IntervalMinutes int                `json:"interval_minutes"`
	NextRun         time.Time          `json:"next_run"`
	LastRun         time.Time          `json:"last_run"`
	LastReport      *service.RunReport `json:"last_report,omitempty"`
	LastError       string             `json:"last_error,omitempty"`
}

// Scheduler periodically imports from the mailbox, if one is configured,
// and triages every pending message.
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SchedulerConfig
	triager   Triager
	source    fetcher.Source
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex

	sweepMu    sync.Mutex
	lastImport time.Time

	statMu     sync.Mutex
	lastRun    time.Time
	lastReport *service.RunReport
	lastErr    error
}

// New creates a scheduler. source may be nil.
func New(cfg *config.SchedulerConfig, triager Triager, source fetcher.Source) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		config:     cfg,
		triager:    triager,
		source:     source,
		lastImport: time.Now().Add(-24 * time.Hour),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.config.IntervalMinutes <= 0 {
		return fmt.Errorf("invalid sweep interval: %d minutes", s.config.IntervalMinutes)
	}

	schedule := fmt.Sprintf("@every %dm", s.config.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	s.cron.Remove(s.entryID)
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) sweep() {
	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping sweep")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	if _, err := s.run(ctx); err != nil && !errors.Is(err, service.ErrTriageInProgress) {
		logrus.Errorf("Triage sweep failed: %v", err)
	}
}

func (s *Scheduler) run(ctx context.Context) (*service.RunReport, error) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	logrus.Info("Starting triage sweep")
	startTime := time.Now()

	// Already-pending messages are still triaged when the mailbox is unreachable.
	importErr := s.importMailbox(ctx, startTime)
	if importErr != nil {
		logrus.Errorf("Mailbox import failed: %v", importErr)
	}

	rep, err := s.triager.TriagePending(ctx, nil)
	if errors.Is(err, service.ErrTriageInProgress) {
		logrus.Info("Triage run already active, skipping sweep")
		if importErr != nil {
			s.record(startTime, nil, importErr)
		}
		return nil, errors.Join(importErr, err)
	}
	err = errors.Join(importErr, err)
	s.record(startTime, rep, err)
	if err != nil {
		return rep, err
	}

	logrus.Infof("Triage sweep completed in %v", time.Since(startTime))
	return rep, nil
}

func (s *Scheduler) importMailbox(ctx context.Context, startTime time.Time) error {
	if s.source == nil {
		return nil
	}
	msgs, err := s.source.Fetch(ctx, s.lastImport)
	if err != nil {
		return fmt.Errorf("mailbox import: %w", err)
	}
	if _, err := s.triager.ImportMessages(ctx, msgs); err != nil {
		return fmt.Errorf("mailbox import: %w", err)
	}
	s.lastImport = startTime
	return nil
}

func (s *Scheduler) record(at time.Time, rep *service.RunReport, err error) {
	s.statMu.Lock()
	defer s.statMu.Unlock()
	s.lastRun = at
	s.lastReport = rep
	s.lastErr = err
}

// RunOnce runs a sweep immediately, whether or not the schedule is active.
func (s *Scheduler) RunOnce(ctx context.Context) (*service.RunReport, error) {
	logrus.Info("Running triage sweep once")
	return s.run(ctx)
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Next
}

// Status reports schedule state and the outcome of the last sweep.
func (s *Scheduler) Status() Status {
	st := Status{
		Running:         s.IsRunning(),
		IntervalMinutes: s.config.IntervalMinutes,
		NextRun:         s.GetNextRun(),
	}

	s.statMu.Lock()
	defer s.statMu.Unlock()
	st.LastRun = s.lastRun
	st.LastReport = s.lastReport
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Wait waits for running sweeps to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
