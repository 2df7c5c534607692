package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox-triage/internal/config"
	"inbox-triage/internal/model"
	"inbox-triage/internal/service"
)

type fakeTriager struct {
	mu       sync.Mutex
	imported []model.Message
	runs     int
	runErr   error
}

func (f *fakeTriager) ImportMessages(ctx context.Context, msgs []model.Message) (*service.IngestReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imported = append(f.imported, msgs...)
	return &service.IngestReport{Loaded: len(msgs)}, nil
}

func (f *fakeTriager) TriagePending(ctx context.Context, progress service.Progress) (*service.RunReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &service.RunReport{Pending: 2, Triaged: 2}, nil
}

type fakeSource struct {
	since []time.Time
	msgs  []model.Message
	err   error
}

func (f *fakeSource) Fetch(ctx context.Context, since time.Time) ([]model.Message, error) {
	f.since = append(f.since, since)
	return f.msgs, f.err
}

func (f *fakeSource) Close() error { return nil }

func TestSchedulerRestart(t *testing.T) {
	sched := New(&config.SchedulerConfig{IntervalMinutes: 60}, &fakeTriager{}, nil)

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	assert.False(t, sched.GetNextRun().IsZero())
	assert.Error(t, sched.Start())

	require.NoError(t, sched.Stop())
	assert.False(t, sched.IsRunning())
	assert.True(t, sched.GetNextRun().IsZero())

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	require.NotNil(t, sched.ctx)
	assert.NoError(t, sched.ctx.Err(), "context should be active after restart")
	assert.Len(t, sched.cron.Entries(), 1)
	require.NoError(t, sched.Stop())
}

func TestSchedulerRejectsInvalidInterval(t *testing.T) {
	sched := New(&config.SchedulerConfig{IntervalMinutes: 0}, &fakeTriager{}, nil)
	assert.Error(t, sched.Start())
	assert.False(t, sched.IsRunning())
}

func TestRunOnceImportsThenTriages(t *testing.T) {
	triager := &fakeTriager{}
	src := &fakeSource{msgs: []model.Message{{MessageID: "x", Subject: "s", Message: "b", Datetime: time.Now()}}}
	sched := New(&config.SchedulerConfig{IntervalMinutes: 5}, triager, src)

	rep, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Triaged)
	assert.Len(t, triager.imported, 1)
	assert.Equal(t, 1, triager.runs)

	_, err = sched.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, src.since, 2)
	assert.True(t, src.since[1].After(src.since[0]))

	st := sched.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 5, st.IntervalMinutes)
	assert.False(t, st.LastRun.IsZero())
	require.NotNil(t, st.LastReport)
	assert.Empty(t, st.LastError)
}

func TestRunOnceTriagesPendingWhenImportFails(t *testing.T) {
	triager := &fakeTriager{}
	src := &fakeSource{err: errors.New("imap down")}
	sched := New(&config.SchedulerConfig{IntervalMinutes: 5}, triager, src)

	rep, err := sched.RunOnce(context.Background())
	assert.ErrorContains(t, err, "imap down")
	assert.Equal(t, 1, triager.runs)
	require.NotNil(t, rep)
	assert.Equal(t, 2, rep.Triaged)

	st := sched.Status()
	require.NotNil(t, st.LastReport)
	assert.Contains(t, st.LastError, "imap down")

	// the import window is not advanced past a failed fetch
	_, _ = sched.RunOnce(context.Background())
	require.Len(t, src.since, 2)
	assert.Equal(t, src.since[0], src.since[1])
}

func TestScheduleIntervalNotDividingAnHour(t *testing.T) {
	sched := New(&config.SchedulerConfig{IntervalMinutes: 90}, &fakeTriager{}, nil)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	entries := sched.cron.Entries()
	require.Len(t, entries, 1)
	from := time.Date(2024, 6, 3, 0, 30, 0, 0, time.UTC)
	first := entries[0].Schedule.Next(from)
	second := entries[0].Schedule.Next(first)
	assert.Equal(t, 90*time.Minute, first.Sub(from))
	assert.Equal(t, 90*time.Minute, second.Sub(first))
}

func TestRunOnceSkipsWhenTriageActive(t *testing.T) {
	sched := New(&config.SchedulerConfig{IntervalMinutes: 5}, &fakeTriager{runErr: service.ErrTriageInProgress}, nil)

	_, err := sched.RunOnce(context.Background())
	assert.ErrorIs(t, err, service.ErrTriageInProgress)
	assert.True(t, sched.Status().LastRun.IsZero())
}
