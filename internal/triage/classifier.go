package triage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"inbox-triage/internal/metrics"
	"inbox-triage/internal/model"
)

// Safe default applied whenever a message cannot be classified.
const (
	DefaultCategory   = model.CategoryClinical
	DefaultUrgency    = model.UrgencyPriority
	DefaultConfidence = 0.5
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 30 * time.Second

// Classifier turns messages into triage results through an Oracle.
type Classifier struct {
	oracle  Oracle
	timeout time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout sets the per-call oracle timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMetrics records classification metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// WithClock overrides the processed_at source.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// NewClassifier creates a classifier backed by oracle.
func NewClassifier(oracle Oracle, opts ...Option) *Classifier {
	c := &Classifier{
		oracle:  oracle,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Outcome is a classification plus whether the safe default was used.
type Outcome struct {
	Triaged   model.TriagedMessage
	Fallback  bool
	Reason    string
	Reasoning string
}

// Classify never fails: oracle errors and rejected answers yield the safe default.
func (c *Classifier) Classify(ctx context.Context, m model.Message) model.TriagedMessage {
	return c.ClassifyDetailed(ctx, m).Triaged
}

// ClassifyDetailed is Classify with fallback details.
func (c *Classifier) ClassifyDetailed(ctx context.Context, m model.Message) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.metrics != nil {
		c.metrics.ClassifyCount.Inc()
	}
	start := time.Now()
	raw, err := c.oracle.Complete(callCtx, BuildPrompt(m))
	if c.metrics != nil {
		c.metrics.ClassifyDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		return c.fallback(m, metrics.ReasonOracleError, err.Error())
	}

	decoded := Decode(raw)
	if !decoded.OK() {
		return c.fallback(m, metrics.ReasonDecodeFailed, decoded.Failure.Reason)
	}

	p := decoded.Parsed
	return Outcome{
		Triaged: model.TriagedMessage{
			Message:      m,
			Category:     p.Category,
			UrgencyLevel: p.Urgency,
			Confidence:   p.Confidence,
			ProcessedAt:  c.now(),
		},
		Reasoning: p.Reasoning,
	}
}

func (c *Classifier) fallback(m model.Message, reason, detail string) Outcome {
	logrus.WithFields(logrus.Fields{
		"message_id": m.MessageID,
		"reason":     reason,
		"error":      detail,
	}).Warn("Classification failed, applying safe default")
	if c.metrics != nil {
		c.metrics.ClassifyFallbacks.WithLabelValues(reason).Inc()
	}
	return Outcome{
		Triaged: model.TriagedMessage{
			Message:      m,
			Category:     DefaultCategory,
			UrgencyLevel: DefaultUrgency,
			Confidence:   DefaultConfidence,
			ProcessedAt:  c.now(),
		},
		Fallback: true,
		Reason:   reason,
	}
}

// BatchClassify classifies messages one at a time, preserving input order.
func (c *Classifier) BatchClassify(ctx context.Context, msgs []model.Message) []model.TriagedMessage {
	out := make([]model.TriagedMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, c.Classify(ctx, m))
	}
	return out
}
