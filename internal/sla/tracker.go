// internal/sla/tracker.go

// Package sla enforces the job deadline at stage boundaries and records
// timing metadata for the pipeline.
package sla

import (
	"fmt"
	"time"

	"resume-ingest/internal/models"
)

// Stage boundary names recorded in metadata and used on breach.
const (
	StagePreExtraction  = "pre_extraction"
	StagePostPrimary    = "post_primary"
	StagePreFallback    = "pre_fallback"
	StagePostFallback   = "post_fallback"
	StagePreEscalation  = "pre_escalation"
	StagePostEscalation = "post_escalation"
	StagePostExtraction = "post_extraction"
	StagePreAnalysis    = "pre_analysis"
)

// Breach reports a deadline miss at a stage boundary. PreStart is set
// only when the very first checkpoint already finds the deadline past,
// before any stage has run.
type Breach struct {
	Stage      string
	At         int64
	DeadlineAt int64
	PreStart   bool
}

func (b *Breach) Error() string {
	return fmt.Sprintf("deadline %d breached at stage %s (now=%d)", b.DeadlineAt, b.Stage, b.At)
}

// Reason maps the breach to the terminal failure reason.
func (b *Breach) Reason() string {
	if b.PreStart {
		return models.FailureDeadlinePreStart
	}
	return models.FailureDeadline
}

// Metadata returns the sla sub-tree describing the breach.
func (b *Breach) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"breachedStage": b.Stage,
		"breachedAt":    b.At,
		"deadlineAt":    b.DeadlineAt,
	}
}

type checkpoint struct {
	stage string
	at    int64
}

// Tracker wraps one job attempt. Queue latency is computed once at
// construction; Check is called at every guarded boundary.
type Tracker struct {
	deadlineAt     int64
	startedAt      int64
	queueLatencyMs int64
	checkpoints    []checkpoint
	started        bool
	now            func() time.Time
}

func NewTracker(job *models.ExtractionJob) *Tracker {
	return newTracker(job, time.Now)
}

func newTracker(job *models.ExtractionJob, now func() time.Time) *Tracker {
	t := &Tracker{
		deadlineAt: job.DeadlineAt,
		startedAt:  now().UnixMilli(),
		now:        now,
	}
	if job.EnqueuedAt > 0 {
		t.queueLatencyMs = t.startedAt - job.EnqueuedAt
		if t.queueLatencyMs < 0 {
			t.queueLatencyMs = 0
		}
	}
	return t
}

// Check records a checkpoint for the stage and returns a Breach when
// the deadline has passed. Without a deadline it only records timing.
func (t *Tracker) Check(stage string) *Breach {
	nowMs := t.now().UnixMilli()
	t.checkpoints = append(t.checkpoints, checkpoint{stage: stage, at: nowMs})

	preStart := !t.started
	t.started = true

	if t.deadlineAt > 0 && nowMs > t.deadlineAt {
		return &Breach{Stage: stage, At: nowMs, DeadlineAt: t.deadlineAt, PreStart: preStart}
	}
	return nil
}

func (t *Tracker) QueueLatencyMs() int64 {
	return t.queueLatencyMs
}

// Metadata returns the sla sub-tree with timings accumulated so far.
func (t *Tracker) Metadata() map[string]interface{} {
	stages := make(map[string]interface{}, len(t.checkpoints))
	for _, cp := range t.checkpoints {
		stages[cp.stage] = cp.at
	}

	m := map[string]interface{}{
		"queueLatencyMs":       t.queueLatencyMs,
		"startedAt":            t.startedAt,
		"processingDurationMs": t.now().UnixMilli() - t.startedAt,
		"stages":               stages,
	}
	if t.deadlineAt > 0 {
		m["deadlineAt"] = t.deadlineAt
	}
	return m
}
