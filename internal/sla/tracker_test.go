// internal/sla/tracker_test.go
package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-ingest/internal/models"
)

// fixedClock advances by step on every call.
type fixedClock struct {
	now  time.Time
	step time.Duration
}

func (c *fixedClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestTracker_NoDeadlineNeverBreaches(t *testing.T) {
	clock := &fixedClock{now: time.UnixMilli(1_000_000), step: time.Second}
	tr := newTracker(&models.ExtractionJob{EnqueuedAt: 999_000}, clock.Now)

	for _, stage := range []string{StagePreExtraction, StagePostPrimary, StagePostExtraction, StagePreAnalysis} {
		assert.Nil(t, tr.Check(stage))
	}
}

func TestTracker_QueueLatency(t *testing.T) {
	clock := &fixedClock{now: time.UnixMilli(5_000), step: 0}

	tr := newTracker(&models.ExtractionJob{EnqueuedAt: 4_200}, clock.Now)
	assert.Equal(t, int64(800), tr.QueueLatencyMs())

	// Clock skew between producer and worker clamps to zero.
	skewed := newTracker(&models.ExtractionJob{EnqueuedAt: 9_000}, clock.Now)
	assert.Equal(t, int64(0), skewed.QueueLatencyMs())

	absent := newTracker(&models.ExtractionJob{}, clock.Now)
	assert.Equal(t, int64(0), absent.QueueLatencyMs())
}

func TestTracker_PreStartBreach(t *testing.T) {
	clock := &fixedClock{now: time.UnixMilli(10_000), step: 0}
	tr := newTracker(&models.ExtractionJob{DeadlineAt: 9_000}, clock.Now)

	b := tr.Check(StagePreExtraction)

	require.NotNil(t, b)
	assert.True(t, b.PreStart)
	assert.Equal(t, models.FailureDeadlinePreStart, b.Reason())
	assert.Equal(t, StagePreExtraction, b.Stage)
	assert.Equal(t, int64(9_000), b.DeadlineAt)
}

func TestTracker_MidPipelineBreach(t *testing.T) {
	clock := &fixedClock{now: time.UnixMilli(10_000), step: 2 * time.Second}
	// Deadline allows the first boundary through (constructor consumes
	// one tick, so the first check lands at 12s, the second at 14s).
	tr := newTracker(&models.ExtractionJob{DeadlineAt: 13_000}, clock.Now)

	require.Nil(t, tr.Check(StagePreExtraction))

	b := tr.Check(StagePostPrimary)
	require.NotNil(t, b)
	assert.False(t, b.PreStart)
	assert.Equal(t, models.FailureDeadline, b.Reason())
	assert.Equal(t, StagePostPrimary, b.Stage)
}

func TestTracker_Metadata(t *testing.T) {
	clock := &fixedClock{now: time.UnixMilli(20_000), step: time.Second}
	tr := newTracker(&models.ExtractionJob{EnqueuedAt: 19_500, DeadlineAt: 60_000}, clock.Now)

	require.Nil(t, tr.Check(StagePreExtraction)) // at 21s
	require.Nil(t, tr.Check(StagePostPrimary))   // at 22s

	m := tr.Metadata() // now() at 23s

	assert.Equal(t, int64(500), m["queueLatencyMs"])
	assert.Equal(t, int64(20_000), m["startedAt"])
	assert.Equal(t, int64(3_000), m["processingDurationMs"])
	assert.Equal(t, int64(60_000), m["deadlineAt"])

	stages := m["stages"].(map[string]interface{})
	assert.Equal(t, int64(21_000), stages[StagePreExtraction])
	assert.Equal(t, int64(22_000), stages[StagePostPrimary])
}

func TestBreach_Metadata(t *testing.T) {
	b := &Breach{Stage: StagePreFallback, At: 31_000, DeadlineAt: 30_000}
	assert.Equal(t, map[string]interface{}{
		"breachedStage": StagePreFallback,
		"breachedAt":    int64(31_000),
		"deadlineAt":    int64(30_000),
	}, b.Metadata())
}
