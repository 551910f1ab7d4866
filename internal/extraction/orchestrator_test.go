// internal/extraction/orchestrator_test.go
package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/models"
	"resume-ingest/internal/sla"
)

type fakeProvider struct {
	name    string
	results []*models.ExtractionResult
	errs    []error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Extract(_ context.Context, _ []byte, _ string) (*models.ExtractionResult, error) {
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.results[i], err
}

type fakeRenderer struct {
	image []byte
	err   error
	calls int
}

func (f *fakeRenderer) RenderFirstPage(_ context.Context, _ []byte, _ string) ([]byte, error) {
	f.calls++
	return f.image, f.err
}

type fakeVision struct {
	text  string
	err   error
	calls int
}

func (f *fakeVision) Transcribe(_ context.Context, _ []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type recordingSink struct {
	providerCalls []string
	escalations   []string
}

func (s *recordingSink) RecordProviderCall(provider string, _ time.Duration, _ error) {
	s.providerCalls = append(s.providerCalls, provider)
}

func (s *recordingSink) RecordEscalation(from, to string) {
	s.escalations = append(s.escalations, from+"->"+to)
}

func textResult(provider string, chars int, coverage float64) *models.ExtractionResult {
	return &models.ExtractionResult{
		Text:       strings.Repeat("x", chars),
		TotalChars: chars,
		PageCount:  1,
		Coverage:   coverage,
		Provider:   provider,
		ModeUsed:   models.ModeDocParse,
	}
}

func newTestOrchestrator(primary, fallback Provider, renderer PageRenderer, vision VisionTranscriber, sink MetricsSink) *Orchestrator {
	return NewOrchestrator(primary, fallback, renderer, vision, sink, logger.NewNoOpLogger())
}

func TestOrchestrate_PrimaryAccepted(t *testing.T) {
	primary := &fakeProvider{name: "docparse", results: []*models.ExtractionResult{textResult("docparse", 5000, 0.95)}}
	fallback := &fakeProvider{name: "offline", results: []*models.ExtractionResult{textResult("offline", 9999, 1.0)}}

	res, err := newTestOrchestrator(primary, fallback, nil, nil, nil).
		Orchestrate(context.Background(), []byte("doc"), "application/pdf", "u1", nil)

	require.NoError(t, err)
	assert.Equal(t, 5000, res.TotalChars)
	assert.Equal(t, 0, fallback.calls)
}

func TestOrchestrate_EscalationAdoptsBetterFallback(t *testing.T) {
	primary := &fakeProvider{name: "docparse", results: []*models.ExtractionResult{textResult("docparse", 150, 0.1)}}
	fallback := &fakeProvider{name: "offline", results: []*models.ExtractionResult{textResult("offline", 5000, 1.0)}}
	sink := &recordingSink{}

	res, err := newTestOrchestrator(primary, fallback, nil, nil, sink).
		Orchestrate(context.Background(), []byte("doc"), "application/pdf", "u1", nil)

	require.NoError(t, err)
	assert.Equal(t, 5000, res.TotalChars)
	assert.Equal(t, "offline", res.Provider)
	assert.Contains(t, res.Warnings, "used fallback extractor after low-coverage primary result")
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, []string{"docparse->offline"}, sink.escalations)
}

func TestOrchestrate_PrimaryErrorTriggersFallback(t *testing.T) {
	primary := &fakeProvider{
		name:    "docparse",
		results: []*models.ExtractionResult{nil},
		errs:    []error{errors.New("upstream 503")},
	}
	fallback := &fakeProvider{name: "offline", results: []*models.ExtractionResult{textResult("offline", 4000, 1.0)}}

	res, err := newTestOrchestrator(primary, fallback, nil, nil, nil).
		Orchestrate(context.Background(), []byte("doc"), "application/pdf", "u1", nil)

	require.NoError(t, err)
	assert.Equal(t, 4000, res.TotalChars)
	assert.Contains(t, res.Warnings[0], "docparse extraction failed")
}

func TestOrchestrate_RetryAdoptedOnlyOnStrictImprovement(t *testing.T) {
	primary := &fakeProvider{name: "docparse", results: []*models.ExtractionResult{textResult("docparse", 150, 0.1)}}
	fallback := &fakeProvider{name: "offline", results: []*models.ExtractionResult{
		textResult("offline", 100, 0.1),
		textResult("offline", 300, 1.0),
	}}

	res, err := newTestOrchestrator(primary, fallback, nil, nil, nil).
		Orchestrate(context.Background(), []byte("doc"), "application/pdf", "u1", nil)

	require.NoError(t, err)
	assert.Equal(t, 2, fallback.calls)
	assert.Equal(t, 300, res.TotalChars)
	assert.Contains(t, res.Warnings, "fallback extractor did not improve coverage")
	assert.Contains(t, res.Warnings, "fallback retry improved coverage")
}

func TestOrchestrate_RetryDiscardedWithoutImprovement(t *testing.T) {
	primary := &fakeProvider{name: "docparse", results: []*models.ExtractionResult{textResult("docparse", 150, 0.1)}}
	fallback := &fakeProvider{name: "offline", results: []*models.ExtractionResult{
		textResult("offline", 100, 0.1),
		textResult("offline", 100, 0.1),
	}}

	res, err := newTestOrchestrator(primary, fallback, nil, nil, nil).
		Orchestrate(context.Background(), []byte("doc"), "application/pdf", "u1", nil)

	require.NoError(t, err)
	assert.Equal(t, 150, res.TotalChars)
	assert.Equal(t, "docparse", res.Provider)
	assert.Contains(t, res.Warnings, "fallback retry did not improve coverage")
}

func TestOrchestrate_VisionRescue(t *testing.T) {
	empty := textResult("docparse", 0, 0)
	primary := &fakeProvider{name: "docparse", results: []*models.ExtractionResult{empty}}
	fallback := &fakeProvider{name: "offline", results: []*models.ExtractionResult{textResult("offline", 0, 0)}}
	renderer := &fakeRenderer{image: []byte("png")}
	vision := &fakeVision{text: strings.Repeat("v", 80)}

	res, err := newTestOrchestrator(primary, fallback, renderer, vision, nil).
		Orchestrate(context.Background(), []byte("doc"), "application/pdf", "u1", nil)

	require.NoError(t, err)
	assert.Equal(t, models.ModeAIVision, res.ModeUsed)
	assert.Equal(t, 0.5, res.Coverage)
	assert.Equal(t, 80, res.TotalChars)
	assert.Equal(t, 1, renderer.calls)
	assert.Contains(t, res.Warnings, "used vision transcription after empty extraction output")
}

func TestOrchestrate_VisionBelowMinimumDiscarded(t *testing.T) {
	primary := &fakeProvider{name: "docparse", results: []*models.ExtractionResult{textResult("docparse", 0, 0)}}
	fallback := &fakeProvider{name: "offline", results: []*models.ExtractionResult{textResult("offline", 0, 0)}}
	renderer := &fakeRenderer{image: []byte("png")}
	vision := &fakeVision{text: strings.Repeat("v", 40)}

	res, err := newTestOrchestrator(primary, fallback, renderer, vision, nil).
		Orchestrate(context.Background(), []byte("doc"), "application/pdf", "u1", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalChars)
	assert.NotEqual(t, models.ModeAIVision, res.ModeUsed)
	assert.Contains(t, res.Warnings, "vision transcription below minimum length, discarded")
}

func TestOrchestrate_CheckpointAbortStopsChain(t *testing.T) {
	primary := &fakeProvider{name: "docparse", results: []*models.ExtractionResult{textResult("docparse", 150, 0.1)}}
	fallback := &fakeProvider{name: "offline", results: []*models.ExtractionResult{textResult("offline", 5000, 1.0)}}

	breach := errors.New("deadline breached")
	check := func(stage string) error {
		if stage == sla.StagePostPrimary {
			return breach
		}
		return nil
	}

	res, err := newTestOrchestrator(primary, fallback, nil, nil, nil).
		Orchestrate(context.Background(), []byte("doc"), "application/pdf", "u1", check)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, breach)
	assert.Equal(t, 0, fallback.calls)
}

func TestOrchestrate_ResultInvariant(t *testing.T) {
	primary := &fakeProvider{name: "docparse", results: []*models.ExtractionResult{textResult("docparse", 5000, 0.95)}}

	res, err := newTestOrchestrator(primary, nil, nil, nil, nil).
		Orchestrate(context.Background(), []byte("doc"), "application/pdf", "u1", nil)

	require.NoError(t, err)
	assert.Equal(t, len(strings.TrimSpace(res.Text)), res.TotalChars)
}
