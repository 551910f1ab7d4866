// internal/extraction/orchestrator.go
package extraction

import (
	"context"
	"fmt"
	"time"

	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/models"
	"resume-ingest/internal/sla"
)

// Escalation policy constants.
const (
	minAcceptableChars = 200
	lowCoverageRatio   = 0.2
	minVisionChars     = 50
	visionCoverage     = 0.5
)

// CheckpointFunc is called at stage boundaries; a non-nil error aborts
// the chain immediately.
type CheckpointFunc func(stage string) error

// Orchestrator sequences primary, fallback, and vision strategies per
// the escalation policy. It performs no persistence; provider failures
// become warnings on the working result, never returned errors.
type Orchestrator struct {
	primary  Provider
	fallback Provider
	renderer PageRenderer
	vision   VisionTranscriber
	metrics  MetricsSink
	logger   logger.Logger
}

func NewOrchestrator(primary, fallback Provider, renderer PageRenderer, vision VisionTranscriber, metrics MetricsSink, log logger.Logger) *Orchestrator {
	if metrics == nil {
		metrics = NopSink{}
	}
	return &Orchestrator{
		primary:  primary,
		fallback: fallback,
		renderer: renderer,
		vision:   vision,
		metrics:  metrics,
		logger:   log,
	}
}

// Orchestrate runs the escalation chain and returns the working result.
// The only error paths are checkpoint aborts; everything else degrades
// through the chain.
func (o *Orchestrator) Orchestrate(ctx context.Context, fileBytes []byte, mimeType, userID string, check CheckpointFunc) (*models.ExtractionResult, error) {
	if check == nil {
		check = func(string) error { return nil }
	}

	working := o.run(ctx, o.primary, fileBytes, mimeType)
	if err := check(sla.StagePostPrimary); err != nil {
		return nil, err
	}

	if !o.needsFallback(working) {
		o.logger.Info("primary extraction accepted", map[string]interface{}{
			"userId":     userID,
			"provider":   working.Provider,
			"totalChars": working.TotalChars,
		})
		return working, nil
	}

	o.metrics.RecordEscalation(o.primary.Name(), o.fallback.Name())
	o.logger.Warn("escalating to fallback extractor", map[string]interface{}{
		"userId":     userID,
		"totalChars": working.TotalChars,
		"coverage":   working.Coverage,
		"error":      working.Err,
	})

	if err := check(sla.StagePreFallback); err != nil {
		return nil, err
	}
	fallback := o.run(ctx, o.fallback, fileBytes, mimeType)
	if err := check(sla.StagePostFallback); err != nil {
		return nil, err
	}

	if fallback.TotalChars > working.TotalChars {
		working = adopt(working, fallback, "used fallback extractor after low-coverage primary result")
	} else {
		working.Warnings = append(working.Warnings, "fallback extractor did not improve coverage")
	}

	if working.Coverage < lowCoverageRatio || fallback.TotalChars < minAcceptableChars || fallback.Coverage < lowCoverageRatio {
		if err := check(sla.StagePreEscalation); err != nil {
			return nil, err
		}
		o.metrics.RecordEscalation(o.fallback.Name(), o.fallback.Name())
		retry := o.run(ctx, o.fallback, fileBytes, mimeType)
		if err := check(sla.StagePostEscalation); err != nil {
			return nil, err
		}

		if retry.TotalChars > working.TotalChars {
			working = adopt(working, retry, "fallback retry improved coverage")
		} else {
			working.Warnings = append(working.Warnings, "fallback retry did not improve coverage")
		}
	}

	if working.TotalChars == 0 {
		working = o.visionRescue(ctx, fileBytes, mimeType, working)
	}

	return working, nil
}

func (o *Orchestrator) needsFallback(primary *models.ExtractionResult) bool {
	return primary.TotalChars < minAcceptableChars || primary.Err != "" || primary.Coverage < lowCoverageRatio
}

// run executes one provider call, converting any error into a result
// carrying the error string and a warning.
func (o *Orchestrator) run(ctx context.Context, p Provider, fileBytes []byte, mimeType string) *models.ExtractionResult {
	start := time.Now()
	res, err := p.Extract(ctx, fileBytes, mimeType)
	o.metrics.RecordProviderCall(p.Name(), time.Since(start), err)

	if err != nil {
		o.logger.Warn("extraction provider failed", map[string]interface{}{
			"provider": p.Name(),
			"error":    err.Error(),
		})
		return &models.ExtractionResult{
			Provider: p.Name(),
			Err:      err.Error(),
			Warnings: []string{fmt.Sprintf("%s extraction failed: %v", p.Name(), err)},
		}
	}
	if res == nil {
		res = &models.ExtractionResult{Provider: p.Name()}
	}
	return res
}

// adopt replaces the working result with a better one, carrying the
// accumulated warnings forward plus an explanatory note.
func adopt(prev, next *models.ExtractionResult, note string) *models.ExtractionResult {
	warnings := make([]string, 0, len(prev.Warnings)+len(next.Warnings)+1)
	warnings = append(warnings, prev.Warnings...)
	warnings = append(warnings, next.Warnings...)
	warnings = append(warnings, note)
	next.Warnings = warnings
	return next
}

// visionRescue is the last resort for a completely empty chain: render
// the first page and ask the vision model to transcribe it. Output is
// accepted only above a minimum size and carries a fixed low-confidence
// coverage rather than a measured one.
func (o *Orchestrator) visionRescue(ctx context.Context, fileBytes []byte, mimeType string, working *models.ExtractionResult) *models.ExtractionResult {
	if o.renderer == nil || o.vision == nil {
		working.Warnings = append(working.Warnings, "vision fallback unavailable")
		return working
	}

	image, err := o.renderer.RenderFirstPage(ctx, fileBytes, mimeType)
	if err != nil {
		working.Warnings = append(working.Warnings, fmt.Sprintf("page render for vision fallback failed: %v", err))
		return working
	}

	start := time.Now()
	text, err := o.vision.Transcribe(ctx, image)
	o.metrics.RecordProviderCall("vision", time.Since(start), err)
	if err != nil {
		working.Warnings = append(working.Warnings, fmt.Sprintf("vision transcription failed: %v", err))
		return working
	}

	chars := charCount(text)
	if chars <= minVisionChars {
		working.Warnings = append(working.Warnings, "vision transcription below minimum length, discarded")
		return working
	}

	return &models.ExtractionResult{
		Text:       text,
		TotalChars: chars,
		PageCount:  1,
		ModeUsed:   models.ModeAIVision,
		Coverage:   visionCoverage,
		Provider:   "vision",
		Warnings:   append(working.Warnings, "used vision transcription after empty extraction output"),
	}
}
