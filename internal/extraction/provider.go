// internal/extraction/provider.go

// Package extraction runs the ordered provider chain that turns a raw
// document into text: a cloud parsing service first, offline extraction
// as fallback, vision transcription as last resort.
package extraction

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"resume-ingest/internal/models"
)

// Provider is the uniform contract every extraction strategy satisfies.
// Implementations return a result with the Text/TotalChars invariant
// already established, or an error when nothing could be produced.
type Provider interface {
	Name() string
	Extract(ctx context.Context, fileBytes []byte, mimeType string) (*models.ExtractionResult, error)
}

// PageRenderer renders the first page of a document to an image for
// vision transcription.
type PageRenderer interface {
	RenderFirstPage(ctx context.Context, fileBytes []byte, mimeType string) ([]byte, error)
}

// VisionTranscriber transcribes a rendered page image to text.
type VisionTranscriber interface {
	Transcribe(ctx context.Context, pageImage []byte) (string, error)
}

// MetricsSink receives provider instrumentation. Injected rather than
// global so unit tests stay deterministic.
type MetricsSink interface {
	RecordProviderCall(provider string, duration time.Duration, err error)
	RecordEscalation(from, to string)
}

// NopSink discards all metrics.
type NopSink struct{}

func (NopSink) RecordProviderCall(string, time.Duration, error) {}
func (NopSink) RecordEscalation(string, string)                 {}

// charCount counts characters the same way everywhere: runes of the
// trimmed text.
func charCount(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}
