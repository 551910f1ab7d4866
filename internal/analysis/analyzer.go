// internal/analysis/analyzer.go

// Package analysis converts extracted raw text into the typed resume
// shape, either by parsing pre-structured provider output or through
// the AI structured-analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	commonhttp "resume-ingest/internal/common/http"
	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/models"
)

const (
	maxAnalysisChars = 8000
	maxRetries       = 2
	retryDelay       = time.Second
)

// Config configures the AI structured-analysis endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Analyzer holds the compiled schema and the HTTP client for the
// analysis service.
type Analyzer struct {
	cfg    Config
	client *commonhttp.Client
	schema *gojsonschema.Schema
	logger logger.Logger
	sleep  func(time.Duration)
}

func NewAnalyzer(cfg Config, log logger.Logger) (*Analyzer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	schema, err := compileResumeSchema()
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		cfg:    cfg,
		client: commonhttp.NewClient(cfg.Timeout),
		schema: schema,
		logger: log,
		sleep:  time.Sleep,
	}, nil
}

// Analyze turns raw text into a structured resume. Pre-structured
// provider output is parsed directly; a parse failure there falls
// through to AI analysis instead of failing the job. AI calls are
// retried up to maxRetries with a fixed delay; the exhausted error is
// terminal for the attempt.
func (a *Analyzer) Analyze(ctx context.Context, text, modeUsed string) (*models.StructuredResume, error) {
	if modeUsed == models.ModeDocParseStruct {
		resume, err := a.parseStructured(text)
		if err == nil {
			return resume, nil
		}
		a.logger.Warn("pre-structured payload unparseable, using analysis service", map[string]interface{}{
			"error": err.Error(),
		})
	}

	bounded, truncated := truncateRunes(normalizeWhitespace(text), maxAnalysisChars)
	if truncated {
		a.logger.Debug("analysis input truncated", map[string]interface{}{
			"limit": maxAnalysisChars,
		})
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			a.sleep(retryDelay)
		}

		resume, err := a.call(ctx, bounded)
		if err == nil {
			return resume, nil
		}
		lastErr = err
		a.logger.Warn("structured analysis attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	return nil, fmt.Errorf("structured analysis failed after %d retries: %w", maxRetries, lastErr)
}

func (a *Analyzer) parseStructured(text string) (*models.StructuredResume, error) {
	doc := []byte(strings.TrimSpace(text))
	if err := validateAgainstSchema(a.schema, doc); err != nil {
		return nil, err
	}
	var resume models.StructuredResume
	if err := json.Unmarshal(doc, &resume); err != nil {
		return nil, fmt.Errorf("decode structured payload: %w", err)
	}
	return &resume, nil
}

type analysisRequest struct {
	Model  string          `json:"model"`
	Text   string          `json:"text"`
	Schema json.RawMessage `json:"schema"`
}

type analysisResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

func (a *Analyzer) call(ctx context.Context, text string) (*models.StructuredResume, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(analysisRequest{
		Model:  a.cfg.Model,
		Text:   text,
		Schema: json.RawMessage(resumeSchema),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, a.cfg.BaseURL+"/v1/analysis", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analysis endpoint returned %d", resp.StatusCode)
	}

	var out analysisResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("analysis service error: %s", out.Error)
	}

	if err := validateAgainstSchema(a.schema, out.Data); err != nil {
		return nil, err
	}
	var resume models.StructuredResume
	if err := json.Unmarshal(out.Data, &resume); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	return &resume, nil
}

var (
	horizontalRun = regexp.MustCompile(`[ \t]+`)
	blankLineRun  = regexp.MustCompile(`\n{3,}`)
)

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = horizontalRun.ReplaceAllString(s, " ")
	s = blankLineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, limit int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]), true
}
