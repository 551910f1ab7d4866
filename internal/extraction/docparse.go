// internal/extraction/docparse.go
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"resume-ingest/internal/common/errors"
	commonhttp "resume-ingest/internal/common/http"
	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/models"
)

// DocParseConfig configures the cloud document-parsing provider.
type DocParseConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
}

// DocParseProvider drives the asynchronous upload, poll, fetch-result
// protocol of the parsing service. Non-2xx responses during polling are
// transient and retried here, never at the orchestrator level.
type DocParseProvider struct {
	cfg    DocParseConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewDocParseProvider(cfg DocParseConfig, log logger.Logger) *DocParseProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &DocParseProvider{
		cfg:    cfg,
		client: commonhttp.NewClient(cfg.Timeout),
		logger: log,
	}
}

func (p *DocParseProvider) Name() string { return "docparse" }

type docParseUploadResponse struct {
	DocumentID string `json:"documentId"`
}

type docParseStatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type docParsePage struct {
	Page  int `json:"page"`
	Chars int `json:"chars"`
}

type docParseResultResponse struct {
	Text       string         `json:"text"`
	Format     string         `json:"format"`
	PageCount  int            `json:"pageCount"`
	Pages      []docParsePage `json:"pages"`
	Coverage   float64        `json:"coverage"`
	Truncated  bool           `json:"truncated"`
	Confidence float64        `json:"confidence"`
	Warnings   []string       `json:"warnings"`
}

func (p *DocParseProvider) Extract(ctx context.Context, fileBytes []byte, mimeType string) (*models.ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	docID, err := p.upload(ctx, fileBytes, mimeType)
	if err != nil {
		return nil, fmt.Errorf("docparse upload: %w", err)
	}

	retries, err := p.waitForCompletion(ctx, docID)
	if err != nil {
		return nil, err
	}

	payload, err := p.fetchResult(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("docparse result: %w", err)
	}

	mode := models.ModeDocParse
	if payload.Format == "json" {
		mode = models.ModeDocParseStruct
	}

	result := &models.ExtractionResult{
		Text:       payload.Text,
		TotalChars: charCount(payload.Text),
		PageCount:  payload.PageCount,
		Warnings:   payload.Warnings,
		ModeUsed:   mode,
		Truncated:  payload.Truncated,
		Coverage:   payload.Coverage,
		Provider:   p.Name(),
		Retries:    retries,
		Confidence: payload.Confidence,
	}
	for _, pg := range payload.Pages {
		result.PerPageStats = append(result.PerPageStats, models.PageStats{Page: pg.Page, Chars: pg.Chars})
	}
	// Services that predate the coverage field report zero; treat text
	// with no reported ratio as fully covered.
	if result.Coverage == 0 && result.TotalChars > 0 {
		result.Coverage = 1.0
	}
	return result, nil
}

func (p *DocParseProvider) upload(ctx context.Context, fileBytes []byte, mimeType string) (string, error) {
	req, err := http.NewRequest(http.MethodPost, p.cfg.BaseURL+"/v1/documents", bytes.NewReader(fileBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mimeType)
	p.authorize(req)

	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		// Transport-level failures are transient; the service never got
		// the document, so a broker redelivery can succeed.
		return "", errors.NewProviderTransientError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var out docParseUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.DocumentID == "" {
		return "", fmt.Errorf("upload response missing documentId")
	}
	return out.DocumentID, nil
}

// waitForCompletion polls status until completed or the context
// expires. It returns the number of transient retries performed.
func (p *DocParseProvider) waitForCompletion(ctx context.Context, docID string) (int, error) {
	retries := 0
	for {
		status, err := p.fetchStatus(ctx, docID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return retries, fmt.Errorf("docparse poll: %w", ctx.Err())
			}
			retries++
			p.logger.Debug("docparse poll transient failure", map[string]interface{}{
				"documentId": docID,
				"retries":    retries,
				"error":      err.Error(),
			})
		case status.Status == "completed":
			return retries, nil
		case status.Status == "failed":
			return retries, fmt.Errorf("docparse processing failed: %s", status.Error)
		}

		select {
		case <-ctx.Done():
			return retries, fmt.Errorf("docparse poll: %w", ctx.Err())
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

func (p *DocParseProvider) fetchStatus(ctx context.Context, docID string) (*docParseStatusResponse, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/documents/%s/status", p.cfg.BaseURL, docID), nil)
	if err != nil {
		return nil, err
	}
	p.authorize(req)

	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var out docParseStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *DocParseProvider) fetchResult(ctx context.Context, docID string) (*docParseResultResponse, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/documents/%s/result", p.cfg.BaseURL, docID), nil)
	if err != nil {
		return nil, err
	}
	p.authorize(req)

	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("result endpoint returned %d", resp.StatusCode)
	}

	var out docParseResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenderFirstPage renders page one of the document to a PNG through the
// parsing service, for the vision fallback.
func (p *DocParseProvider) RenderFirstPage(ctx context.Context, fileBytes []byte, mimeType string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequest(http.MethodPost, p.cfg.BaseURL+"/v1/documents/render?page=1", bytes.NewReader(fileBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", "image/png")
	p.authorize(req)

	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("render endpoint returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p *DocParseProvider) authorize(req *http.Request) {
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
}
