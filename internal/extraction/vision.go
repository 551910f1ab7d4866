// internal/extraction/vision.go
package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	commonhttp "resume-ingest/internal/common/http"
	"resume-ingest/internal/common/logger"
)

const transcribePrompt = "Transcribe all text visible in this document page. Return the text only, preserving reading order."

// VisionConfig configures the vision-capable model endpoint.
type VisionConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// VisionClient transcribes a rendered page image via a vision model.
type VisionClient struct {
	cfg    VisionConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewVisionClient(cfg VisionConfig, log logger.Logger) *VisionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &VisionClient{
		cfg:    cfg,
		client: commonhttp.NewClient(cfg.Timeout),
		logger: log,
	}
}

type visionRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	ImageBase64 string `json:"imageBase64"`
}

type visionResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (v *VisionClient) Transcribe(ctx context.Context, pageImage []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(visionRequest{
		Model:       v.cfg.Model,
		Prompt:      transcribePrompt,
		ImageBase64: base64.StdEncoding.EncodeToString(pageImage),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, v.cfg.BaseURL+"/v1/vision/transcriptions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)
	}

	resp, err := v.client.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("vision endpoint returned %d", resp.StatusCode)
	}

	var out visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("vision model error: %s", out.Error)
	}
	return out.Text, nil
}
