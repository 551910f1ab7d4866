// internal/storage/gateway.go

// Package storage resolves a file key to bytes: a signed download URL
// from the object store, then a plain HTTP GET. Failures here propagate
// to the broker; without the source document nothing downstream can run.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	commonhttp "resume-ingest/internal/common/http"
	"resume-ingest/internal/common/logger"
)

// SignedURLProvider is satisfied by the S3 client.
type SignedURLProvider interface {
	GetSignedDownloadURL(ctx context.Context, fileKey string, ttl time.Duration) (string, error)
}

type Config struct {
	URLTTL          time.Duration
	DownloadTimeout time.Duration
	MaxFileBytes    int64
}

type Gateway struct {
	urls   SignedURLProvider
	client *commonhttp.Client
	cfg    Config
	logger logger.Logger
}

func NewGateway(urls SignedURLProvider, cfg Config, log logger.Logger) *Gateway {
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 5 * time.Minute
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 60 * time.Second
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 25 << 20
	}
	return &Gateway{
		urls:   urls,
		client: commonhttp.NewClient(cfg.DownloadTimeout),
		cfg:    cfg,
		logger: log,
	}
}

// Fetch downloads the document bytes for a file key.
func (g *Gateway) Fetch(ctx context.Context, fileKey string) ([]byte, error) {
	url, err := g.urls.GetSignedDownloadURL(ctx, fileKey, g.cfg.URLTTL)
	if err != nil {
		return nil, fmt.Errorf("sign download url for %s: %w", fileKey, err)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download %s: status %d", fileKey, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.cfg.MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileKey, err)
	}
	if int64(len(data)) > g.cfg.MaxFileBytes {
		return nil, fmt.Errorf("file %s exceeds %d byte limit", fileKey, g.cfg.MaxFileBytes)
	}

	g.logger.Debug("fetched source document", map[string]interface{}{
		"fileKey": fileKey,
		"bytes":   len(data),
	})
	return data, nil
}
