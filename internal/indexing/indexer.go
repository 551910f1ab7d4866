// internal/indexing/indexer.go

// Package indexing ships extracted text to the search cluster after a
// job completes. Strictly best-effort: failures are reported in the
// result and logged, never escalated to the job.
package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resume-ingest/internal/common/database"
	"resume-ingest/internal/common/logger"
)

const defaultChunkChars = 2000

type Config struct {
	Index      string
	ChunkChars int
}

// Result reports the outcome of one indexing attempt.
type Result struct {
	Success       bool   `json:"success"`
	ChunksIndexed int    `json:"chunksIndexed,omitempty"`
	Err           string `json:"error,omitempty"`
}

type Indexer struct {
	es     *database.ElasticsearchClient
	cfg    Config
	logger logger.Logger
}

func NewIndexer(es *database.ElasticsearchClient, cfg Config, log logger.Logger) *Indexer {
	if cfg.Index == "" {
		cfg.Index = "resume-content"
	}
	if cfg.ChunkChars <= 0 {
		cfg.ChunkChars = defaultChunkChars
	}
	return &Indexer{es: es, cfg: cfg, logger: log}
}

type chunkDocument struct {
	ResumeID  string                 `json:"resumeId"`
	UserID    string                 `json:"userId"`
	Chunk     int                    `json:"chunk"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IndexedAt time.Time              `json:"indexedAt"`
}

// IndexContent splits the content into chunks and indexes each one.
// A partial failure stops the loop and reports how far it got.
func (i *Indexer) IndexContent(ctx context.Context, resumeID, userID, content string, meta map[string]interface{}) *Result {
	chunks := splitChunks(content, i.cfg.ChunkChars)
	indexed := 0

	for n, chunk := range chunks {
		doc := chunkDocument{
			ResumeID:  resumeID,
			UserID:    userID,
			Chunk:     n,
			Content:   chunk,
			Metadata:  meta,
			IndexedAt: time.Now().UTC(),
		}
		if err := i.indexOne(ctx, fmt.Sprintf("%s-%d", resumeID, n), doc); err != nil {
			i.logger.Warn("content indexing failed", map[string]interface{}{
				"resumeId": resumeID,
				"chunk":    n,
				"error":    err.Error(),
			})
			return &Result{Success: false, ChunksIndexed: indexed, Err: err.Error()}
		}
		indexed++
	}

	return &Result{Success: true, ChunksIndexed: indexed}
}

func (i *Indexer) indexOne(ctx context.Context, docID string, doc chunkDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := i.es.Client.Index(
		i.cfg.Index,
		bytes.NewReader(body),
		i.es.Client.Index.WithDocumentID(docID),
		i.es.Client.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index returned %s", res.Status())
	}
	return nil
}

// splitChunks cuts at the last whitespace inside each window so words
// stay intact; an unbroken run longer than the window still cuts
// mid-word. The last chunk may be short.
func splitChunks(content string, size int) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		cut := end
		for i := end; i > start; i-- {
			if isChunkBreak(runes[i-1]) {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[start:cut]))
		start = cut
	}
	return chunks
}

func isChunkBreak(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
