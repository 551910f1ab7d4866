// internal/analysis/analyzer_test.go
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/models"
)

const structuredPayload = `{
  "personalInfo": {"fullName": "Dana Cruz", "email": "dana@example.com"},
  "summary": "Backend engineer.",
  "experience": [{"jobTitle": "Engineer", "company": "Acme", "highlights": ["built things"]}],
  "education": [{"institution": "State U", "degree": "BSc"}],
  "skills": {"technical": ["Go"], "tools": ["Docker"]}
}`

func newTestAnalyzer(t *testing.T, baseURL string) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "resume-parser-v2",
		Timeout: 5 * time.Second,
	}, logger.NewNoOpLogger())
	require.NoError(t, err)
	a.sleep = func(time.Duration) {}
	return a
}

func TestAnalyze_PreStructuredParsedWithoutServiceCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	resume, err := newTestAnalyzer(t, server.URL).
		Analyze(context.Background(), structuredPayload, models.ModeDocParseStruct)

	require.NoError(t, err)
	assert.Equal(t, "Dana Cruz", resume.PersonalInfo.FullName)
	assert.Len(t, resume.Experience, 1)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestAnalyze_BrokenPreStructuredFallsThroughToService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":%s}`, structuredPayload)
	}))
	defer server.Close()

	resume, err := newTestAnalyzer(t, server.URL).
		Analyze(context.Background(), "{not valid json", models.ModeDocParseStruct)

	require.NoError(t, err)
	assert.Equal(t, "Dana Cruz", resume.PersonalInfo.FullName)
}

func TestAnalyze_TruncatesInput(t *testing.T) {
	var gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req analysisRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotText = req.Text
		fmt.Fprintf(w, `{"data":%s}`, structuredPayload)
	}))
	defer server.Close()

	long := strings.Repeat("word ", 3000) // 15,000 chars
	_, err := newTestAnalyzer(t, server.URL).Analyze(context.Background(), long, models.ModeDocParse)

	require.NoError(t, err)
	assert.Len(t, []rune(gotText), maxAnalysisChars)
}

func TestAnalyze_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"data":%s}`, structuredPayload)
	}))
	defer server.Close()

	var delays []time.Duration
	a := newTestAnalyzer(t, server.URL)
	a.sleep = func(d time.Duration) { delays = append(delays, d) }

	resume, err := a.Analyze(context.Background(), "resume text", models.ModeDocParse)

	require.NoError(t, err)
	assert.Equal(t, "Dana Cruz", resume.PersonalInfo.FullName)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{retryDelay, retryDelay}, delays)
}

func TestAnalyze_RetriesExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestAnalyzer(t, server.URL).Analyze(context.Background(), "resume text", models.ModeDocParse)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAnalyze_SchemaViolationRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, `{"data":{"experience":"ten years"}}`)
			return
		}
		fmt.Fprintf(w, `{"data":%s}`, structuredPayload)
	}))
	defer server.Close()

	resume, err := newTestAnalyzer(t, server.URL).Analyze(context.Background(), "resume text", models.ModeDocParse)

	require.NoError(t, err)
	assert.NotNil(t, resume)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "Name\t\tRole\r\n\r\n\r\n\r\nSummary   line"
	out := normalizeWhitespace(in)
	assert.Equal(t, "Name Role\n\nSummary line", out)
}

func TestTruncateRunes(t *testing.T) {
	s, truncated := truncateRunes("short", 10)
	assert.Equal(t, "short", s)
	assert.False(t, truncated)

	s, truncated = truncateRunes(strings.Repeat("é", 20), 10)
	assert.True(t, truncated)
	assert.Equal(t, 10, len([]rune(s)))
}
