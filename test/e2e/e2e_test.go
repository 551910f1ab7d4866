// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"resume-ingest/internal/analysis"
	"resume-ingest/internal/common/config"
	"resume-ingest/internal/common/database"
	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/common/metrics"
	"resume-ingest/internal/dedup"
	"resume-ingest/internal/extraction"
	"resume-ingest/internal/indexing"
	"resume-ingest/internal/models"
	"resume-ingest/internal/notify"
	"resume-ingest/internal/repository"
	"resume-ingest/internal/storage"

	processresume "resume-ingest/internal/workers/ingestion/process-resume"
)

var (
	zeebeClient zbc.Client
	zapLog      *zap.Logger
)

func TestMain(m *testing.M) {
	var err error

	// Initialize Zeebe client with real connection
	zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         "localhost:26500",
		UsePlaintextConnection: true,
	})
	if err != nil {
		panic(fmt.Sprintf("❌ Failed to connect to Zeebe: %v", err))
	}

	// Initialize logger
	zapLog, _ = zap.NewProduction()

	// Run tests
	code := m.Run()

	// Cleanup
	zeebeClient.Close()
	os.Exit(code)
}

func TestFullE2E(t *testing.T) {
	_, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Load config
	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Log("🚀 Starting FULL E2E Test with real services...")

	// 1. Check all external services are available
	assertAllServicesConnectivity(t, cfg)

	// 2. Create DB tables if needed
	createDatabaseTables(t, cfg)

	// 3. Deploy all BPMN files
	deployAllBPMN(t, cfg, zapLog)

	// 4. Run the ingestion pipeline end to end with mocked providers
	testProcessResumePipeline(t, cfg, zapLog)

	t.Log("✅ ALL TESTS PASSED - Full E2E workflow successful!")
}

func assertAllServicesConnectivity(t *testing.T, cfg *config.Config) {
	t.Log("🔍 Checking service connectivity...")

	// 🔧 FORCE LOCALHOST FOR E2E TESTS
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Database.Elasticsearch.URL = "http://localhost:9200"

	// --- PostgreSQL ---
	db, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "❌ PostgreSQL connection failed")
	assert.NoError(t, db.Ping(context.Background()), "❌ PostgreSQL ping failed")
	db.Close()
	t.Log("✅ PostgreSQL connected")

	// --- Redis ---
	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "❌ Redis client creation failed")
	assert.NoError(t, rdb.Ping(context.Background()), "❌ Redis ping failed")
	t.Log("✅ Redis connected")

	// --- Elasticsearch ---
	esURL := cfg.Database.Elasticsearch.GetURL()
	t.Logf("🔗 Elasticsearch URL: %s", esURL)

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esURL},
	})
	require.NoError(t, err, "❌ Elasticsearch client creation failed")

	res, err := es.Info()
	require.NoError(t, err, "❌ Elasticsearch info request failed")
	assert.False(t, res.IsError(), "❌ Elasticsearch returned error")
	res.Body.Close()
	t.Log("✅ Elasticsearch connected")

	// --- Zeebe ---
	_, err = zeebeClient.NewTopologyCommand().Send(context.Background())
	assert.NoError(t, err, "❌ Zeebe topology request failed")
	t.Log("✅ Zeebe connected")
}

// ==========================
// 2. Database Tables Setup
// ==========================
func createDatabaseTables(t *testing.T, cfg *config.Config) {
	t.Log("🔧 Creating database tables...")

	dbClient, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer dbClient.Close()

	db := dbClient.GetDB()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS resumes (
			id VARCHAR(255) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			file_key TEXT NOT NULL,
			processing_status VARCHAR(50) NOT NULL DEFAULT 'pending',
			processing_error TEXT,
			content_text TEXT,
			parsed_sections JSONB,
			warnings JSONB,
			mode_used VARCHAR(100),
			truncated BOOLEAN DEFAULT false,
			page_count INTEGER DEFAULT 0,
			source_metadata JSONB DEFAULT '{}'::jsonb,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id, user_id)
		)`,
	}

	for _, query := range queries {
		_, err := db.ExecContext(context.Background(), query)
		if err != nil {
			t.Logf("Warning: Failed to create table: %v", err)
		}
	}

	t.Log("✅ Database tables created/verified")
}

// ==========================
// 3. Deploy All BPMN Files
// ==========================
func deployAllBPMN(t *testing.T, _ *config.Config, _ *zap.Logger) {
	t.Log("🏗️ Deploying BPMN files...")

	client := zeebeClient

	possiblePaths := []string{
		"bpmn",
		"../bpmn",
		"../../bpmn",
		"./bpmn",
	}

	var bpmnDir string
	var files []os.DirEntry
	var err error

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			files, err = os.ReadDir(path)
			if err == nil {
				bpmnDir = path
				t.Logf("📁 Found BPMN directory: %s", bpmnDir)
				break
			}
		}
	}

	if bpmnDir == "" {
		t.Log("⚠️ BPMN directory not found in any expected location, skipping deployment")
		return
	}

	require.NoError(t, err, "❌ Cannot read BPMN directory")

	bpmnCount := 0
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(f.Name()), ".bpmn") {
			continue
		}

		path := fmt.Sprintf("%s/%s", bpmnDir, f.Name())
		t.Logf("📄 Deploying BPMN: %s", path)

		_, err := client.NewDeployResourceCommand().AddResourceFile(path).Send(context.Background())
		if err != nil {
			t.Logf("⚠️ Failed to deploy BPMN %s: %v", f.Name(), err)
		} else {
			t.Logf("✅ Deployed: %s", f.Name())
			bpmnCount++
		}
	}

	if bpmnCount == 0 {
		t.Log("ℹ️ No BPMN files were successfully deployed")
	} else {
		t.Logf("✅ Successfully deployed %d BPMN files", bpmnCount)
	}
}

// ==========================
// 4. Ingestion Pipeline (real DB/Redis/ES, mocked providers)
// ==========================

// urlSigner returns plain download URLs for the local file server.
type urlSigner struct {
	baseURL string
}

func (s *urlSigner) GetSignedDownloadURL(_ context.Context, fileKey string, _ time.Duration) (string, error) {
	return s.baseURL + "/" + fileKey, nil
}

func mockDocParseServer(text string, pageCount int) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"documentId": "doc-e2e-1"})
	})
	mux.HandleFunc("/v1/documents/doc-e2e-1/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
	})
	mux.HandleFunc("/v1/documents/doc-e2e-1/result", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":       text,
			"format":     "text",
			"pageCount":  pageCount,
			"coverage":   0.95,
			"truncated":  false,
			"confidence": 0.9,
		})
	})
	return httptest.NewServer(mux)
}

func mockAnalysisServer() (*httptest.Server, *int32) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analysis", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		resume := models.StructuredResume{
			PersonalInfo: models.PersonalInfo{
				FullName: "Jordan Tester",
				Email:    "jordan@example.com",
			},
			Summary: "Backend engineer with six years of distributed systems experience.",
			Experience: []models.Experience{
				{JobTitle: "Software Engineer", Company: "Acme", StartDate: "2020-01"},
			},
			Skills: models.Skills{Technical: []string{"Go", "PostgreSQL"}},
		}
		data, _ := json.Marshal(resume)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": json.RawMessage(data)})
	})
	return httptest.NewServer(mux), &calls
}

func testProcessResumePipeline(t *testing.T, cfg *config.Config, log *zap.Logger) {
	t.Log("🧪 Running ingestion pipeline end to end...")

	ctx := context.Background()
	logAdapter := logger.NewZapAdapter(log)

	dbClient, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer dbClient.Close()

	redisClient, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	defer redisClient.Close()

	esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err)

	// Unique identifiers per run so dedup and the primary key never
	// collide with a previous execution.
	runID := fmt.Sprintf("%d", time.Now().UnixNano())
	resumeID := "e2e-resume-" + runID
	userID := "e2e-user-" + runID
	fileKey := "uploads/" + userID + "/resume.pdf"

	resumeText := strings.Repeat("Seasoned engineer shipping reliable services. ", 30)

	// Local stand-ins for the object store and the provider APIs.
	fileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake body"))
	}))
	defer fileServer.Close()

	docParseServer := mockDocParseServer(resumeText, 2)
	defer docParseServer.Close()

	analysisServer, analysisCalls := mockAnalysisServer()
	defer analysisServer.Close()

	// Seed the record the pipeline will update.
	_, err = dbClient.GetDB().ExecContext(ctx,
		`INSERT INTO resumes (id, user_id, file_key, processing_status, source_metadata)
		 VALUES ($1, $2, $3, 'pending', '{}'::jsonb)`,
		resumeID, userID, fileKey,
	)
	require.NoError(t, err)

	primary := extraction.NewDocParseProvider(extraction.DocParseConfig{
		BaseURL:      docParseServer.URL,
		Timeout:      10 * time.Second,
		PollInterval: 50 * time.Millisecond,
	}, logAdapter)

	vision := extraction.NewVisionClient(extraction.VisionConfig{
		BaseURL: docParseServer.URL,
		Timeout: 5 * time.Second,
	}, logAdapter)

	orchestrator := extraction.NewOrchestrator(
		primary,
		extraction.NewOfflineProvider(logAdapter),
		primary,
		vision,
		metrics.PipelineSink{},
		logAdapter,
	)

	analyzer, err := analysis.NewAnalyzer(analysis.Config{
		BaseURL: analysisServer.URL,
		Timeout: 10 * time.Second,
	}, logAdapter)
	require.NoError(t, err)

	gateway := storage.NewGateway(&urlSigner{baseURL: fileServer.URL}, storage.Config{
		URLTTL:          time.Minute,
		DownloadTimeout: 10 * time.Second,
		MaxFileBytes:    25 << 20,
	}, logAdapter)

	service := processresume.NewService(processresume.ServiceDependencies{
		Records:   repository.NewResumeRepository(dbClient, logAdapter),
		Fetcher:   gateway,
		Extractor: orchestrator,
		Analyzer:  analyzer,
		Deduper:   dedup.NewDeduper(redisClient, time.Hour, logAdapter),
		Indexer:   indexing.NewIndexer(esClient, indexing.Config{Index: "resume-content-e2e"}, logAdapter),
		Notifier:  notify.NewNotifier(nil, nil, notify.Config{}, logAdapter),
		Logger:    logAdapter,
	}, processresume.DefaultConfig())

	job := &models.ExtractionJob{
		ResumeID:   resumeID,
		UserID:     userID,
		FileKey:    fileKey,
		FileType:   "application/pdf",
		FileSize:   120000,
		EnqueuedAt: time.Now().Add(-2 * time.Second).UnixMilli(),
	}

	output, err := service.Execute(ctx, job)
	require.NoError(t, err)
	require.NotNil(t, output)
	assert.True(t, output.Success, "pipeline should complete: %+v", output)
	assert.Equal(t, models.StatusCompleted, output.Status)
	assert.Equal(t, models.ModeDocParse, output.ModeUsed)
	assert.Greater(t, output.TotalChars, 200)
	assert.Equal(t, 2, output.PageCount)

	// Verify the persisted record.
	var status, modeUsed, contentText string
	err = dbClient.GetDB().QueryRowContext(ctx,
		`SELECT processing_status, mode_used, content_text FROM resumes WHERE id = $1 AND user_id = $2`,
		resumeID, userID,
	).Scan(&status, &modeUsed, &contentText)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status)
	assert.Equal(t, models.ModeDocParse, modeUsed)
	assert.NotEmpty(t, contentText)

	// A second run of the same content completes as a duplicate and
	// skips the analysis pass entirely.
	callsBefore := atomic.LoadInt32(analysisCalls)
	resumeID2 := resumeID + "-dup"
	_, err = dbClient.GetDB().ExecContext(ctx,
		`INSERT INTO resumes (id, user_id, file_key, processing_status, source_metadata)
		 VALUES ($1, $2, $3, 'pending', '{}'::jsonb)`,
		resumeID2, userID, fileKey,
	)
	require.NoError(t, err)

	job2 := *job
	job2.ResumeID = resumeID2
	output2, err := service.Execute(ctx, &job2)
	require.NoError(t, err)
	assert.True(t, output2.Success)
	assert.True(t, output2.Duplicate)
	assert.Equal(t, callsBefore, atomic.LoadInt32(analysisCalls))

	t.Log("✅ Ingestion pipeline completed and persisted")
}
