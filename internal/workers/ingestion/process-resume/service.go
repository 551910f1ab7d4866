package processresume

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"resume-ingest/internal/common/errors"
	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/common/metrics"
	"resume-ingest/internal/common/validation"
	"resume-ingest/internal/coverage"
	"resume-ingest/internal/extraction"
	"resume-ingest/internal/indexing"
	"resume-ingest/internal/metadata"
	"resume-ingest/internal/models"
	"resume-ingest/internal/repository"
	"resume-ingest/internal/sla"
)

// duplicateNote marks records whose text was already processed for the
// same user; such records complete without a fresh analysis pass.
const duplicateNote = "content_duplicate: identical text already processed for this user"

// Collaborator contracts, satisfied by the concrete pipeline packages
// and by fakes in tests.
type recordStore interface {
	UpdateRecord(ctx context.Context, resumeID, userID string, fields repository.UpdateFields) error
}

type documentFetcher interface {
	Fetch(ctx context.Context, fileKey string) ([]byte, error)
}

type extractor interface {
	Orchestrate(ctx context.Context, fileBytes []byte, mimeType, userID string, check extraction.CheckpointFunc) (*models.ExtractionResult, error)
}

type resumeAnalyzer interface {
	Analyze(ctx context.Context, text, modeUsed string) (*models.StructuredResume, error)
}

type contentDeduper interface {
	CheckAndRecord(ctx context.Context, userID, text string) (bool, error)
}

type contentIndexer interface {
	IndexContent(ctx context.Context, resumeID, userID, content string, meta map[string]interface{}) *indexing.Result
}

type outcomeNotifier interface {
	JobFinished(ctx context.Context, job *models.ExtractionJob, status, reason string)
	EmailCompletion(ctx context.Context, recipient string, job *models.ExtractionJob)
}

type stageTracer interface {
	StartSpan(ctx context.Context, name, resumeID string) (context.Context, trace.Span)
}

type ServiceDependencies struct {
	Records   recordStore
	Fetcher   documentFetcher
	Extractor extractor
	Analyzer  resumeAnalyzer
	Deduper   contentDeduper
	Indexer   contentIndexer
	Notifier  outcomeNotifier
	Tracer    stageTracer
	Logger    logger.Logger
}

// Service runs the full ingestion pipeline for one job attempt.
type Service struct {
	deps   ServiceDependencies
	config *Config
	logger logger.Logger
}

func NewService(deps ServiceDependencies, cfg *Config) *Service {
	return &Service{
		deps:   deps,
		config: cfg,
		logger: deps.Logger,
	}
}

// Execute processes one queue event. Terminal pipeline outcomes are
// persisted on the record and returned as a failed Output; only
// infrastructure errors (storage, database) return a non-nil error so
// the broker can redeliver.
func (s *Service) Execute(ctx context.Context, job *models.ExtractionJob) (*Output, error) {
	tracker := sla.NewTracker(job)
	metrics.QueueLatency.Observe(float64(tracker.QueueLatencyMs()) / 1000)

	if breach := tracker.Check(sla.StagePreExtraction); breach != nil {
		// Breached before any work: zero provider calls, no fetch.
		return s.failTerminal(ctx, job, deadlineError(breach), breach.Reason(),
			breachMetadata(tracker, breach), nil)
	}

	if err := s.markProcessing(ctx, job); err != nil {
		return nil, err
	}

	fetchCtx, endFetch := s.startStage(ctx, "pipeline.fetch", job)
	fileBytes, err := s.deps.Fetcher.Fetch(fetchCtx, job.FileKey)
	endFetch()
	if err != nil {
		return nil, errors.NewStorageFetchFailedError(job.FileKey, err)
	}

	check := func(stage string) error {
		if breach := tracker.Check(stage); breach != nil {
			return breach
		}
		return nil
	}

	extractCtx, endExtract := s.startStage(ctx, "pipeline.extract", job)
	result, err := s.deps.Extractor.Orchestrate(extractCtx, fileBytes, job.FileType, job.UserID, check)
	endExtract()
	if err != nil {
		if breach := asBreach(err); breach != nil {
			return s.failTerminal(ctx, job, deadlineError(breach), breach.Reason(),
				breachMetadata(tracker, breach), nil)
		}
		return nil, err
	}

	if breach := tracker.Check(sla.StagePostExtraction); breach != nil {
		meta := metadata.Merge(breachMetadata(tracker, breach),
			metadata.Tree("extraction", extractionMetadata(result)))
		return s.failTerminal(ctx, job, deadlineError(breach), breach.Reason(), meta, result.Warnings)
	}

	if result.TotalChars == 0 && result.Err != "" {
		return s.failTerminal(ctx, job, errors.NewExtractionFailedError(result.Err),
			models.FailureExtraction, map[string]interface{}{
				"sla":        tracker.Metadata(),
				"extraction": extractionMetadata(result),
			}, result.Warnings)
	}

	stats := coverage.Validate(result)
	if !coverage.Sufficient(result, stats) {
		metrics.CoverageFailures.WithLabelValues(models.FailureCoverage).Inc()
		details := fmt.Sprintf("totalChars=%d avgCharsPerPage=%.1f", stats.TotalChars, stats.AvgCharsPerPage)
		return s.failTerminal(ctx, job, errors.NewCoverageInsufficientError(details),
			models.FailureCoverage, map[string]interface{}{
				"sla":        tracker.Metadata(),
				"extraction": extractionMetadata(result),
				"coverage":   coverageMetadata(stats, nil),
			}, result.Warnings)
	}

	// Content already processed for this user completes without another
	// analysis pass; the stored sections from the first sight stand.
	if s.checkDuplicate(ctx, job, result) {
		return s.complete(ctx, job, tracker, result, stats, nil, nil, true)
	}

	if breach := tracker.Check(sla.StagePreAnalysis); breach != nil {
		meta := metadata.Merge(breachMetadata(tracker, breach),
			metadata.Tree("extraction", extractionMetadata(result)))
		return s.failTerminal(ctx, job, deadlineError(breach), breach.Reason(), meta, result.Warnings)
	}

	analyzeCtx, endAnalyze := s.startStage(ctx, "pipeline.analyze", job)
	parsed, err := s.deps.Analyzer.Analyze(analyzeCtx, result.Text, result.ModeUsed)
	endAnalyze()
	if err != nil {
		return s.failTerminal(ctx, job, errors.NewAnalysisFailedError(err),
			models.FailureAnalysis, map[string]interface{}{
				"sla":        tracker.Metadata(),
				"extraction": extractionMetadata(result),
				"coverage":   coverageMetadata(stats, nil),
			}, result.Warnings)
	}

	sections := coverage.CheckSections(parsed)
	if !sections.MeetsMinimum {
		metrics.CoverageFailures.WithLabelValues(models.FailureSectionCoverage).Inc()
		return s.failTerminal(ctx, job, errors.NewSectionCoverageFailedError(sections.Missing),
			models.FailureSectionCoverage, map[string]interface{}{
				"sla":        tracker.Metadata(),
				"extraction": extractionMetadata(result),
				"coverage":   coverageMetadata(stats, sections),
			}, result.Warnings)
	}

	return s.complete(ctx, job, tracker, result, stats, parsed, sections, false)
}

// complete persists the terminal success state and runs the best-effort
// tail (indexing, notifications). parsed is nil on the duplicate path.
func (s *Service) complete(ctx context.Context, job *models.ExtractionJob, tracker *sla.Tracker, result *models.ExtractionResult, stats *models.CoverageStats, parsed *models.StructuredResume, sections *models.SectionCoverage, duplicate bool) (*Output, error) {
	warnings := result.Warnings
	if duplicate {
		warnings = append(warnings, duplicateNote)
	}
	warnings = append(warnings, contactWarnings(parsed)...)

	completedAt := time.Now().UnixMilli()
	slaMeta := tracker.Metadata()
	slaMeta["completedAt"] = completedAt
	if job.EnqueuedAt > 0 {
		slaMeta["totalElapsedMs"] = completedAt - job.EnqueuedAt
	}

	status := models.StatusCompleted
	update := repository.UpdateFields{
		ProcessingStatus: &status,
		ContentText:      &result.Text,
		ParsedSections:   parsed,
		Warnings:         warnings,
		ModeUsed:         &result.ModeUsed,
		Truncated:        &result.Truncated,
		PageCount:        &result.PageCount,
		SourceMetadata: map[string]interface{}{
			"sla":        slaMeta,
			"extraction": extractionMetadata(result),
			"coverage":   coverageMetadata(stats, sections),
			"pipeline": map[string]interface{}{
				"duplicate": duplicate,
			},
			"storage": map[string]interface{}{
				"fileKey":  job.FileKey,
				"fileSize": job.FileSize,
			},
		},
	}
	persistCtx, endPersist := s.startStage(ctx, "pipeline.persist", job)
	err := s.deps.Records.UpdateRecord(persistCtx, job.ResumeID, job.UserID, update)
	endPersist()
	if err != nil {
		return nil, asInfrastructureError(job.ResumeID, err)
	}

	chunksIndexed := s.indexContent(ctx, job, result)
	s.notifyFinished(ctx, job, models.StatusCompleted, "")
	s.emailCompletion(ctx, job, parsed)

	s.logger.Info("resume processed", map[string]interface{}{
		"resumeId":   job.ResumeID,
		"userId":     job.UserID,
		"modeUsed":   result.ModeUsed,
		"totalChars": result.TotalChars,
		"pageCount":  result.PageCount,
		"duplicate":  duplicate,
	})

	return &Output{
		Success:       true,
		Status:        models.StatusCompleted,
		ModeUsed:      result.ModeUsed,
		TotalChars:    result.TotalChars,
		PageCount:     result.PageCount,
		Truncated:     result.Truncated,
		ChunksIndexed: chunksIndexed,
		Duplicate:     duplicate,
		Warnings:      warnings,
	}, nil
}

func (s *Service) markProcessing(ctx context.Context, job *models.ExtractionJob) error {
	status := models.StatusProcessing
	err := s.deps.Records.UpdateRecord(ctx, job.ResumeID, job.UserID, repository.UpdateFields{
		ProcessingStatus: &status,
	})
	if err != nil {
		return asInfrastructureError(job.ResumeID, err)
	}
	return nil
}

// failTerminal persists the failure on the record and completes the
// attempt with a failed Output carrying the typed error code.
// Persistence errors surface as retryable infrastructure errors instead.
func (s *Service) failTerminal(ctx context.Context, job *models.ExtractionJob, stdErr *errors.StandardError, reason string, meta map[string]interface{}, warnings []string) (*Output, error) {
	if reasonIsBreach(reason) {
		metrics.SLABreaches.WithLabelValues(lastStage(meta)).Inc()
	}

	status := models.StatusFailed
	update := repository.UpdateFields{
		ProcessingStatus: &status,
		ProcessingError:  &reason,
		Warnings:         warnings,
		SourceMetadata:   meta,
	}
	if err := s.deps.Records.UpdateRecord(ctx, job.ResumeID, job.UserID, update); err != nil {
		return nil, asInfrastructureError(job.ResumeID, err)
	}

	s.notifyFinished(ctx, job, models.StatusFailed, reason)

	s.logger.Warn("resume processing failed", map[string]interface{}{
		"resumeId":  job.ResumeID,
		"userId":    job.UserID,
		"reason":    reason,
		"errorCode": string(stdErr.Code),
	})

	return &Output{
		Success:       false,
		Status:        models.StatusFailed,
		FailureReason: reason,
		ErrorCode:     string(stdErr.Code),
		Warnings:      warnings,
	}, nil
}

// checkDuplicate is best effort; a Redis outage never fails the job.
func (s *Service) checkDuplicate(ctx context.Context, job *models.ExtractionJob, result *models.ExtractionResult) bool {
	if s.deps.Deduper == nil {
		return false
	}
	duplicate, err := s.deps.Deduper.CheckAndRecord(ctx, job.UserID, result.Text)
	if err != nil {
		s.logger.Warn("dedup check failed, continuing", map[string]interface{}{
			"resumeId": job.ResumeID,
			"error":    err.Error(),
		})
		return false
	}
	return duplicate
}

// indexContent is best effort; search lag is acceptable, data loss on
// the record is not.
func (s *Service) indexContent(ctx context.Context, job *models.ExtractionJob, result *models.ExtractionResult) int {
	if s.deps.Indexer == nil {
		return 0
	}
	res := s.deps.Indexer.IndexContent(ctx, job.ResumeID, job.UserID, result.Text, map[string]interface{}{
		"modeUsed":  result.ModeUsed,
		"pageCount": result.PageCount,
	})
	if !res.Success {
		s.logger.Warn("content indexing failed", map[string]interface{}{
			"resumeId": job.ResumeID,
			"error":    res.Err,
		})
	}
	return res.ChunksIndexed
}

func (s *Service) notifyFinished(ctx context.Context, job *models.ExtractionJob, status, reason string) {
	if s.deps.Notifier == nil {
		return
	}
	s.deps.Notifier.JobFinished(ctx, job, status, reason)
}

// emailCompletion fires only when analysis produced a plausible address.
func (s *Service) emailCompletion(ctx context.Context, job *models.ExtractionJob, parsed *models.StructuredResume) {
	if s.deps.Notifier == nil || parsed == nil {
		return
	}
	email := parsed.PersonalInfo.Email
	if email == "" || !validation.IsValidEmail(email) {
		return
	}
	s.deps.Notifier.EmailCompletion(ctx, email, job)
}

// startStage opens a span for one pipeline stage when tracing is wired.
func (s *Service) startStage(ctx context.Context, name string, job *models.ExtractionJob) (context.Context, func()) {
	if s.deps.Tracer == nil {
		return ctx, func() {}
	}
	spanCtx, span := s.deps.Tracer.StartSpan(ctx, name, job.ResumeID)
	return spanCtx, func() { span.End() }
}

// contactWarnings flags parsed contact fields that fail format checks;
// bad contact data is a warning, never a terminal failure.
func contactWarnings(parsed *models.StructuredResume) []string {
	if parsed == nil {
		return nil
	}
	var w []string
	if email := parsed.PersonalInfo.Email; email != "" && !validation.IsValidEmail(email) {
		w = append(w, "contact email failed format validation")
	}
	if phone := parsed.PersonalInfo.Phone; phone != "" && !validation.IsValidPhone(phone) {
		w = append(w, "contact phone failed format validation")
	}
	return w
}

func asBreach(err error) *sla.Breach {
	var breach *sla.Breach
	if stderrors.As(err, &breach) {
		return breach
	}
	return nil
}

func deadlineError(breach *sla.Breach) *errors.StandardError {
	return errors.NewDeadlineExceededError(breach.Stage, breach.Reason() == models.FailureDeadlinePreStart)
}

// breachMetadata layers the breach details over the tracker snapshot;
// both supply the sla sub-tree, so they merge instead of clobbering.
func breachMetadata(tracker *sla.Tracker, breach *sla.Breach) map[string]interface{} {
	return metadata.Merge(
		metadata.Tree("sla", tracker.Metadata()),
		metadata.Tree("sla", breach.Metadata()),
	)
}

// asInfrastructureError keeps already-typed repository errors (missing
// record) intact; anything else becomes a retryable update failure.
func asInfrastructureError(resumeID string, err error) *errors.StandardError {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return errors.NewRecordUpdateFailedError(resumeID, err)
}

func reasonIsBreach(reason string) bool {
	return reason == models.FailureDeadline || reason == models.FailureDeadlinePreStart
}

func lastStage(meta map[string]interface{}) string {
	slaMeta, ok := meta["sla"].(map[string]interface{})
	if !ok {
		return "unknown"
	}
	stage, ok := slaMeta["breachedStage"].(string)
	if !ok {
		return "unknown"
	}
	return stage
}

func extractionMetadata(result *models.ExtractionResult) map[string]interface{} {
	m := map[string]interface{}{
		"modeUsed":   result.ModeUsed,
		"totalChars": result.TotalChars,
		"pageCount":  result.PageCount,
		"truncated":  result.Truncated,
		"coverage":   result.Coverage,
	}
	if result.Provider != "" {
		m["provider"] = result.Provider
	}
	if result.Retries > 0 {
		m["retries"] = result.Retries
	}
	if result.Confidence > 0 {
		m["confidence"] = result.Confidence
	}
	if result.Err != "" {
		m["error"] = result.Err
	}
	return m
}

func coverageMetadata(stats *models.CoverageStats, sections *models.SectionCoverage) map[string]interface{} {
	m := map[string]interface{}{
		"totalChars":           stats.TotalChars,
		"pageCount":            stats.PageCount,
		"avgCharsPerPage":      stats.AvgCharsPerPage,
		"meetsTotalChars":      stats.MeetsTotalChars,
		"meetsPerPageAvg":      stats.MeetsPerPageAvg,
		"meetsEitherThreshold": stats.MeetsEitherThreshold,
	}
	if len(stats.PagesBelowThreshold) > 0 {
		m["pagesBelowThreshold"] = stats.PagesBelowThreshold
	}
	if sections != nil {
		sm := map[string]interface{}{
			"sectionsMet":  sections.SectionsMet,
			"meetsMinimum": sections.MeetsMinimum,
		}
		if len(sections.Missing) > 0 {
			sm["missing"] = sections.Missing
		}
		m["sections"] = sm
	}
	return m
}
