// internal/models/resume.go
package models

import "time"

// Processing status values for a resume record. A record moves
// pending -> processing -> completed|failed; failed is terminal for
// the attempt, the broker may dispatch a fresh attempt of the same job.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Failure reasons written to processing_error on terminal failure.
const (
	FailureDeadlinePreStart = "deadline_exceeded_pre_start"
	FailureDeadline         = "deadline_exceeded"
	FailureCoverage         = "coverage_insufficient"
	FailureSectionCoverage  = "section_coverage_failed"
	FailureAnalysis         = "analysis_failed_after_retries"
	FailureExtraction       = "extraction_error"
)

// Extraction modes reported by providers.
const (
	ModeDocParse       = "docparse"
	ModeOfflinePDF     = "offline_pdf"
	ModeOfflineDocx    = "offline_docx"
	ModeAIVision       = "ai_vision_fallback"
	ModeDocParseStruct = "docparse_structured"
)

// ExtractionJob is the queue event for one upload. Immutable; consumed
// exactly once per attempt. Timestamps are unix milliseconds.
type ExtractionJob struct {
	ResumeID   string `json:"resumeId"`
	UserID     string `json:"userId"`
	FileKey    string `json:"fileKey"`
	FileType   string `json:"fileType"`
	FileSize   int64  `json:"fileSize"`
	EnqueuedAt int64  `json:"enqueuedAt,omitempty"`
	DeadlineAt int64  `json:"deadlineAt,omitempty"`
}

// EnqueuedTime returns the enqueue timestamp, zero if unset.
func (j ExtractionJob) EnqueuedTime() time.Time {
	if j.EnqueuedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(j.EnqueuedAt)
}

// DeadlineTime returns the job deadline, zero if the caller supplied none.
func (j ExtractionJob) DeadlineTime() time.Time {
	if j.DeadlineAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(j.DeadlineAt)
}

// PageStats holds per-page character counts for diagnostics.
type PageStats struct {
	Page           int  `json:"page"`
	Chars          int  `json:"chars"`
	BelowThreshold bool `json:"belowThreshold"`
}

// ExtractionResult is the uniform output of every extraction strategy
// and of the orchestrator. Invariant: TotalChars == len(trimmed Text).
type ExtractionResult struct {
	Text         string      `json:"text"`
	TotalChars   int         `json:"totalChars"`
	PageCount    int         `json:"pageCount"`
	Warnings     []string    `json:"warnings"`
	ModeUsed     string      `json:"modeUsed"`
	Truncated    bool        `json:"truncated"`
	Coverage     float64     `json:"coverage"`
	PerPageStats []PageStats `json:"perPageStats,omitempty"`
	Provider     string      `json:"provider,omitempty"`
	Retries      int         `json:"retries,omitempty"`
	Confidence   float64     `json:"confidence,omitempty"`
	Err          string      `json:"error,omitempty"`
}

// CoverageThresholds are the gate constants applied by the coverage
// validator.
type CoverageThresholds struct {
	TotalChars   int `json:"totalChars"`
	PerPageChars int `json:"perPageChars"`
}

// CoverageStats is derived from an ExtractionResult on every run; it is
// never persisted independently of the job it describes.
type CoverageStats struct {
	Thresholds           CoverageThresholds `json:"thresholds"`
	TotalChars           int                `json:"totalChars"`
	PageCount            int                `json:"pageCount"`
	AvgCharsPerPage      float64            `json:"avgCharsPerPage"`
	MinCharsPerPage      int                `json:"minCharsPerPage"`
	PerPageStats         []PageStats        `json:"perPageStats,omitempty"`
	MeetsTotalChars      bool               `json:"meetsTotalChars"`
	MeetsPerPageAvg      bool               `json:"meetsPerPageAvg"`
	MeetsEitherThreshold bool               `json:"meetsEitherThreshold"`
	PagesBelowThreshold  []int              `json:"pagesBelowThreshold,omitempty"`
}

// PersonalInfo carries contact details; every field is optional.
type PersonalInfo struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

// Experience is one work history entry.
type Experience struct {
	JobTitle   string   `json:"jobTitle,omitempty"`
	Company    string   `json:"company,omitempty"`
	StartDate  string   `json:"startDate,omitempty"`
	EndDate    string   `json:"endDate,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// Education is one education entry.
type Education struct {
	Institution string `json:"institution,omitempty"`
	Degree      string `json:"degree,omitempty"`
}

// Skills groups skill strings into buckets.
type Skills struct {
	Technical []string `json:"technical,omitempty"`
	Tools     []string `json:"tools,omitempty"`
}

// StructuredResume is the typed schema the analyzer produces. Partial
// and missing fields are expected and valid.
type StructuredResume struct {
	PersonalInfo PersonalInfo `json:"personalInfo"`
	Summary      string       `json:"summary,omitempty"`
	Experience   []Experience `json:"experience,omitempty"`
	Education    []Education  `json:"education,omitempty"`
	Skills       Skills       `json:"skills"`
}

// SectionFlags marks which canonical resume sections are present.
type SectionFlags struct {
	Summary    bool `json:"summary"`
	Experience bool `json:"experience"`
	Education  bool `json:"education"`
	Skills     bool `json:"skills"`
	Contact    bool `json:"contact"`
}

// SectionCoverage is derived from a StructuredResume by the section
// coverage validator.
type SectionCoverage struct {
	Flags        SectionFlags `json:"flags"`
	SectionsMet  int          `json:"sectionsMet"`
	Missing      []string     `json:"missing,omitempty"`
	MeetsMinimum bool         `json:"meetsMinimum"`
}

// ResumeRecord mirrors the persisted resumes row the pipeline reads and
// updates. SourceMetadata is an opaque nested tree the stages deep-merge
// into; no stage owns it.
type ResumeRecord struct {
	ResumeID         string                 `json:"resumeId"`
	UserID           string                 `json:"userId"`
	FileKey          string                 `json:"fileKey"`
	ProcessingStatus string                 `json:"processingStatus"`
	ProcessingError  string                 `json:"processingError,omitempty"`
	ContentText      string                 `json:"contentText,omitempty"`
	ParsedSections   *StructuredResume      `json:"parsedSections,omitempty"`
	Warnings         []string               `json:"warnings,omitempty"`
	ModeUsed         string                 `json:"modeUsed,omitempty"`
	Truncated        bool                   `json:"truncated"`
	PageCount        int                    `json:"pageCount"`
	SourceMetadata   map[string]interface{} `json:"sourceMetadata,omitempty"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}
