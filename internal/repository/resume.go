// internal/repository/resume.go

// Package repository reads and updates resume records. The pipeline
// never overwrites source_metadata wholesale; updates are deep-merged
// into the stored tree under a row lock.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"resume-ingest/internal/common/database"
	"resume-ingest/internal/common/errors"
	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/metadata"
	"resume-ingest/internal/models"
)

// UpdateFields is a partial update; nil pointers leave the column
// untouched. SourceMetadata is merged, not replaced.
type UpdateFields struct {
	ProcessingStatus *string
	ProcessingError  *string
	ContentText      *string
	ParsedSections   *models.StructuredResume
	Warnings         []string
	ModeUsed         *string
	Truncated        *bool
	PageCount        *int
	SourceMetadata   map[string]interface{}
}

type ResumeRepository struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewResumeRepository(db *database.PostgresClient, log logger.Logger) *ResumeRepository {
	return &ResumeRepository{db: db, logger: log}
}

const getRecordQuery = `
SELECT id, user_id, file_key, processing_status, processing_error,
       content_text, parsed_sections, warnings, mode_used, truncated,
       page_count, source_metadata, updated_at
FROM resumes
WHERE id = $1 AND user_id = $2`

// GetRecord returns the record or nil when no row matches.
func (r *ResumeRepository) GetRecord(ctx context.Context, resumeID, userID string) (*models.ResumeRecord, error) {
	row := r.db.QueryRow(ctx, getRecordQuery, resumeID, userID)

	var (
		rec            models.ResumeRecord
		procErr        sql.NullString
		contentText    sql.NullString
		modeUsed       sql.NullString
		parsedSections []byte
		warnings       []byte
		sourceMetadata []byte
	)
	err := row.Scan(
		&rec.ResumeID, &rec.UserID, &rec.FileKey, &rec.ProcessingStatus,
		&procErr, &contentText, &parsedSections, &warnings, &modeUsed,
		&rec.Truncated, &rec.PageCount, &sourceMetadata, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resume record: %w", err)
	}

	rec.ProcessingError = procErr.String
	rec.ContentText = contentText.String
	rec.ModeUsed = modeUsed.String
	if len(parsedSections) > 0 {
		if err := json.Unmarshal(parsedSections, &rec.ParsedSections); err != nil {
			return nil, fmt.Errorf("decode parsed_sections: %w", err)
		}
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &rec.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	if len(sourceMetadata) > 0 {
		if err := json.Unmarshal(sourceMetadata, &rec.SourceMetadata); err != nil {
			return nil, fmt.Errorf("decode source_metadata: %w", err)
		}
	}
	return &rec, nil
}

// UpdateRecord applies the partial update. When metadata is present the
// stored tree is read under FOR UPDATE, merged, and written back in the
// same transaction so concurrent stage writes never erase siblings.
func (r *ResumeRepository) UpdateRecord(ctx context.Context, resumeID, userID string, fields UpdateFields) error {
	if fields.SourceMetadata != nil {
		return r.updateWithMetadata(ctx, resumeID, userID, fields)
	}

	set, args, err := buildSet(fields, nil)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return nil
	}
	return r.exec(ctx, r.db.DB, resumeID, userID, set, args)
}

func (r *ResumeRepository) updateWithMetadata(ctx context.Context, resumeID, userID string, fields UpdateFields) error {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metadata update: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT source_metadata FROM resumes WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		resumeID, userID,
	).Scan(&raw)
	if err != nil {
		return fmt.Errorf("lock resume record: %w", err)
	}

	base := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &base); err != nil {
			return fmt.Errorf("decode stored source_metadata: %w", err)
		}
	}
	merged, err := json.Marshal(metadata.Merge(base, fields.SourceMetadata))
	if err != nil {
		return fmt.Errorf("encode merged source_metadata: %w", err)
	}

	set, args, err := buildSet(fields, merged)
	if err != nil {
		return err
	}
	if err := r.exec(ctx, tx, resumeID, userID, set, args); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *ResumeRepository) exec(ctx context.Context, db execer, resumeID, userID string, set []string, args []interface{}) error {
	query := "UPDATE resumes SET " + strings.Join(set, ", ") +
		fmt.Sprintf(" WHERE id = $%d AND user_id = $%d", len(args)+1, len(args)+2)
	args = append(args, resumeID, userID)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update resume record: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NewRecordNotFoundError(resumeID, userID)
	}
	return nil
}

// buildSet assembles SET clauses in a fixed column order so queries are
// deterministic and testable.
func buildSet(fields UpdateFields, mergedMetadata []byte) ([]string, []interface{}, error) {
	var (
		set  []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.ProcessingStatus != nil {
		add("processing_status", *fields.ProcessingStatus)
	}
	if fields.ProcessingError != nil {
		add("processing_error", *fields.ProcessingError)
	}
	if fields.ContentText != nil {
		add("content_text", *fields.ContentText)
	}
	if fields.ParsedSections != nil {
		encoded, err := json.Marshal(fields.ParsedSections)
		if err != nil {
			return nil, nil, fmt.Errorf("encode parsed_sections: %w", err)
		}
		add("parsed_sections", encoded)
	}
	if fields.Warnings != nil {
		encoded, err := json.Marshal(fields.Warnings)
		if err != nil {
			return nil, nil, fmt.Errorf("encode warnings: %w", err)
		}
		add("warnings", encoded)
	}
	if fields.ModeUsed != nil {
		add("mode_used", *fields.ModeUsed)
	}
	if fields.Truncated != nil {
		add("truncated", *fields.Truncated)
	}
	if fields.PageCount != nil {
		add("page_count", *fields.PageCount)
	}
	if mergedMetadata != nil {
		add("source_metadata", mergedMetadata)
	}
	if len(set) > 0 {
		set = append(set, "updated_at = NOW()")
	}
	return set, args, nil
}
