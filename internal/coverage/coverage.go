// internal/coverage/coverage.go

// Package coverage gates extraction output on character and section
// coverage before any downstream analysis spend.
package coverage

import (
	"strings"

	"resume-ingest/internal/models"
)

// Gate thresholds. The hard minimum is absolute: below it the job fails
// regardless of any other metric. The soft gate passes on either branch.
const (
	HardMinChars   = 200
	SoftTotalChars = 10000
	SoftPerPageAvg = 800
	MinSectionsMet = 3
)

// Validate computes coverage statistics for an extraction result. It
// never errors; callers decide the gate outcome from the stats plus
// Sufficient.
func Validate(result *models.ExtractionResult) *models.CoverageStats {
	pageCount := result.PageCount
	if pageCount < 1 {
		pageCount = 1
	}

	avg := float64(result.TotalChars) / float64(pageCount)

	stats := &models.CoverageStats{
		Thresholds: models.CoverageThresholds{
			TotalChars:   SoftTotalChars,
			PerPageChars: SoftPerPageAvg,
		},
		TotalChars:      result.TotalChars,
		PageCount:       result.PageCount,
		AvgCharsPerPage: avg,
		MeetsTotalChars: result.TotalChars >= SoftTotalChars,
		MeetsPerPageAvg: avg >= SoftPerPageAvg,
	}
	stats.MeetsEitherThreshold = stats.MeetsTotalChars || stats.MeetsPerPageAvg

	minChars := -1
	for _, ps := range result.PerPageStats {
		below := ps.Chars < SoftPerPageAvg
		stats.PerPageStats = append(stats.PerPageStats, models.PageStats{
			Page:           ps.Page,
			Chars:          ps.Chars,
			BelowThreshold: below,
		})
		if below {
			stats.PagesBelowThreshold = append(stats.PagesBelowThreshold, ps.Page)
		}
		if minChars < 0 || ps.Chars < minChars {
			minChars = ps.Chars
		}
	}
	if minChars >= 0 {
		stats.MinCharsPerPage = minChars
	}

	return stats
}

// Sufficient reports whether the result clears both the hard minimum
// and the soft threshold. The hard minimum dominates: an empty or
// near-empty text fails even if per-page math would pass.
func Sufficient(result *models.ExtractionResult, stats *models.CoverageStats) bool {
	if strings.TrimSpace(result.Text) == "" || result.TotalChars < HardMinChars {
		return false
	}
	return stats.MeetsEitherThreshold
}
