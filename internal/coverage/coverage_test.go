// internal/coverage/coverage_test.go
package coverage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"resume-ingest/internal/models"
)

func resultWith(text string, pages int, perPage []int) *models.ExtractionResult {
	r := &models.ExtractionResult{
		Text:       text,
		TotalChars: len(strings.TrimSpace(text)),
		PageCount:  pages,
	}
	for i, chars := range perPage {
		r.PerPageStats = append(r.PerPageStats, models.PageStats{Page: i + 1, Chars: chars})
	}
	return r
}

func TestValidate_EitherThresholdIsDisjunction(t *testing.T) {
	tests := []struct {
		name       string
		totalChars int
		pages      int
		wantEither bool
	}{
		{"big total, many pages", 12000, 40, true},
		{"small total, dense pages", 2700, 3, true}, // 900/page
		{"small total, sparse pages", 2700, 10, false},
		{"exactly soft total", 10000, 50, true},
		{"exactly per-page avg", 800, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &models.ExtractionResult{TotalChars: tt.totalChars, PageCount: tt.pages}
			stats := Validate(r)
			assert.Equal(t, tt.wantEither, stats.MeetsEitherThreshold)
			assert.Equal(t, stats.MeetsTotalChars || stats.MeetsPerPageAvg, stats.MeetsEitherThreshold)
		})
	}
}

func TestValidate_ZeroPageCountAveragesOverOne(t *testing.T) {
	r := &models.ExtractionResult{TotalChars: 900, PageCount: 0}
	stats := Validate(r)
	assert.Equal(t, float64(900), stats.AvgCharsPerPage)
	assert.True(t, stats.MeetsPerPageAvg)
}

func TestValidate_PerPageDiagnostics(t *testing.T) {
	r := resultWith(strings.Repeat("x", 2000), 3, []int{1200, 300, 500})

	stats := Validate(r)

	assert.Equal(t, []int{2, 3}, stats.PagesBelowThreshold)
	assert.Equal(t, 300, stats.MinCharsPerPage)
	assert.False(t, stats.PerPageStats[0].BelowThreshold)
	assert.True(t, stats.PerPageStats[1].BelowThreshold)
}

func TestSufficient_HardMinimumDominates(t *testing.T) {
	// 150 chars on a single page would pass neither branch, but even a
	// result that passed per-page math must fail below the hard floor.
	r := resultWith(strings.Repeat("a", 150), 1, nil)
	stats := Validate(r)
	assert.False(t, Sufficient(r, stats))

	empty := resultWith("   ", 1, nil)
	assert.False(t, Sufficient(empty, Validate(empty)))
}

func TestSufficient_ScenarioThreePageDocx(t *testing.T) {
	// 9,000 chars over 3 pages: under the absolute threshold but the
	// per-page average (3,000) clears the soft gate.
	r := resultWith(strings.Repeat("b", 9000), 3, []int{3000, 3000, 3000})
	stats := Validate(r)

	assert.False(t, stats.MeetsTotalChars)
	assert.True(t, stats.MeetsPerPageAvg)
	assert.True(t, Sufficient(r, stats))
}

func TestSufficient_VisionRescueStillFailsHardMinimum(t *testing.T) {
	// 80 transcribed chars from the vision fallback: mode succeeded,
	// coverage gate still rejects.
	r := resultWith(strings.Repeat("c", 80), 1, nil)
	r.ModeUsed = models.ModeAIVision
	r.Coverage = 0.5

	assert.False(t, Sufficient(r, Validate(r)))
}
