// internal/coverage/sections_test.go
package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"resume-ingest/internal/models"
)

func TestCheckSections_AllPresent(t *testing.T) {
	resume := &models.StructuredResume{
		PersonalInfo: models.PersonalInfo{FullName: "Dana Cruz", Email: "dana@example.com"},
		Summary:      "Backend engineer with ten years of Go.",
		Experience:   []models.Experience{{JobTitle: "Engineer", Company: "Acme"}},
		Education:    []models.Education{{Institution: "State U", Degree: "BSc"}},
		Skills:       models.Skills{Technical: []string{"Go", "Postgres"}},
	}

	sc := CheckSections(resume)

	assert.Equal(t, 5, sc.SectionsMet)
	assert.True(t, sc.MeetsMinimum)
	assert.Empty(t, sc.Missing)
}

func TestCheckSections_ThreeOfFivePasses(t *testing.T) {
	resume := &models.StructuredResume{
		Summary:    "Short profile.",
		Experience: []models.Experience{{Company: "Acme"}},
		Education:  []models.Education{{Institution: "State U"}},
	}

	sc := CheckSections(resume)

	assert.Equal(t, 3, sc.SectionsMet)
	assert.True(t, sc.MeetsMinimum)
	assert.Equal(t, []string{"contact", "skills"}, sc.Missing)
}

func TestCheckSections_TwoOfFiveFails(t *testing.T) {
	resume := &models.StructuredResume{
		PersonalInfo: models.PersonalInfo{Phone: "+15550100"},
		Skills:       models.Skills{Tools: []string{"Docker"}},
	}

	sc := CheckSections(resume)

	assert.Equal(t, 2, sc.SectionsMet)
	assert.False(t, sc.MeetsMinimum)
	assert.Equal(t, []string{"education", "experience", "summary"}, sc.Missing)
}

func TestCheckSections_WhitespaceDoesNotCount(t *testing.T) {
	resume := &models.StructuredResume{
		Summary: "   ",
		Skills:  models.Skills{Technical: []string{"", "  "}},
	}

	sc := CheckSections(resume)

	assert.False(t, sc.Flags.Summary)
	assert.False(t, sc.Flags.Skills)
	assert.Equal(t, 0, sc.SectionsMet)
}

func TestCheckSections_MeetsMinimumMatchesCount(t *testing.T) {
	resume := &models.StructuredResume{
		PersonalInfo: models.PersonalInfo{Location: "Berlin"},
		Experience:   []models.Experience{{JobTitle: "Dev"}},
	}

	sc := CheckSections(resume)
	assert.Equal(t, sc.SectionsMet >= MinSectionsMet, sc.MeetsMinimum)
}
