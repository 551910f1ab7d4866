// internal/coverage/sections.go
package coverage

import (
	"sort"
	"strings"

	"resume-ingest/internal/models"
)

// CheckSections derives section coverage from a structured resume.
// A section counts as present only with real content: trimmed non-empty
// summary, non-empty experience/education arrays, at least one non-empty
// skill string, or any contact field set.
func CheckSections(resume *models.StructuredResume) *models.SectionCoverage {
	flags := models.SectionFlags{
		Summary:    strings.TrimSpace(resume.Summary) != "",
		Experience: len(resume.Experience) > 0,
		Education:  len(resume.Education) > 0,
		Skills:     hasAnySkill(resume.Skills),
		Contact:    hasContact(resume.PersonalInfo),
	}

	sc := &models.SectionCoverage{Flags: flags}
	for name, present := range map[string]bool{
		"summary":    flags.Summary,
		"experience": flags.Experience,
		"education":  flags.Education,
		"skills":     flags.Skills,
		"contact":    flags.Contact,
	} {
		if present {
			sc.SectionsMet++
		} else {
			sc.Missing = append(sc.Missing, name)
		}
	}
	// Deterministic order for persisted metadata and tests.
	sort.Strings(sc.Missing)
	sc.MeetsMinimum = sc.SectionsMet >= MinSectionsMet
	return sc
}

func hasAnySkill(s models.Skills) bool {
	for _, bucket := range [][]string{s.Technical, s.Tools} {
		for _, skill := range bucket {
			if strings.TrimSpace(skill) != "" {
				return true
			}
		}
	}
	return false
}

func hasContact(p models.PersonalInfo) bool {
	return p.FullName != "" || p.Email != "" || p.Phone != "" || p.Location != ""
}
