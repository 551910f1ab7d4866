// internal/analysis/schema.go
package analysis

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// resumeSchema is the contract sent to the analysis service and applied
// to everything it returns. Every field is optional; partial resumes
// are valid output.
const resumeSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "personalInfo": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "fullName": {"type": "string"},
        "email": {"type": "string"},
        "phone": {"type": "string"},
        "location": {"type": "string"}
      }
    },
    "summary": {"type": "string"},
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "jobTitle": {"type": "string"},
          "company": {"type": "string"},
          "startDate": {"type": "string"},
          "endDate": {"type": "string"},
          "highlights": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "institution": {"type": "string"},
          "degree": {"type": "string"}
        }
      }
    },
    "skills": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "technical": {"type": "array", "items": {"type": "string"}},
        "tools": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

func compileResumeSchema() (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resumeSchema))
	if err != nil {
		return nil, fmt.Errorf("compile resume schema: %w", err)
	}
	return schema, nil
}

// validateAgainstSchema checks a raw JSON document against the resume
// schema and flattens violations into one error.
func validateAgainstSchema(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("resume payload violates schema: %s", strings.Join(msgs, "; "))
}
