// internal/common/validation/validation_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredString(t *testing.T) {
	variables := map[string]interface{}{
		"resumeId": "res-1",
		"fileKey":  "",
		"fileSize": 84213.0,
	}

	value, err := RequiredString(variables, "resumeId")
	require.NoError(t, err)
	assert.Equal(t, "res-1", value)

	_, err = RequiredString(variables, "fileKey")
	require.Error(t, err)
	assert.Equal(t, "fileKey is required", err.Error())

	_, err = RequiredString(variables, "userId")
	require.Error(t, err)
	assert.Equal(t, "userId is required", err.Error())

	// Wrong type is as bad as missing.
	_, err = RequiredString(variables, "fileSize")
	require.Error(t, err)
}

func TestOptionalInt64(t *testing.T) {
	variables := map[string]interface{}{
		"fileSize":   84213.0,
		"enqueuedAt": "not a number",
	}

	assert.Equal(t, int64(84213), OptionalInt64(variables, "fileSize"))
	assert.Equal(t, int64(0), OptionalInt64(variables, "enqueuedAt"))
	assert.Equal(t, int64(0), OptionalInt64(variables, "deadlineAt"))
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{
		"dana@example.com",
		"dana.jones+resumes@sub.example.co.uk",
	}
	invalid := []string{
		"",
		"dana",
		"dana@",
		"@example.com",
		"dana example@example.com",
	}

	for _, email := range valid {
		assert.True(t, IsValidEmail(email), email)
	}
	for _, email := range invalid {
		assert.False(t, IsValidEmail(email), email)
	}
}

func TestIsValidPhone(t *testing.T) {
	valid := []string{
		"+31 6 12345678",
		"020-555-0173",
		"(040) 555 0199",
	}
	invalid := []string{
		"",
		"call me",
		"+",
		"12",
	}

	for _, phone := range valid {
		assert.True(t, IsValidPhone(phone), phone)
	}
	for _, phone := range invalid {
		assert.False(t, IsValidPhone(phone), phone)
	}
}
