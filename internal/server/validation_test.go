package server

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validate(t *testing.T, payload any) string {
	t.Helper()
	registerValidation()
	err := binding.Validator.ValidateStruct(payload)
	if err == nil {
		return ""
	}
	return validationDetail(err)
}

func TestValidationReportsJSONFieldNames(t *testing.T) {
	assert.Equal(t, "pain_level must be at most 10", validate(t, createPainLogRequest{PainLevel: intPtr(11)}))
	assert.Equal(t, "pain_level must be at least 0", validate(t, createPainLogRequest{PainLevel: intPtr(-1)}))
	assert.Equal(t, "message is required", validate(t, chatRequest{}))
}

func TestValidationImpactRule(t *testing.T) {
	assert.Empty(t, validate(t, createPainLogRequest{FunctionalImpact: "Bed-Bound"}))
	assert.Empty(t, validate(t, createPainLogRequest{}))
	assert.Equal(t,
		"functional_impact must be one of: none, limited, stopped, bed_bound",
		validate(t, createPainLogRequest{FunctionalImpact: "sometimes"}),
	)

	bad := "sometimes"
	assert.Contains(t, validate(t, updatePainLogRequest{FunctionalImpact: &bad}), "functional_impact")
}

func TestValidationLabelLimits(t *testing.T) {
	tooMany := make([]string, 21)
	for i := range tooMany {
		tooMany[i] = "x"
	}
	assert.Equal(t, "locations must be at most 20", validate(t, createPainLogRequest{Locations: tooMany}))

	detail := validate(t, createPainLogRequest{Triggers: []string{strings.Repeat("a", 65)}})
	assert.Equal(t, "triggers[0] must be at most 64", detail)
}

func TestValidationSettingsRequest(t *testing.T) {
	zone := "Mars/Olympus"
	tone := "angry"
	detail := validate(t, updateMySettingsRequest{Timezone: &zone, Tone: &tone})
	parts := strings.Split(detail, "; ")
	require.Len(t, parts, 2)
	assert.Equal(t, "timezone must be an IANA timezone name", parts[0])
	assert.Equal(t, "tone must be one of: warm neutral brief clinical", parts[1])

	zone = "Asia/Seoul"
	tone = "clinical"
	assert.Empty(t, validate(t, updateMySettingsRequest{Timezone: &zone, Tone: &tone}))
}

func TestValidationDetailForNonValidatorError(t *testing.T) {
	assert.Equal(t, "Invalid request payload", validationDetail(assert.AnError))
}
