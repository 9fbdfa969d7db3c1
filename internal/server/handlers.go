package server

import (
	"strconv"
	"strings"

	"paintrack/backend/internal/painlog"
)

type createPainLogRequest struct {
	LoggedAt         string                 `json:"logged_at"`
	PainLevel        *int                   `json:"pain_level" binding:"omitempty,min=0,max=10"`
	Locations        []string               `json:"locations" binding:"omitempty,max=20,dive,max=64"`
	Triggers         []string               `json:"triggers" binding:"omitempty,max=20,dive,max=64"`
	Medications      painlog.MedicationList `json:"medications"`
	Notes            string                 `json:"notes" binding:"max=4000"`
	JournalEntry     string                 `json:"journal_entry" binding:"max=20000"`
	SideEffects      string                 `json:"side_effects" binding:"max=2000"`
	RxTaken          *bool                  `json:"rx_taken"`
	FunctionalImpact string                 `json:"functional_impact" binding:"omitempty,impact"`
	ImpactTags       []string               `json:"impact_tags" binding:"omitempty,max=20,dive,max=64"`
}

type updatePainLogRequest struct {
	LoggedAt         *string                 `json:"logged_at"`
	PainLevel        *int                    `json:"pain_level" binding:"omitempty,min=0,max=10"`
	ClearPainLevel   bool                    `json:"clear_pain_level"`
	Locations        *[]string               `json:"locations" binding:"omitempty,max=20,dive,max=64"`
	Triggers         *[]string               `json:"triggers" binding:"omitempty,max=20,dive,max=64"`
	Medications      *painlog.MedicationList `json:"medications"`
	Notes            *string                 `json:"notes" binding:"omitempty,max=4000"`
	JournalEntry     *string                 `json:"journal_entry" binding:"omitempty,max=20000"`
	SideEffects      *string                 `json:"side_effects" binding:"omitempty,max=2000"`
	RxTaken          *bool                   `json:"rx_taken"`
	FunctionalImpact *string                 `json:"functional_impact" binding:"omitempty,impact"`
	ImpactTags       *[]string               `json:"impact_tags" binding:"omitempty,max=20,dive,max=64"`
}

type chatRequest struct {
	Message string `json:"message" binding:"required,max=4000"`
	Tone    string `json:"tone" binding:"omitempty,oneof=warm neutral brief clinical"`
}

type updateMySettingsRequest struct {
	Timezone *string `json:"timezone" binding:"omitempty,timezone"`
	Tone     *string `json:"tone" binding:"omitempty,oneof=warm neutral brief clinical"`
}

func splitNonEmptyLines(text string) []string {
	parts := strings.Split(text, "\n")
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func normalizeTone(input string) string {
	tone := strings.ToLower(strings.TrimSpace(input))
	switch tone {
	case "warm", "neutral", "brief", "clinical":
		return tone
	default:
		return "warm"
	}
}
