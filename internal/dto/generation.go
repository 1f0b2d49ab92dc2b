package dto

import "github.com/noah-isme/tutor-center-api/internal/models"

// GenerationResult reports one enrollment's session generation run.
type GenerationResult struct {
	EnrollmentID     string           `json:"enrollment_id"`
	Created          int              `json:"created"`
	Skipped          int              `json:"skipped"`
	EffectiveEndDate string           `json:"effective_end_date"`
	Sessions         []models.Session `json:"sessions,omitempty"`
}

// BatchGenerationItem is one enrollment's outcome inside a batch run.
type BatchGenerationItem struct {
	EnrollmentID string `json:"enrollment_id"`
	Created      int    `json:"created"`
	Error        string `json:"error,omitempty"`
}

// BatchGenerationResult aggregates a full batch-driver pass.
type BatchGenerationResult struct {
	Processed int                   `json:"processed"`
	Generated int                   `json:"generated"`
	Failed    int                   `json:"failed"`
	Items     []BatchGenerationItem `json:"items"`
}
