package domain

import (
	"encoding/json"
	"time"
)

// ScreeningStatus is the outcome of AI pre-screening.
type ScreeningStatus string

const (
	ScreeningStatusCompleted ScreeningStatus = "COMPLETED"
	ScreeningStatusFailed    ScreeningStatus = "FAILED"
)

// ScreeningJob asks the scorer to evaluate one submitted project.
type ScreeningJob struct {
	ProjectID   int64     `json:"project_id"`
	ExternalID  string    `json:"external_id"`
	Text        string    `json:"text"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewScreeningJob builds the job for a freshly submitted project.
func NewScreeningJob(p *Project, now time.Time) ScreeningJob {
	return ScreeningJob{
		ProjectID:   p.ID,
		ExternalID:  p.ExternalID,
		Text:        p.AnalysisText(),
		RequestedAt: now,
	}
}

// ScreeningResult is the scorer's verdict, stored on the project as metadata.
type ScreeningResult struct {
	Status     ScreeningStatus `json:"status"`
	Score      *int            `json:"score,omitempty"` // 0-100
	Breakdown  json.RawMessage `json:"breakdown,omitempty"`
	Error      string          `json:"error,omitempty"`
	ScreenedAt time.Time       `json:"screened_at"`
}
