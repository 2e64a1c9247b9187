package domain

import "time"

// Vote is an immutable ballot keyed by (project, voter).
type Vote struct {
	ProjectID int64     `json:"project_id"`
	Voter     string    `json:"voter"`
	Support   bool      `json:"support"`
	Weight    int64     `json:"weight"`
	CastAt    time.Time `json:"cast_at"`
}

// Validation records that a validator approved a project for voting.
// Auto-validation writes no row; its project.validated event is the record.
type Validation struct {
	ProjectID int64     `json:"project_id"`
	Validator string    `json:"validator"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteReceipt is returned to the voter after a successful ballot.
type VoteReceipt struct {
	Vote
	PowerBps int64 `json:"power_bps"`
}

// Eligibility is the read-only pre-flight answer for a prospective voter.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
	Code     string `json:"code,omitempty"`
	Weight   int64  `json:"weight"`
}
