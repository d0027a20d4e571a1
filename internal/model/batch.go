package model

import "time"

// EmployerStatus is the per-employer outcome inside a batch run.
type EmployerStatus string

const (
	EmployerOK      EmployerStatus = "ok"
	EmployerFailed  EmployerStatus = "failed"
	EmployerSkipped EmployerStatus = "skipped"
)

// EmployerResult records one employer's outcome in a batch. Failures carry
// the error string; dry-run results carry the would-be rating without it
// having been persisted.
type EmployerResult struct {
	EmployerID  string         `json:"employer_id"`
	Status      EmployerStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	Rating      *FinalRating   `json:"rating,omitempty"`
	BandChanged bool           `json:"band_changed,omitempty"`
	PrevBand    RatingBand     `json:"previous_band,omitempty"`
}

// BatchResult enumerates every employer's outcome. A batch never fails
// wholesale: Incomplete marks a cooperatively cancelled run whose partial
// results remain usable.
type BatchResult struct {
	BatchID      string           `json:"batch_id"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	DryRun       bool             `json:"dry_run"`
	Incomplete   bool             `json:"incomplete"`
	Results      []EmployerResult `json:"results"`
	Succeeded    int              `json:"succeeded"`
	Failed       int              `json:"failed"`
	Skipped      int              `json:"skipped"`
	BandsChanged int              `json:"bands_changed"`
}
