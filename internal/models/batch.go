package models

import "time"

// Outcome is the terminal state of one file in a batch run
type Outcome string

const (
	OutcomeProcessed   Outcome = "processed"
	OutcomeSkippedThis Outcome = "skipped"
	OutcomeSkippedAll  Outcome = "skipped_all"
	OutcomeFailed      Outcome = "failed"
)

// BatchRecord is the result of one file. Records are written once.
type BatchRecord struct {
	Filename string        `json:"filename"`
	Outcome  Outcome       `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}
