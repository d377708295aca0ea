package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"microfigure/internal/models"
)

// Summary counts outcomes of a run
type Summary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	// MeanDuration is the mean wall time of processed files
	MeanDuration time.Duration `json:"mean_duration"`
}

// Report is the outcome of one batch run
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Output     string    `json:"output"`
	Cancelled  bool      `json:"cancelled"`

	Summary Summary              `json:"summary"`
	Records []models.BatchRecord `json:"records"`
}

// NewReport starts a report for a run writing to output
func NewReport(output string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Output:    output,
		Records:   make([]models.BatchRecord, 0, 16),
	}
}

// Add appends a record. Records are never modified once added.
func (r *Report) Add(rec models.BatchRecord) {
	r.Records = append(r.Records, rec)
}

// Finalize stamps the finish time and computes the summary from the records
func (r *Report) Finalize() {
	r.FinishedAt = time.Now().UTC()

	s := Summary{Total: len(r.Records)}
	var secs []float64
	for _, rec := range r.Records {
		switch rec.Outcome {
		case models.OutcomeProcessed:
			s.Processed++
			secs = append(secs, rec.Duration.Seconds())
		case models.OutcomeSkippedThis, models.OutcomeSkippedAll:
			s.Skipped++
		case models.OutcomeFailed:
			s.Failed++
		}
	}
	if len(secs) > 0 {
		s.MeanDuration = time.Duration(stat.Mean(secs, nil) * float64(time.Second))
	}
	r.Summary = s
}

// WriteSummary prints the end-of-run block
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintln(w, "============================================================")
	if r.Cancelled {
		fmt.Fprintln(w, "Batch processing cancelled")
	} else {
		fmt.Fprintln(w, "Batch processing complete!")
	}
	fmt.Fprintf(w, "  Run:       %s\n", r.RunID)
	fmt.Fprintf(w, "  Processed: %d\n", r.Summary.Processed)
	fmt.Fprintf(w, "  Skipped:   %d\n", r.Summary.Skipped)
	fmt.Fprintf(w, "  Failed:    %d\n", r.Summary.Failed)
	if r.Summary.Processed > 0 {
		fmt.Fprintf(w, "  Mean time: %.2fs per figure\n", r.Summary.MeanDuration.Seconds())
	}
	if r.Output != "" {
		fmt.Fprintf(w, "  Output:    %s\n", r.Output)
	}
	fmt.Fprintln(w, "============================================================")
}
