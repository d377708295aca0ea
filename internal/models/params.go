package models

import (
	"fmt"
	"strings"
)

// Action is the control decision a parameter source returns for a file
type Action int

const (
	// ActionProcess runs the pipeline on the file
	ActionProcess Action = iota
	// ActionSkipThis skips only the current file
	ActionSkipThis
	// ActionSkipAllRemaining skips the current file and every later one
	ActionSkipAllRemaining
)

// String returns the choice text used in prompts and configuration files
func (a Action) String() string {
	switch a {
	case ActionSkipThis:
		return "skip this"
	case ActionSkipAllRemaining:
		return "skip all remaining"
	default:
		return "process"
	}
}

// ParseAction accepts the spellings used by prompts and YAML files
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "p", "process":
		return ActionProcess, nil
	case "s", "skip", "skip this", "skip-this", "skipthis":
		return ActionSkipThis, nil
	case "a", "skip all", "skip-all", "skipall", "skip all remaining", "skip-all-remaining":
		return ActionSkipAllRemaining, nil
	}
	return ActionProcess, fmt.Errorf("unknown action %q", s)
}

// Label positions within ProcessingParameters.Labels
const (
	LabelChannel1 = iota
	LabelChannel2
	LabelChannel3
	LabelMerged
)

// DefaultLabels are the panel captions used before any file sets its own.
// They match the channel order of the airyscan acquisitions the figure was
// designed for.
var DefaultLabels = [4]string{"Cyan", "Far red", "Red", "Merged"}

// ProcessingParameters holds the per-file knobs of one pipeline run. Slice
// indices are one-based.
type ProcessingParameters struct {
	// BlurSigma is the Gaussian sigma; 0 disables blurring
	BlurSigma float64

	// ZSlice selects the plane used for the top row
	ZSlice int

	// ZStart and ZEnd bound the maximum-intensity projection (inclusive)
	ZStart int
	ZEnd   int

	// Labels are the captions for the three channel panels and the merge
	Labels [4]string

	// Normalize rescales each top-row channel to [0, 255] after blurring
	Normalize bool

	// Region restricts processing to a region of interest
	Region Region

	Action Action
}

// DefaultParameters resolves unset values against a volume with sliceCount
// slices: no blur, the middle slice, the full Z range and the default labels.
func DefaultParameters(sliceCount int) ProcessingParameters {
	p := ProcessingParameters{
		BlurSigma: 0,
		ZSlice:    sliceCount / 2,
		ZStart:    1,
		ZEnd:      sliceCount,
		Labels:    DefaultLabels,
		Action:    ActionProcess,
	}
	return p.Clamp(sliceCount)
}

// ClampSlice forces z into [1, sliceCount]
func ClampSlice(z, sliceCount int) int {
	if z > sliceCount {
		z = sliceCount
	}
	if z < 1 {
		z = 1
	}
	return z
}

// ClampRange clamps start into [1, sliceCount] first, then end into
// [start, sliceCount].
func ClampRange(start, end, sliceCount int) (int, int) {
	start = ClampSlice(start, sliceCount)
	if end > sliceCount {
		end = sliceCount
	}
	if end < start {
		end = start
	}
	return start, end
}

// Clamp returns a copy with every slice index corrected for sliceCount and a
// non-negative sigma. Out-of-range input is never an error.
func (p ProcessingParameters) Clamp(sliceCount int) ProcessingParameters {
	p.ZSlice = ClampSlice(p.ZSlice, sliceCount)
	p.ZStart, p.ZEnd = ClampRange(p.ZStart, p.ZEnd, sliceCount)
	if p.BlurSigma < 0 {
		p.BlurSigma = 0
	}
	return p
}

// String summarizes the parameters for the run log
func (p ProcessingParameters) String() string {
	return fmt.Sprintf("Blur: %g, Z-slice: %d, Z-range: %d-%d", p.BlurSigma, p.ZSlice, p.ZStart, p.ZEnd)
}
