// Package batch drives the figure pipeline over a list of files: it opens
// each file, collects its parameters, processes and saves it, and records one
// outcome per file. A failure in one file never stops the others.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"microfigure/internal/logger"
	"microfigure/internal/models"
	"microfigure/pkg/output"
)

// ImageSource opens a file as a volume
type ImageSource interface {
	Open(ctx context.Context, path string) (*models.Volume, error)
}

// ParameterSource decides the parameters and action for one file. It may
// block (interactive prompts). Returning models.ErrUserCancel ends the run.
type ParameterSource interface {
	Collect(ctx context.Context, req Request) (models.ProcessingParameters, error)
}

// Processor builds a figure from a volume
type Processor interface {
	Process(ctx context.Context, vol *models.Volume, region models.Region, fp models.ProcessingParameters) (*image.RGBA, error)
}

// Request describes the file a ParameterSource is asked about
type Request struct {
	// Index is one-based
	Index int
	Total int
	Path  string

	SliceCount   int
	ChannelCount int

	// Defaults are resolved against the volume and carry the sticky labels
	Defaults models.ProcessingParameters
}

// Name returns the file name of the request
func (r Request) Name() string {
	return filepath.Base(r.Path)
}

// Orchestrator runs the batch state machine. It is not safe for concurrent
// use; files are processed strictly in order.
type Orchestrator struct {
	source ImageSource
	params ParameterSource
	proc   Processor
	sink   output.Sink
	format output.Format
	log    *logger.Logger

	// labels carry over from the last processed file
	labels [4]string

	// skipAll is latched by a SkipAllRemaining action
	skipAll bool
}

// NewOrchestrator wires the batch collaborators. Labels start at
// models.DefaultLabels; see SetLabels.
func NewOrchestrator(source ImageSource, params ParameterSource, proc Processor, sink output.Sink, format output.Format, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Discard()
	}
	return &Orchestrator{
		source: source,
		params: params,
		proc:   proc,
		sink:   sink,
		format: format,
		log:    log,
		labels: models.DefaultLabels,
	}
}

// SetLabels sets the labels offered for the next file
func (o *Orchestrator) SetLabels(labels [4]string) {
	o.labels = labels
}

// Labels returns the labels that will be offered for the next file
func (o *Orchestrator) Labels() [4]string {
	return o.labels
}

// Run processes files in order and returns the report. A cancelled run
// returns the records written so far together with an error wrapping
// models.ErrUserCancel (or the context error).
func (o *Orchestrator) Run(ctx context.Context, files []string) (*Report, error) {
	report := NewReport(o.outputLocation())
	total := len(files)

	var runErr error
	for i, path := range files {
		idx := i + 1

		if o.skipAll {
			rec := models.BatchRecord{Filename: filepath.Base(path), Outcome: models.OutcomeSkippedAll}
			o.log.Infof("[%d/%d] Skipped (skip all): %s", idx, total, rec.Filename)
			report.Add(rec)
			continue
		}

		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		rec, err := o.processOne(ctx, idx, total, path)
		if err != nil {
			runErr = err
			break
		}
		report.Add(rec)
	}

	if runErr != nil {
		if errors.Is(runErr, models.ErrUserCancel) || errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			report.Cancelled = true
			o.log.Warningf("Run cancelled after %d of %d files", len(report.Records), total)
		}
	}

	report.Finalize()
	return report, runErr
}

// processOne runs one file through Opened, ParametersCollected and the
// final outcome. It returns an error only for conditions that end the run.
func (o *Orchestrator) processOne(ctx context.Context, idx, total int, path string) (rec models.BatchRecord, runErr error) {
	started := time.Now()
	rec.Filename = filepath.Base(path)

	defer func() {
		if r := recover(); r != nil {
			rec = failed(rec, fmt.Errorf("panic: %v", r))
			o.log.Errorf("[%d/%d] ✗ %s: %s", idx, total, rec.Filename, rec.Error)
			runErr = nil
		}
		rec.Duration = time.Since(started)
	}()

	o.log.Infof("[%d/%d] Processing: %s", idx, total, rec.Filename)

	vol, err := o.source.Open(ctx, path)
	if err != nil {
		if isCancel(err) {
			return rec, err
		}
		o.log.Errorf("[%d/%d] ✗ Failed to open %s: %v", idx, total, rec.Filename, err)
		return failed(rec, err), nil
	}
	defer vol.Close()

	defaults := models.DefaultParameters(vol.Slices)
	defaults.Labels = o.labels

	fp, err := o.params.Collect(ctx, Request{
		Index:        idx,
		Total:        total,
		Path:         path,
		SliceCount:   vol.Slices,
		ChannelCount: vol.Channels,
		Defaults:     defaults,
	})
	if err != nil {
		if isCancel(err) || errors.Is(err, models.ErrConfiguration) {
			return rec, err
		}
		o.log.Errorf("[%d/%d] ✗ Failed to collect parameters for %s: %v", idx, total, rec.Filename, err)
		return failed(rec, err), nil
	}
	fp = fp.Clamp(vol.Slices)

	switch fp.Action {
	case models.ActionSkipThis:
		o.log.Infof("[%d/%d] Skipped: %s", idx, total, rec.Filename)
		rec.Outcome = models.OutcomeSkippedThis
		return rec, nil
	case models.ActionSkipAllRemaining:
		o.log.Infof("[%d/%d] Skipped, skipping all remaining files: %s", idx, total, rec.Filename)
		o.skipAll = true
		rec.Outcome = models.OutcomeSkippedAll
		return rec, nil
	}

	o.labels = fp.Labels

	if err := ctx.Err(); err != nil {
		return rec, err
	}

	o.log.Infof("   Parameters - %s", fp)

	img, err := o.proc.Process(ctx, vol, fp.Region, fp)
	if err != nil {
		if isCancel(err) {
			return rec, err
		}
		o.log.Errorf("[%d/%d] ✗ Error processing %s: %v", idx, total, rec.Filename, err)
		return failed(rec, err), nil
	}

	stem := strings.TrimSuffix(rec.Filename, filepath.Ext(rec.Filename))
	saved, err := o.sink.Save(ctx, img, stem, o.format)
	if err != nil {
		if isCancel(err) {
			return rec, err
		}
		o.log.Errorf("[%d/%d] ✗ Failed to save %s: %v", idx, total, rec.Filename, err)
		return failed(rec, err), nil
	}

	o.log.Infof("   ✓ Saved: %s", saved)
	rec.Outcome = models.OutcomeProcessed
	rec.Output = saved
	return rec, nil
}

func (o *Orchestrator) outputLocation() string {
	if s, ok := o.sink.(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}

func failed(rec models.BatchRecord, err error) models.BatchRecord {
	rec.Outcome = models.OutcomeFailed
	rec.Error = err.Error()
	rec.Output = ""
	return rec
}

func isCancel(err error) bool {
	return errors.Is(err, models.ErrUserCancel) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
