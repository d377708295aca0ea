// Package pipeline turns one microscopy volume into a labeled comparison
// figure: three channel panels, a two-channel merge and, in the combined
// variant, a maximum-intensity projection row underneath.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"microfigure/internal/logger"
	"microfigure/internal/models"
	"microfigure/pkg/composite"
	"microfigure/pkg/filter"
	"microfigure/pkg/layout"
	"microfigure/pkg/projection"
	"microfigure/pkg/render"
	"microfigure/pkg/visualization"
	"microfigure/pkg/volume"
)

// Variant selects which figure is built
type Variant string

const (
	// VariantComposite builds the single row of channels plus merge
	VariantComposite Variant = "composite"
	// VariantCombined adds the Z-projection row below the single-slice row
	VariantCombined Variant = "combined"
)

// ParseVariant accepts the variant names used in flags and config files
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case VariantComposite:
		return VariantComposite, nil
	case VariantCombined:
		return VariantCombined, nil
	}
	return "", fmt.Errorf("unknown figure variant %q (expected composite or combined)", s)
}

// Params holds the figure recipe shared by every file of a run
type Params struct {
	Variant Variant

	// PanelOrder lists the one-based channels shown in the three channel
	// panels, left to right
	PanelOrder []int

	// MergeChannels lists the one-based channels merged into the composite,
	// in policy order
	MergeChannels []int

	// Policy assigns color and display range to each merged channel
	Policy []composite.ChannelPolicy

	Layout layout.Options
	Render render.Options

	// SaveIntermediaryResults dumps every rendered panel to IntermediaryDir
	SaveIntermediaryResults bool
	IntermediaryDir         string
}

// DefaultParams returns the standard recipe: panels channel 3, 1, 2 and a
// red/white merge of channels 1 and 2
func DefaultParams() *Params {
	return &Params{
		Variant:       VariantComposite,
		PanelOrder:    []int{3, 1, 2},
		MergeChannels: []int{1, 2},
		Policy:        composite.DefaultPolicy,
		Layout:        layout.DefaultOptions(),
		Render:        render.DefaultOptions(),
	}
}

// Validate checks the recipe for internal consistency
func (p *Params) Validate() error {
	if _, err := ParseVariant(string(p.Variant)); err != nil {
		return err
	}
	if len(p.PanelOrder) != 3 {
		return fmt.Errorf("panel order needs 3 channels, got %d", len(p.PanelOrder))
	}
	if len(p.MergeChannels) == 0 {
		return fmt.Errorf("merge needs at least one channel")
	}
	if len(p.MergeChannels) > len(p.Policy) {
		return fmt.Errorf("merge uses %d channels but the color policy covers %d", len(p.MergeChannels), len(p.Policy))
	}
	for _, c := range append(append([]int{}, p.PanelOrder...), p.MergeChannels...) {
		if c < 1 {
			return fmt.Errorf("channel numbers start at 1, got %d", c)
		}
	}
	if p.Layout.Padding < 0 || p.Layout.LabelSpace < 0 || p.Layout.RowLabelSpace < 0 {
		return fmt.Errorf("layout spacing must not be negative")
	}
	return composite.ValidatePolicy(p.Policy)
}

// requiredChannels is the highest channel number the recipe reads
func (p *Params) requiredChannels() int {
	need := 0
	for _, c := range append(append([]int{}, p.PanelOrder...), p.MergeChannels...) {
		if c > need {
			need = c
		}
	}
	return need
}

// Pipeline builds figures. It holds no per-file state, so one Pipeline serves
// a whole batch.
type Pipeline struct {
	params *Params
	text   layout.TextRenderer
	log    *logger.Logger
}

// NewPipeline creates a pipeline for the given recipe
func NewPipeline(params *Params, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{
		params: params,
		text:   render.DefaultText(),
		log:    log,
	}
}

// Variant reports which figure the pipeline builds
func (p *Pipeline) Variant() Variant {
	return p.params.Variant
}

// Process runs the full recipe on vol restricted to region. The volume is
// only read. fp must already be clamped against vol.Slices.
func (p *Pipeline) Process(ctx context.Context, vol *models.Volume, region models.Region, fp models.ProcessingParameters) (*image.RGBA, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	fp = fp.Clamp(vol.Slices)

	need := p.params.requiredChannels()
	if vol.Channels < need {
		return nil, &models.IntegrityError{What: "figure panels", Have: vol.Channels, Need: need}
	}

	// Step 1: crop once; both rows read from the same cropped stack
	p.log.Debugf("Step 1: cropping %s to %s", vol.Name, region)
	cropped, err := volume.Crop(vol, region)
	if err != nil {
		return nil, fmt.Errorf("failed to crop volume: %w", err)
	}
	p.saveCropped(vol.Name, cropped)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 2: single slice, split, filter
	p.log.Debugf("Step 2: filtering slice %d (sigma %g, normalize %t)", fp.ZSlice, fp.BlurSigma, fp.Normalize)
	processed, err := p.sliceChannels(cropped, fp)
	if err != nil {
		return nil, err
	}

	// Step 3: composite and top row
	p.log.Debugf("Step 3: assembling composite of channels %v", p.params.MergeChannels)
	merged, err := p.assemble(processed)
	if err != nil {
		return nil, err
	}

	top := make([]models.Panel, 0, len(p.params.PanelOrder)+1)
	for i, c := range p.params.PanelOrder {
		top = append(top, models.Panel{
			Image: render.GrayToRGB(processed[c-1], p.params.Render),
			Label: fp.Labels[i],
		})
	}
	top = append(top, models.Panel{
		Image: render.CompositeToRGB(merged),
		Label: fp.Labels[models.LabelMerged],
	})
	p.saveIntermediary(vol.Name, "02_panels", top)

	if p.params.Variant != VariantCombined {
		p.log.Debugf("Step 4: laying out %d panels", len(top))
		return layout.SingleRow(top, p.params.Layout, p.text)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 4: projection row
	p.log.Debugf("Step 4: projecting slices %d-%d", fp.ZStart, fp.ZEnd)
	bottom, err := p.projectionRow(cropped, fp)
	if err != nil {
		return nil, err
	}
	p.saveIntermediary(vol.Name, "03_projection", bottom)

	p.log.Debugf("Step 5: laying out %d + %d panels", len(top), len(bottom))
	return layout.TwoRow(top, bottom, p.params.Layout, p.text)
}

// sliceChannels extracts the selected plane of every channel and applies the
// blur and optional normalization
func (p *Pipeline) sliceChannels(cropped *models.Volume, fp models.ProcessingParameters) ([]*models.Raster, error) {
	single, err := volume.SelectSlice(cropped, fp.ZSlice)
	if err != nil {
		return nil, fmt.Errorf("failed to select slice %d: %w", fp.ZSlice, err)
	}
	stacks, err := volume.Split(single)
	if err != nil {
		return nil, err
	}

	processed := make([]*models.Raster, len(stacks))
	for i, s := range stacks {
		r, err := filter.Apply(s.Planes[0], fp.BlurSigma, fp.Normalize)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i+1, err)
		}
		st := filter.Statistics(r)
		p.log.Debugf("   channel %d: min %.2f, max %.2f, mean %.2f", i+1, st.Min, st.Max, st.Mean)
		processed[i] = r
	}
	return processed, nil
}

// projectionRow projects each merged channel over the Z range, blurs it
// (without normalization) and merges the projections
func (p *Pipeline) projectionRow(cropped *models.Volume, fp models.ProcessingParameters) ([]models.Panel, error) {
	ranged, err := volume.SelectRange(cropped, fp.ZStart, fp.ZEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to select slices %d-%d: %w", fp.ZStart, fp.ZEnd, err)
	}
	stacks, err := volume.Split(ranged)
	if err != nil {
		return nil, err
	}

	need := len(p.params.MergeChannels)
	if need < 2 {
		need = 2
	}
	if len(stacks) < need {
		return nil, &models.IntegrityError{What: "Z-projection", Have: len(stacks), Need: need}
	}

	projected := make([]*models.Raster, len(stacks))
	for _, c := range p.params.MergeChannels {
		if c > len(stacks) {
			return nil, &models.IntegrityError{What: "Z-projection", Have: len(stacks), Need: c}
		}
		proj, err := projection.MaxProjectionAll(stacks[c-1])
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
		blurred, err := filter.Blur(proj, fp.BlurSigma)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
		projected[c-1] = blurred
	}

	merged, err := p.assemble(projected)
	if err != nil {
		return nil, err
	}

	panels := make([]models.Panel, 0, len(p.params.MergeChannels)+1)
	for _, c := range p.params.MergeChannels {
		panels = append(panels, models.Panel{
			Image: render.GrayToRGB(projected[c-1], p.params.Render),
			Label: p.labelFor(c, fp) + " (Max Z)",
		})
	}
	panels = append(panels, models.Panel{
		Image: render.CompositeToRGB(merged),
		Label: fp.Labels[models.LabelMerged] + " (Max Z)",
	})
	return panels, nil
}

// assemble merges the configured channels of rasters (indexed by channel)
func (p *Pipeline) assemble(rasters []*models.Raster) (*composite.Composite, error) {
	selected := make([]*models.Raster, 0, len(p.params.MergeChannels))
	for _, c := range p.params.MergeChannels {
		if c > len(rasters) || rasters[c-1] == nil {
			return nil, &models.IntegrityError{What: "composite", Have: len(rasters), Need: c}
		}
		selected = append(selected, rasters[c-1])
	}
	merged, err := composite.Assemble(selected, p.params.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble composite: %w", err)
	}
	return merged, nil
}

// labelFor returns the caption of the top-row panel that shows channel c
func (p *Pipeline) labelFor(c int, fp models.ProcessingParameters) string {
	for i, pc := range p.params.PanelOrder {
		if pc == c {
			return fp.Labels[i]
		}
	}
	return fmt.Sprintf("Channel %d", c)
}

// intermediaryDir returns the dump directory of one stage, or "" when dumps
// are off
func (p *Pipeline) intermediaryDir(name, stage string) string {
	if !p.params.SaveIntermediaryResults {
		return ""
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "volume"
	}
	return filepath.Join(p.params.IntermediaryDir, base, stage)
}

// saveCropped dumps every plane of the cropped volume. Failures are only
// logged.
func (p *Pipeline) saveCropped(name string, cropped *models.Volume) {
	dir := p.intermediaryDir(name, "01_cropped")
	if dir == "" {
		return
	}
	viewer := visualization.NewViewer(cropped)
	for c := 0; c < cropped.Channels; c++ {
		if p.params.Render.AutoScale {
			if err := viewer.AutoWindow(c); err != nil {
				p.log.Warningf("failed to window intermediary slices: %v", err)
				return
			}
		}
		if err := viewer.SaveSliceSequence(c, dir); err != nil {
			p.log.Warningf("failed to save intermediary slices: %v", err)
			return
		}
	}
}

// saveIntermediary dumps rendered panels. Failures are only logged.
func (p *Pipeline) saveIntermediary(name, stage string, panels []models.Panel) {
	dir := p.intermediaryDir(name, stage)
	if dir == "" {
		return
	}
	if err := visualization.SavePanels(panels, dir); err != nil {
		p.log.Warningf("failed to save intermediary panels: %v", err)
	}
}
