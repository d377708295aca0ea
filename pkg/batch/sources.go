package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"microfigure/internal/models"
	"microfigure/pkg/config"
)

// ConfigSource answers every request from configuration without blocking:
// run defaults, then the per-file override, if any. Labels always start from
// the configured labels, so an override never carries into later files.
type ConfigSource struct {
	cfg *config.Config

	// Region applies to files without their own roi
	Region models.Region
}

// NewConfigSource creates a headless parameter source
func NewConfigSource(cfg *config.Config) *ConfigSource {
	return &ConfigSource{cfg: cfg}
}

// Collect resolves the parameters of one file
func (s *ConfigSource) Collect(ctx context.Context, req Request) (models.ProcessingParameters, error) {
	if err := ctx.Err(); err != nil {
		return models.ProcessingParameters{}, err
	}

	fp := s.cfg.ProcessingDefaults(req.SliceCount)
	fp.Region = s.Region

	if o, ok := s.cfg.Override(req.Path); ok {
		applied, err := o.Apply(fp)
		if err != nil {
			return fp, fmt.Errorf("%s: %w", req.Name(), err)
		}
		fp = applied
	}
	return fp.Clamp(req.SliceCount), nil
}

// PromptSource asks for each file's parameters on a line-oriented terminal.
// An empty answer keeps the offered default; "c" at the action prompt or end
// of input cancels the run.
type PromptSource struct {
	in  *bufio.Reader
	out io.Writer

	// BlurSigma and Normalize seed the first prompt; later prompts offer the
	// previous answer
	BlurSigma float64
	Normalize bool
	Region    models.Region
}

// NewPromptSource creates an interactive source reading answers from in and
// writing prompts to out
func NewPromptSource(in io.Reader, out io.Writer) *PromptSource {
	return &PromptSource{in: bufio.NewReader(in), out: out}
}

// Collect prompts for the action and, when processing, the parameters
func (s *PromptSource) Collect(ctx context.Context, req Request) (models.ProcessingParameters, error) {
	fp := req.Defaults
	fp.BlurSigma = s.BlurSigma
	fp.Normalize = s.Normalize
	fp.Region = s.Region

	fmt.Fprintf(s.out, "\n--- [%d/%d] %s (%d channels, %d slices) ---\n", req.Index, req.Total, req.Name(), req.ChannelCount, req.SliceCount)

	action, err := s.askAction(ctx)
	if err != nil {
		return fp, err
	}
	fp.Action = action
	if action != models.ActionProcess {
		return fp, nil
	}

	if fp.BlurSigma, err = s.askFloat(ctx, "Blur sigma (0 = none)", fp.BlurSigma); err != nil {
		return fp, err
	}
	if fp.ZSlice, err = s.askInt(ctx, fmt.Sprintf("Z-slice (1-%d)", req.SliceCount), fp.ZSlice); err != nil {
		return fp, err
	}
	if fp.ZStart, err = s.askInt(ctx, "Z-projection start", fp.ZStart); err != nil {
		return fp, err
	}
	if fp.ZEnd, err = s.askInt(ctx, "Z-projection end", fp.ZEnd); err != nil {
		return fp, err
	}
	names := [4]string{"Channel 1 label", "Channel 2 label", "Channel 3 label", "Merged label"}
	for i, n := range names {
		if fp.Labels[i], err = s.Ask(ctx, n, fp.Labels[i]); err != nil {
			return fp, err
		}
	}

	s.BlurSigma = fp.BlurSigma
	return fp.Clamp(req.SliceCount), nil
}

// Ask prints a prompt with its default and returns the trimmed answer, or
// def for an empty line. End of input returns models.ErrUserCancel.
func (s *PromptSource) Ask(ctx context.Context, prompt, def string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if def != "" {
		fmt.Fprintf(s.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(s.out, "%s: ", prompt)
	}

	line, err := s.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", models.ErrUserCancel
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Confirm asks a yes/no question; anything but y or yes is a no
func (s *PromptSource) Confirm(ctx context.Context, question string) (bool, error) {
	answer, err := s.Ask(ctx, question+" (y/n)", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (s *PromptSource) askAction(ctx context.Context) (models.Action, error) {
	for {
		answer, err := s.Ask(ctx, "Action: [p]rocess, [s]kip this, skip [a]ll remaining, [c]ancel", "p")
		if err != nil {
			return models.ActionProcess, err
		}
		switch strings.ToLower(answer) {
		case "c", "cancel", "q", "quit":
			return models.ActionProcess, models.ErrUserCancel
		}
		action, err := models.ParseAction(answer)
		if err == nil {
			return action, nil
		}
		fmt.Fprintf(s.out, "Invalid choice %q\n", answer)
	}
}

func (s *PromptSource) askFloat(ctx context.Context, prompt string, def float64) (float64, error) {
	for {
		answer, err := s.Ask(ctx, prompt, strconv.FormatFloat(def, 'g', -1, 64))
		if err != nil {
			return def, err
		}
		v, err := strconv.ParseFloat(answer, 64)
		if err == nil && v >= 0 {
			return v, nil
		}
		fmt.Fprintf(s.out, "Invalid number %q\n", answer)
	}
}

func (s *PromptSource) askInt(ctx context.Context, prompt string, def int) (int, error) {
	for {
		answer, err := s.Ask(ctx, prompt, strconv.Itoa(def))
		if err != nil {
			return def, err
		}
		v, err := strconv.Atoi(answer)
		if err == nil {
			return v, nil
		}
		fmt.Fprintf(s.out, "Invalid number %q\n", answer)
	}
}
