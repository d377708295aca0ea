// Package config provides configuration loading and management for microfigure.
// It handles loading configuration from YAML files and the environment and
// provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"microfigure/internal/models"
	"microfigure/pkg/composite"
	"microfigure/pkg/output"
	"microfigure/pkg/pipeline"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "MICROFIGURE_"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing defaults applied to every file
	Processing struct {
		// BlurSigma is the Gaussian sigma; 0 disables blurring
		BlurSigma float64 `yaml:"blurSigma"`

		// Normalize rescales top-row channels to [0, 255]
		Normalize bool `yaml:"normalize"`

		// ZSlice, ZStart and ZEnd are one-based; unset means middle slice and
		// full range
		ZSlice *int `yaml:"zSlice,omitempty"`
		ZStart *int `yaml:"zStart,omitempty"`
		ZEnd   *int `yaml:"zEnd,omitempty"`
	} `yaml:"processing"`

	// Figure recipe
	Figure struct {
		// Variant is composite or combined; empty picks combined for
		// interactive runs and composite otherwise
		Variant string `yaml:"variant"`

		Padding       int `yaml:"padding"`
		LabelSpace    int `yaml:"labelSpace"`
		RowLabelSpace int `yaml:"rowLabelSpace"`
		LabelOffset   int `yaml:"labelOffset"`

		// Labels are the initial captions of the three channel panels and
		// the merge
		Labels []string `yaml:"labels"`

		PanelOrder    []int `yaml:"panelOrder"`
		MergeChannels []int `yaml:"mergeChannels"`

		// AutoScale windows each panel over its own min..max
		AutoScale bool `yaml:"autoScale"`
	} `yaml:"figure"`

	// Composite color table, one entry per merged channel
	Composite struct {
		Channels []composite.ChannelPolicy `yaml:"channels"`
	} `yaml:"composite"`

	// Output parameters
	Output struct {
		// Format is tiff or jpeg; empty picks jpeg for interactive runs and
		// tiff otherwise
		Format string `yaml:"format"`

		// SaveIntermediaryResults determines whether to save rendered panels
		SaveIntermediaryResults bool   `yaml:"saveIntermediaryResults"`
		IntermediaryDir         string `yaml:"intermediaryDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// LogFile appends the run log to a file when set
		LogFile string `yaml:"logFile"`
	} `yaml:"output"`

	// Batch parameters
	Batch struct {
		InputDir    string `yaml:"inputDir"`
		OutputDir   string `yaml:"outputDir"`
		Extension   string `yaml:"extension"`
		Interactive bool   `yaml:"interactive"`
		DryRun      bool   `yaml:"dryRun"`
	} `yaml:"batch"`

	// S3 settings used when the output directory is an s3:// URL
	S3 struct {
		Region    string `yaml:"region"`
		Endpoint  string `yaml:"endpoint"`
		PathStyle bool   `yaml:"pathStyle"`
	} `yaml:"s3"`

	// Files holds per-file overrides keyed by file name
	Files map[string]FileOverride `yaml:"files,omitempty"`
}

// FileOverride replaces processing defaults for one file. Unset fields keep
// the run defaults.
type FileOverride struct {
	BlurSigma *float64 `yaml:"blurSigma,omitempty"`
	ZSlice    *int     `yaml:"zSlice,omitempty"`
	ZStart    *int     `yaml:"zStart,omitempty"`
	ZEnd      *int     `yaml:"zEnd,omitempty"`
	Labels    []string `yaml:"labels,omitempty"`
	Normalize *bool    `yaml:"normalize,omitempty"`

	// Action is process, skip or skip all
	Action string `yaml:"action,omitempty"`

	// ROI is x, y, width, height
	ROI []int `yaml:"roi,omitempty"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default figure parameters
	params := pipeline.DefaultParams()
	cfg.Figure.Padding = params.Layout.Padding
	cfg.Figure.LabelSpace = params.Layout.LabelSpace
	cfg.Figure.RowLabelSpace = params.Layout.RowLabelSpace
	cfg.Figure.LabelOffset = params.Layout.LabelOffset
	cfg.Figure.Labels = append([]string(nil), models.DefaultLabels[:]...)
	cfg.Figure.PanelOrder = params.PanelOrder
	cfg.Figure.MergeChannels = params.MergeChannels

	// Set default color table
	cfg.Composite.Channels = append([]composite.ChannelPolicy(nil), composite.DefaultPolicy...)

	// Set default output parameters
	cfg.Output.IntermediaryDir = "intermediary_results"

	// Set default batch parameters
	cfg.Batch.Extension = "czi"

	cfg.S3.Region = "us-east-1"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, models.Configurationf("error parsing config file %s: %v", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// LoadEnv reads envFile (if it exists) into the process environment and
// applies MICROFIGURE_* overrides to cfg. Variables already set in the
// environment win over the file.
func LoadEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return models.Configurationf("error loading %s: %v", envFile, err)
		}
	}

	cfg.Batch.InputDir = getEnv("INPUT", cfg.Batch.InputDir)
	cfg.Batch.OutputDir = getEnv("OUTPUT", cfg.Batch.OutputDir)
	cfg.Batch.Extension = getEnv("EXTENSION", cfg.Batch.Extension)
	cfg.Output.Format = getEnv("FORMAT", cfg.Output.Format)
	cfg.Output.LogFile = getEnv("LOG_FILE", cfg.Output.LogFile)
	cfg.Figure.Variant = getEnv("VARIANT", cfg.Figure.Variant)
	cfg.S3.Region = getEnv("S3_REGION", cfg.S3.Region)
	cfg.S3.Endpoint = getEnv("S3_ENDPOINT", cfg.S3.Endpoint)

	blur, err := getEnvAsFloat("BLUR", cfg.Processing.BlurSigma)
	if err != nil {
		return err
	}
	cfg.Processing.BlurSigma = blur
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, models.Configurationf("%s%s: %v", EnvPrefix, key, err)
	}
	return f, nil
}

// Validate checks the configuration. Every failure wraps
// models.ErrConfiguration.
func (c *Config) Validate() error {
	if c.Processing.BlurSigma < 0 {
		return models.Configurationf("blur sigma must be >= 0, got %g", c.Processing.BlurSigma)
	}
	if _, err := c.FigureVariant(); err != nil {
		return models.Configurationf("%v", err)
	}
	if _, err := c.OutputFormat(); err != nil {
		return models.Configurationf("%v", err)
	}
	if len(c.Figure.Labels) > len(models.DefaultLabels) {
		return models.Configurationf("at most %d labels, got %d", len(models.DefaultLabels), len(c.Figure.Labels))
	}
	if err := c.PipelineParams().Validate(); err != nil {
		return models.Configurationf("%v", err)
	}
	for name, o := range c.Files {
		if err := o.validate(); err != nil {
			return models.Configurationf("files.%s: %v", name, err)
		}
	}
	return nil
}

// FigureVariant resolves the figure variant
func (c *Config) FigureVariant() (pipeline.Variant, error) {
	if c.Figure.Variant == "" {
		if c.Batch.Interactive {
			return pipeline.VariantCombined, nil
		}
		return pipeline.VariantComposite, nil
	}
	return pipeline.ParseVariant(c.Figure.Variant)
}

// OutputFormat resolves the figure file format
func (c *Config) OutputFormat() (output.Format, error) {
	if c.Output.Format == "" {
		if c.Batch.Interactive {
			return output.FormatJPEG, nil
		}
		return output.FormatTIFF, nil
	}
	return output.ParseFormat(c.Output.Format)
}

// PipelineParams builds the figure recipe
func (c *Config) PipelineParams() *pipeline.Params {
	params := pipeline.DefaultParams()
	if v, err := c.FigureVariant(); err == nil {
		params.Variant = v
	} else {
		params.Variant = pipeline.Variant(c.Figure.Variant)
	}
	params.Layout.Padding = c.Figure.Padding
	params.Layout.LabelSpace = c.Figure.LabelSpace
	params.Layout.RowLabelSpace = c.Figure.RowLabelSpace
	params.Layout.LabelOffset = c.Figure.LabelOffset
	params.Render.AutoScale = c.Figure.AutoScale
	if len(c.Figure.PanelOrder) > 0 {
		params.PanelOrder = c.Figure.PanelOrder
	}
	if len(c.Figure.MergeChannels) > 0 {
		params.MergeChannels = c.Figure.MergeChannels
	}
	if len(c.Composite.Channels) > 0 {
		params.Policy = c.Composite.Channels
	}
	params.SaveIntermediaryResults = c.Output.SaveIntermediaryResults
	params.IntermediaryDir = c.Output.IntermediaryDir
	return params
}

// Labels returns the configured captions, filling gaps with the defaults
func (c *Config) Labels() [4]string {
	labels := models.DefaultLabels
	for i, l := range c.Figure.Labels {
		if i < len(labels) && l != "" {
			labels[i] = l
		}
	}
	return labels
}

// ProcessingDefaults resolves the processing section against a volume with
// sliceCount slices
func (c *Config) ProcessingDefaults(sliceCount int) models.ProcessingParameters {
	fp := models.DefaultParameters(sliceCount)
	fp.BlurSigma = c.Processing.BlurSigma
	fp.Normalize = c.Processing.Normalize
	fp.Labels = c.Labels()
	if c.Processing.ZSlice != nil {
		fp.ZSlice = *c.Processing.ZSlice
	}
	if c.Processing.ZStart != nil {
		fp.ZStart = *c.Processing.ZStart
	}
	if c.Processing.ZEnd != nil {
		fp.ZEnd = *c.Processing.ZEnd
	}
	return fp.Clamp(sliceCount)
}

// Override returns the per-file override for path, matched by file name
func (c *Config) Override(path string) (FileOverride, bool) {
	o, ok := c.Files[filepath.Base(path)]
	return o, ok
}

// Apply layers the override on top of fp
func (o FileOverride) Apply(fp models.ProcessingParameters) (models.ProcessingParameters, error) {
	if err := o.validate(); err != nil {
		return fp, models.Configurationf("%v", err)
	}
	if o.BlurSigma != nil {
		fp.BlurSigma = *o.BlurSigma
	}
	if o.ZSlice != nil {
		fp.ZSlice = *o.ZSlice
	}
	if o.ZStart != nil {
		fp.ZStart = *o.ZStart
	}
	if o.ZEnd != nil {
		fp.ZEnd = *o.ZEnd
	}
	if o.Normalize != nil {
		fp.Normalize = *o.Normalize
	}
	for i, l := range o.Labels {
		if l != "" {
			fp.Labels[i] = l
		}
	}
	if len(o.ROI) == 4 {
		fp.Region = models.RectRegion(o.ROI[0], o.ROI[1], o.ROI[2], o.ROI[3])
	}
	action, _ := models.ParseAction(o.Action)
	fp.Action = action
	return fp, nil
}

func (o FileOverride) validate() error {
	if o.BlurSigma != nil && *o.BlurSigma < 0 {
		return fmt.Errorf("blur sigma must be >= 0, got %g", *o.BlurSigma)
	}
	if len(o.Labels) > len(models.DefaultLabels) {
		return fmt.Errorf("at most %d labels, got %d", len(models.DefaultLabels), len(o.Labels))
	}
	if _, err := models.ParseAction(o.Action); err != nil {
		return err
	}
	if o.ROI != nil {
		if len(o.ROI) != 4 {
			return fmt.Errorf("roi needs x, y, width, height")
		}
		if o.ROI[2] <= 0 || o.ROI[3] <= 0 {
			return fmt.Errorf("roi width and height must be positive")
		}
	}
	return nil
}

// ParseROI parses "x,y,w,h" into a rectangular region
func ParseROI(s string) (models.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return models.Region{}, models.Configurationf("roi %q: expected x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return models.Region{}, models.Configurationf("roi %q: %v", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return models.Region{}, models.Configurationf("roi %q: width and height must be positive", s)
	}
	return models.RectRegion(v[0], v[1], v[2], v[3]), nil
}
