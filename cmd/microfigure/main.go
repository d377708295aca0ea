package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"microfigure/internal/logger"
	"microfigure/internal/models"
	"microfigure/pkg/batch"
	"microfigure/pkg/config"
	"microfigure/pkg/output"
	"microfigure/pkg/pipeline"
	"microfigure/pkg/source"
)

// inputExtensions are the file types offered by -format
var inputExtensions = []string{"czi", "tif", "tiff", "lsm", "nd2", "jpg", "png"}

func main() {
	// Parse command line arguments
	var inputDir, outputDir, extension string
	flag.StringVar(&inputDir, "input", "", "Input folder containing microscopy files")
	flag.StringVar(&inputDir, "i", "", "Shorthand for -input")
	flag.StringVar(&outputDir, "output", "", "Output folder (or s3://bucket/prefix) for figures")
	flag.StringVar(&outputDir, "o", "", "Shorthand for -output")
	flag.StringVar(&extension, "format", "czi", "Input file extension ("+strings.Join(inputExtensions, ", ")+")")
	flag.StringVar(&extension, "f", "czi", "Shorthand for -format")
	blur := flag.Float64("blur", 0, "Gaussian blur sigma (0 = none)")
	zSlice := flag.Int("z-slice", 0, "Z-slice for the channel panels (default: middle slice)")
	zStart := flag.Int("z-start", 0, "First slice of the Z-projection (default: 1)")
	zEnd := flag.Int("z-end", 0, "Last slice of the Z-projection (default: last slice)")
	interactive := flag.Bool("interactive", false, "Prompt for parameters for each file")
	dryRun := flag.Bool("dry-run", false, "List matching files without processing")
	configPath := flag.String("config", "", "YAML configuration file")
	initConfig := flag.String("init-config", "", "Write a default configuration file to this path and exit")
	variant := flag.String("variant", "", "Figure variant: composite or combined")
	outFormat := flag.String("out-format", "", "Figure file format: tiff or jpeg")
	singleFile := flag.String("file", "", "Build one figure from a single image (normalized, single row)")
	roi := flag.String("roi", "", "Region of interest x,y,w,h")
	normalize := flag.Bool("normalize", false, "Rescale each channel panel to [0, 255]")
	logFile := flag.String("log-file", "", "Append the run log to this file")
	verbose := flag.Bool("verbose", false, "Log every pipeline step")
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	// Load configuration, then the environment, then explicit flags
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}
	if err := config.LoadEnv(cfg, ".env"); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["input"] || set["i"] {
		cfg.Batch.InputDir = inputDir
	}
	if set["output"] || set["o"] {
		cfg.Batch.OutputDir = outputDir
	}
	if set["format"] || set["f"] {
		cfg.Batch.Extension = extension
	}
	if set["blur"] {
		cfg.Processing.BlurSigma = *blur
	}
	if set["z-slice"] {
		cfg.Processing.ZSlice = zSlice
	}
	if set["z-start"] {
		cfg.Processing.ZStart = zStart
	}
	if set["z-end"] {
		cfg.Processing.ZEnd = zEnd
	}
	if set["interactive"] {
		cfg.Batch.Interactive = *interactive
	}
	if set["dry-run"] {
		cfg.Batch.DryRun = *dryRun
	}
	if set["variant"] {
		cfg.Figure.Variant = *variant
	}
	if set["out-format"] {
		cfg.Output.Format = *outFormat
	}
	if set["normalize"] {
		cfg.Processing.Normalize = *normalize
	}
	if set["log-file"] {
		cfg.Output.LogFile = *logFile
	}
	if set["verbose"] {
		cfg.Output.Verbose = *verbose
	}

	var region models.Region
	if *roi != "" {
		r, err := config.ParseROI(*roi)
		if err != nil {
			log.Fatalf("Invalid region of interest: %v", err)
		}
		region = r
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *singleFile != "" {
		if err := runSingle(ctx, cfg, *singleFile, region); err != nil {
			log.Fatalf("Figure failed: %v", err)
		}
		return
	}

	var prompt *batch.PromptSource
	if cfg.Batch.Interactive {
		prompt = batch.NewPromptSource(os.Stdin, os.Stdout)
		if err := askRunSettings(ctx, prompt, cfg); err != nil {
			if errors.Is(err, models.ErrUserCancel) {
				fmt.Println("Cancelled.")
				return
			}
			log.Fatalf("Failed to read settings: %v", err)
		}
	} else if err := checkRequired(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	files, err := batch.FindFiles(cfg.Batch.InputDir, cfg.Batch.Extension)
	if err != nil {
		log.Fatalf("%v", err)
	}

	printSettings(cfg, files)

	if cfg.Batch.DryRun {
		fmt.Println("\nDry run: no files were processed.")
		return
	}

	if prompt != nil {
		ok, err := prompt.Confirm(ctx, "\nProceed?")
		if err != nil && !errors.Is(err, models.ErrUserCancel) {
			log.Fatalf("Failed to read answer: %v", err)
		}
		if !ok {
			fmt.Println("Cancelled.")
			return
		}
	}

	runLog, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to open run log: %v", err)
	}
	defer runLog.Close()

	registry := source.NewRegistry()
	if !registry.Supports(cfg.Batch.Extension) {
		runLog.Warningf("No reader for .%s files is available; every file will fail to open (readable: %s)",
			cfg.Batch.Extension, strings.Join(registry.Extensions(), ", "))
	}

	format, _ := cfg.OutputFormat()
	sink, err := output.NewSink(ctx, cfg.Batch.OutputDir, output.S3Config{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		PathStyle: cfg.S3.PathStyle,
	})
	if err != nil {
		log.Fatalf("Failed to prepare output: %v", err)
	}

	var params batch.ParameterSource
	if prompt != nil {
		prompt.BlurSigma = cfg.Processing.BlurSigma
		prompt.Normalize = cfg.Processing.Normalize
		prompt.Region = region
		params = prompt
	} else {
		cs := batch.NewConfigSource(cfg)
		cs.Region = region
		params = cs
	}

	proc := pipeline.NewPipeline(cfg.PipelineParams(), runLog)
	orch := batch.NewOrchestrator(registry, params, proc, sink, format, runLog)
	orch.SetLabels(cfg.Labels())

	fmt.Println()
	report, err := orch.Run(ctx, files)
	fmt.Println()
	report.WriteSummary(os.Stdout)
	if err != nil && !report.Cancelled {
		log.Fatalf("Batch stopped: %v", err)
	}
}

// checkRequired enforces the folders a non-interactive run needs. Dry runs
// need both as well.
func checkRequired(cfg *config.Config) error {
	if cfg.Batch.Interactive {
		return nil
	}
	if cfg.Batch.InputDir == "" || cfg.Batch.OutputDir == "" {
		return models.Configurationf("both -input and -output are required unless -interactive is set")
	}
	return nil
}

// runSingle builds one normalized single-row figure
func runSingle(ctx context.Context, cfg *config.Config, path string, region models.Region) error {
	runLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer runLog.Close()

	vol, err := source.NewRegistry().Open(ctx, path)
	if err != nil {
		return err
	}
	defer vol.Close()

	fp := cfg.ProcessingDefaults(vol.Slices)
	fp.Normalize = true
	fp.Region = region
	runLog.Infof("Processing: %s (%d channels, %d slices)", vol.Name, vol.Channels, vol.Slices)
	runLog.Infof("   Parameters - %s", fp)

	params := cfg.PipelineParams()
	params.Variant = pipeline.VariantComposite

	startTime := time.Now()
	img, err := pipeline.NewPipeline(params, runLog).Process(ctx, vol, region, fp)
	if err != nil {
		return err
	}

	outDir := cfg.Batch.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	sink, err := output.NewSink(ctx, outDir, output.S3Config{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		PathStyle: cfg.S3.PathStyle,
	})
	if err != nil {
		return err
	}

	format, err := cfg.OutputFormat()
	if err != nil {
		return err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	saved, err := sink.Save(ctx, img, stem, format)
	if err != nil {
		return err
	}

	fmt.Printf("\nFigure saved to %s in %.2f seconds\n", saved, time.Since(startTime).Seconds())
	return nil
}

// askRunSettings fills in the folders, file type and blur interactively
func askRunSettings(ctx context.Context, prompt *batch.PromptSource, cfg *config.Config) error {
	fmt.Println("============================================================")
	fmt.Println("MICROSCOPY FIGURE BATCH PROCESSOR")
	fmt.Println("============================================================")

	var err error
	for cfg.Batch.InputDir == "" {
		if cfg.Batch.InputDir, err = prompt.Ask(ctx, "Input folder", ""); err != nil {
			return err
		}
	}
	if cfg.Batch.OutputDir == "" {
		def := filepath.Join(cfg.Batch.InputDir, "figures")
		if cfg.Batch.OutputDir, err = prompt.Ask(ctx, "Output folder", def); err != nil {
			return err
		}
	}
	if cfg.Batch.Extension, err = prompt.Ask(ctx, "File type ("+strings.Join(inputExtensions, ", ")+")", cfg.Batch.Extension); err != nil {
		return err
	}

	for {
		answer, err := prompt.Ask(ctx, "Default blur sigma", strconv.FormatFloat(cfg.Processing.BlurSigma, 'g', -1, 64))
		if err != nil {
			return err
		}
		if v, perr := strconv.ParseFloat(answer, 64); perr == nil && v >= 0 {
			cfg.Processing.BlurSigma = v
			return nil
		}
		fmt.Printf("Invalid number %q\n", answer)
	}
}

// printSettings prints the run banner and the numbered file list
func printSettings(cfg *config.Config, files []string) {
	v, _ := cfg.FigureVariant()
	f, _ := cfg.OutputFormat()

	fmt.Println("============================================================")
	fmt.Println("BATCH FIGURE SETTINGS")
	fmt.Println("============================================================")
	fmt.Printf("Input folder:  %s\n", cfg.Batch.InputDir)
	fmt.Printf("Output folder: %s\n", cfg.Batch.OutputDir)
	fmt.Printf("File type:     *.%s\n", cfg.Batch.Extension)
	fmt.Printf("Figure:        %s (%s)\n", v, f)
	fmt.Printf("Blur sigma:    %g\n", cfg.Processing.BlurSigma)
	fmt.Printf("Z-slice:       %s\n", optionalInt(cfg.Processing.ZSlice, "middle"))
	fmt.Printf("Z-range:       %s-%s\n", optionalInt(cfg.Processing.ZStart, "1"), optionalInt(cfg.Processing.ZEnd, "last"))
	fmt.Printf("\nFound %d files:\n", len(files))
	for i, path := range files {
		fmt.Printf("  %d. %s\n", i+1, filepath.Base(path))
	}
}

func optionalInt(v *int, def string) string {
	if v == nil {
		return def
	}
	return strconv.Itoa(*v)
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.Output.LogFile != "" {
		return logger.NewWithFile(cfg.Output.LogFile, cfg.Output.Verbose)
	}
	return logger.New(os.Stdout, os.Stderr, cfg.Output.Verbose), nil
}
