// Command cropdetect counts color-distinct plants in field images.
//
// It runs the detection pipeline on one image (detect) or serves the
// pipeline to MCP clients over stdio (serve). Logs go to stderr; stdout
// carries results and the MCP protocol.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/crop-detect/internal/config"
	"github.com/ironsheep/crop-detect/internal/detection"
	"github.com/ironsheep/crop-detect/internal/imaging"
	"github.com/ironsheep/crop-detect/internal/pipeline"
	"github.com/ironsheep/crop-detect/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	// Flags.
	flagConfig       = "config"
	flagOutDir       = "out-dir"
	flagWriteEach    = "write-each"
	flagNoArtifacts  = "no-artifacts"
	flagJSON         = "json"
	flagMinArea      = "min-area"
	flagMinPerimeter = "min-perimeter"
	flagLogLevel     = "log-level"
	flagLogFormat    = "log-format"

	envLogLevel = "CROPDETECT_LOG_LEVEL"

	logFormatText = "text"
	logFormatJSON = "json"

	// exitFailure is returned when a run fails; exitUsage when the
	// invocation itself is wrong.
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	configFlag := &cli.StringFlag{
		Name:    flagConfig,
		Aliases: []string{"c"},
		Usage:   "load detection parameters from YAML `FILE`",
	}

	return &cli.App{
		Name:      "cropdetect",
		Usage:     "count color-distinct plants in field images",
		Version:   Version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "log `LEVEL` (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{envLogLevel},
			},
			&cli.StringFlag{
				Name:  flagLogFormat,
				Usage: "log `FORMAT` (text or json)",
				Value: logFormatText,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "detect plants in one image and print their areas",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  flagOutDir,
						Usage: "write diagnostic images to `DIR` (default from config, else .)",
					},
					&cli.BoolFlag{
						Name:  flagWriteEach,
						Usage: "rewrite the annotated image after every rectangle",
					},
					&cli.BoolFlag{
						Name:  flagNoArtifacts,
						Usage: "do not write any diagnostic images",
					},
					&cli.Float64Flag{
						Name:  flagMinArea,
						Usage: "override the minimum contour area",
					},
					&cli.Float64Flag{
						Name:  flagMinPerimeter,
						Usage: "override the minimum contour perimeter",
					},
					&cli.BoolFlag{
						Name:  flagJSON,
						Usage: "print the full report as JSON",
					},
				},
				Action: runDetect,
			},
			{
				Name:   "serve",
				Usage:  "serve crop detection to MCP clients over stdio",
				Flags:  []cli.Flag{configFlag},
				Action: runServe,
			},
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(c *cli.Context) error {
					w := c.App.Writer
					fmt.Fprintf(w, "cropdetect %s\n", Version)
					fmt.Fprintf(w, "  Build time: %s\n", BuildTime)
					fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
					return nil
				},
			},
		},
	}
}

// newLogger builds the process logger on the app's error writer.
func newLogger(c *cli.Context) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.String(flagLogLevel))
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(c.App.ErrWriter)
	logger.SetLevel(level)

	switch c.String(flagLogFormat) {
	case logFormatText:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	case logFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", c.String(flagLogFormat))
	}

	return logger, nil
}

// setup builds the logger and loads the configuration shared by every
// command.
func setup(c *cli.Context) (*logrus.Logger, config.Config, error) {
	logger, err := newLogger(c)
	if err != nil {
		return nil, config.Config{}, cli.Exit(err.Error(), exitUsage)
	}

	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, config.Config{}, cli.Exit(err.Error(), exitUsage)
	}
	return logger, cfg, nil
}

func runDetect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("detect requires exactly one IMAGE argument", exitUsage)
	}

	logger, cfg, err := setup(c)
	if err != nil {
		return err
	}

	if c.IsSet(flagOutDir) {
		cfg.Output.Dir = c.String(flagOutDir)
	}
	if c.Bool(flagWriteEach) {
		cfg.Output.AnnotatedWrites = config.WriteEach
	}
	if c.IsSet(flagMinArea) {
		cfg.Filter.MinArea = c.Float64(flagMinArea)
	}
	if c.IsSet(flagMinPerimeter) {
		cfg.Filter.MinPerimeter = c.Float64(flagMinPerimeter)
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if c.Bool(flagNoArtifacts) {
		opts = append(opts, pipeline.WithStore(imaging.NopStore{}))
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	path := c.Args().First()
	result, err := p.Run(path)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	if c.Bool(flagJSON) {
		return printJSON(c.App.Writer, path, result)
	}
	fmt.Fprintf(c.App.Writer, "areas: %v\n", result.Areas())
	return nil
}

// report is the --json output of detect.
type report struct {
	Path         string                `json:"path"`
	Count        int                   `json:"count"`
	Areas        []float64             `json:"areas"`
	ContourCount int                   `json:"contour_count"`
	Detections   []detection.Detection `json:"detections"`
	Artifacts    []pipeline.Artifact   `json:"artifacts"`
}

func printJSON(w io.Writer, path string, result *pipeline.Result) error {
	artifacts := result.Artifacts
	if artifacts == nil {
		artifacts = []pipeline.Artifact{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report{
		Path:         path,
		Count:        result.Count(),
		Areas:        result.Areas(),
		ContourCount: result.ContourCount,
		Detections:   result.Detections,
		Artifacts:    artifacts,
	})
}

func runServe(c *cli.Context) error {
	logger, cfg, err := setup(c)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("Crop detect MCP server starting")

	srv := server.New(cfg, logger)
	srv.Version = Version
	if err := srv.Run(); err != nil {
		return cli.Exit(fmt.Sprintf("server error: %v", err), exitFailure)
	}
	return nil
}
