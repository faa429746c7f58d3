package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/crop-detect/internal/config"
)

var (
	plantColor = color.NRGBA{40, 200, 150, 255}
	soilColor  = color.NRGBA{120, 80, 40, 255}
)

// writeFieldImage writes a 200x200 soil image with two plants and a speck.
func writeFieldImage(t *testing.T) string {
	t.Helper()

	plants := []image.Rectangle{
		image.Rect(100, 100, 140, 140),
		image.Rect(20, 150, 50, 180),
		image.Rect(10, 10, 12, 12),
	}
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			c := soilColor
			for _, r := range plants {
				if (image.Point{x, y}).In(r) {
					c = plantColor
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "field.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

// runApp runs the CLI with args and returns stdout, stderr and the error.
func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"cropdetect"}, args...))
	return stdout.String(), stderr.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()

	var coder cli.ExitCoder
	require.ErrorAs(t, err, &coder)
	return coder.ExitCode()
}

func TestDetect_PrintsAreas(t *testing.T) {
	img := writeFieldImage(t)

	stdout, _, err := runApp(t, "detect", "--no-artifacts", img)
	require.NoError(t, err)
	assert.Equal(t, "areas: [1849 1089]\n", stdout)
}

func TestDetect_NoDetections(t *testing.T) {
	img := writeFieldImage(t)

	stdout, _, err := runApp(t, "detect", "--no-artifacts", "--min-area", "5000", img)
	require.NoError(t, err)
	assert.Equal(t, "areas: []\n", stdout)
}

func TestDetect_JSON(t *testing.T) {
	img := writeFieldImage(t)

	stdout, _, err := runApp(t, "detect", "--no-artifacts", "--json", img)
	require.NoError(t, err)

	var got report
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, img, got.Path)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, []float64{1849, 1089}, got.Areas)
	assert.Equal(t, 2, got.ContourCount)
	require.Len(t, got.Detections, 2)
	assert.Equal(t, 98, got.Detections[0].Bounds.X)
	assert.Equal(t, 44, got.Detections[0].Bounds.Width)
	assert.Empty(t, got.Artifacts)
}

func TestDetect_WritesArtifacts(t *testing.T) {
	img := writeFieldImage(t)
	outDir := filepath.Join(t.TempDir(), "out")

	_, _, err := runApp(t, "detect", "--out-dir", outDir, img)
	require.NoError(t, err)

	for _, name := range []string{
		config.DefaultSmoothedName,
		config.DefaultHSVName,
		config.DefaultMaskName,
		config.DefaultRefinedName,
		config.DefaultContoursName,
		config.DefaultFinalName,
	} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}
}

func TestDetect_ConfigFile(t *testing.T) {
	img := writeFieldImage(t)
	cfgPath := filepath.Join(t.TempDir(), "detect.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("filter:\n  min_area: 1500\n"), 0o644))

	stdout, _, err := runApp(t, "detect", "--config", cfgPath, "--no-artifacts", img)
	require.NoError(t, err)
	assert.Equal(t, "areas: [1849]\n", stdout)

	// Flags override the file.
	stdout, _, err = runApp(t, "detect", "-c", cfgPath, "--min-area", "100", "--no-artifacts", img)
	require.NoError(t, err)
	assert.Equal(t, "areas: [1849 1089]\n", stdout)
}

func TestDetect_LoadFailure(t *testing.T) {
	_, _, err := runApp(t, "detect", "--no-artifacts", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(t, err))
	assert.Contains(t, err.Error(), "load: decode error")
}

func TestDetect_UsageErrors(t *testing.T) {
	img := writeFieldImage(t)
	badCfg := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badCfg, []byte("erode:\n  kernel_size: 4\n"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"no image", []string{"detect"}},
		{"two images", []string{"detect", img, img}},
		{"bad log level", []string{"--log-level", "loud", "detect", img}},
		{"bad log format", []string{"--log-format", "xml", "detect", img}},
		{"missing config", []string{"detect", "--config", "/nonexistent/detect.yaml", img}},
		{"invalid config", []string{"detect", "--config", badCfg, img}},
		{"negative threshold", []string{"detect", "--min-area", "-1", img}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := runApp(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, exitUsage, exitCode(t, err))
			assert.Empty(t, stdout)
		})
	}
}

func TestDetect_LogsToStderr(t *testing.T) {
	img := writeFieldImage(t)

	stdout, stderr, err := runApp(t, "--log-level", "debug", "--log-format", "json", "detect", "--no-artifacts", img)
	require.NoError(t, err)
	assert.Equal(t, "areas: [1849 1089]\n", stdout)
	assert.Contains(t, stderr, `"msg":"Detection complete"`)
	assert.Contains(t, stderr, `"msg":"Stage transition"`)
}

func TestDetect_LogLevelFromEnv(t *testing.T) {
	img := writeFieldImage(t)
	t.Setenv(envLogLevel, "error")

	_, stderr, err := runApp(t, "detect", "--no-artifacts", img)
	require.NoError(t, err)
	assert.Empty(t, stderr)
}

func TestVersion(t *testing.T) {
	stdout, _, err := runApp(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cropdetect "+Version)
	assert.Contains(t, stdout, "Build time: "+BuildTime)
	assert.Contains(t, stdout, "Git commit: "+GitCommit)
}
