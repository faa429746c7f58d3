// Package config holds the parameters of the crop detection pipeline.
//
// Every value the pipeline uses (kernel sizes, the HSV color range, the
// acceptance thresholds, the drawing style and the artifact names) lives in a
// single Config value that is passed to the orchestrator. The defaults are the
// detector's tuned parameters and are exposed as named constants.
package config

import (
	"fmt"
	"image/color"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Gaussian smoothing defaults. A sigma of zero derives it from the kernel
// size.
const (
	DefaultBlurKernelSize = 3
	DefaultBlurSigma      = 0.0
)

// HSV range defaults. Hue uses the 0-179 convention (degrees halved) so that
// it fits in a byte; saturation and value use 0-255.
var (
	DefaultMinHSV = HSVBound{H: 65, S: 33, V: 117}
	DefaultMaxHSV = HSVBound{H: 98, S: 255, V: 255}
)

// Morphology defaults. Erosion removes speckle; dilation merges the
// fragments that survive.
const (
	DefaultErodeKernelSize  = 3
	DefaultDilateKernelSize = 7
	DefaultMorphIterations  = 1
)

// Acceptance thresholds. A contour is a detection only when both hold.
const (
	DefaultMinArea      = 600.0 // square pixels
	DefaultMinPerimeter = 30.0  // pixels
)

// Drawing defaults.
const (
	DefaultRectColor     = "#FF0000"
	DefaultRectThickness = 2
	DefaultContourColor  = "#00FF00"
)

// Artifact file names, written into Output.Dir in pipeline order.
const (
	DefaultSmoothedName = "gauss_output.jpg"
	DefaultHSVName      = "hsv_output.jpg"
	DefaultMaskName     = "filtered_output.jpg"
	DefaultRefinedName  = "morpho_output.jpg"
	DefaultContoursName = "count_output.jpg"
	DefaultFinalName    = "final_output.jpg"
)

// WriteMode controls how often the annotated image is persisted.
type WriteMode string

const (
	// WriteOnce persists the annotated image a single time after every
	// rectangle has been drawn.
	WriteOnce WriteMode = "once"
	// WriteEach persists the annotated image after each accepted detection,
	// overwriting the previous write.
	WriteEach WriteMode = "each"
)

// HSVBound is one corner of an HSV color range.
type HSVBound struct {
	H uint8 `yaml:"h" json:"h"`
	S uint8 `yaml:"s" json:"s"`
	V uint8 `yaml:"v" json:"v"`
}

// Array returns the bound as an ordered (H, S, V) triple.
func (b HSVBound) Array() [3]uint8 {
	return [3]uint8{b.H, b.S, b.V}
}

// ColorRange is an inclusive, axis-aligned box in HSV space.
type ColorRange struct {
	Min HSVBound `yaml:"min" json:"min"`
	Max HSVBound `yaml:"max" json:"max"`
}

// Contains reports whether the pixel (h, s, v) lies inside the range on
// every channel, bounds included.
func (r ColorRange) Contains(h, s, v uint8) bool {
	return h >= r.Min.H && h <= r.Max.H &&
		s >= r.Min.S && s <= r.Max.S &&
		v >= r.Min.V && v <= r.Max.V
}

// Blur configures the Gaussian smoothing stage.
type Blur struct {
	KernelSize int     `yaml:"kernel_size" json:"kernel_size"`
	Sigma      float64 `yaml:"sigma" json:"sigma"`
}

// Morph configures one morphological operation.
type Morph struct {
	KernelSize int `yaml:"kernel_size" json:"kernel_size"`
	Iterations int `yaml:"iterations" json:"iterations"`
}

// Filter holds the geometric acceptance rule.
type Filter struct {
	MinArea      float64 `yaml:"min_area" json:"min_area"`
	MinPerimeter float64 `yaml:"min_perimeter" json:"min_perimeter"`
}

// Accept reports whether a contour with the given area and perimeter is a
// detection. Both thresholds must be met.
func (f Filter) Accept(area, perimeter float64) bool {
	return area >= f.MinArea && perimeter >= f.MinPerimeter
}

// Draw configures the annotation style.
type Draw struct {
	RectColor     string `yaml:"rect_color" json:"rect_color"`
	RectThickness int    `yaml:"rect_thickness" json:"rect_thickness"`
	ContourColor  string `yaml:"contour_color" json:"contour_color"`
}

// Rect returns the parsed rectangle color.
func (d Draw) Rect() (color.NRGBA, error) {
	return parseHex(d.RectColor)
}

// Contour returns the parsed contour overlay color.
func (d Draw) Contour() (color.NRGBA, error) {
	return parseHex(d.ContourColor)
}

// Output names the diagnostic artifacts and the annotated result.
type Output struct {
	Dir             string    `yaml:"dir" json:"dir"`
	Smoothed        string    `yaml:"smoothed" json:"smoothed"`
	HSV             string    `yaml:"hsv" json:"hsv"`
	Mask            string    `yaml:"mask" json:"mask"`
	Refined         string    `yaml:"refined" json:"refined"`
	Contours        string    `yaml:"contours" json:"contours"`
	Final           string    `yaml:"final" json:"final"`
	AnnotatedWrites WriteMode `yaml:"annotated_writes" json:"annotated_writes"`
}

// Config is the complete pipeline configuration.
type Config struct {
	Blur       Blur       `yaml:"blur" json:"blur"`
	ColorRange ColorRange `yaml:"color_range" json:"color_range"`
	Erode      Morph      `yaml:"erode" json:"erode"`
	Dilate     Morph      `yaml:"dilate" json:"dilate"`
	Filter     Filter     `yaml:"filter" json:"filter"`
	Draw       Draw       `yaml:"draw" json:"draw"`
	Output     Output     `yaml:"output" json:"output"`
}

// Default returns the tuned detector parameters.
func Default() Config {
	return Config{
		Blur: Blur{
			KernelSize: DefaultBlurKernelSize,
			Sigma:      DefaultBlurSigma,
		},
		ColorRange: ColorRange{
			Min: DefaultMinHSV,
			Max: DefaultMaxHSV,
		},
		Erode: Morph{
			KernelSize: DefaultErodeKernelSize,
			Iterations: DefaultMorphIterations,
		},
		Dilate: Morph{
			KernelSize: DefaultDilateKernelSize,
			Iterations: DefaultMorphIterations,
		},
		Filter: Filter{
			MinArea:      DefaultMinArea,
			MinPerimeter: DefaultMinPerimeter,
		},
		Draw: Draw{
			RectColor:     DefaultRectColor,
			RectThickness: DefaultRectThickness,
			ContourColor:  DefaultContourColor,
		},
		Output: Output{
			Dir:             ".",
			Smoothed:        DefaultSmoothedName,
			HSV:             DefaultHSVName,
			Mask:            DefaultMaskName,
			Refined:         DefaultRefinedName,
			Contours:        DefaultContoursName,
			Final:           DefaultFinalName,
			AnnotatedWrites: WriteOnce,
		},
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default values. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration and returns every problem found,
// combined into one error.
func (c Config) Validate() error {
	var err error

	err = multierr.Append(err, validateKernel("blur.kernel_size", c.Blur.KernelSize))
	if c.Blur.Sigma < 0 {
		err = multierr.Append(err, fmt.Errorf("blur.sigma must be >= 0, got %g", c.Blur.Sigma))
	}

	lo, hi := c.ColorRange.Min, c.ColorRange.Max
	if lo.H > hi.H || lo.S > hi.S || lo.V > hi.V {
		err = multierr.Append(err, fmt.Errorf("color_range.min %v exceeds color_range.max %v", lo, hi))
	}

	err = multierr.Append(err, validateKernel("erode.kernel_size", c.Erode.KernelSize))
	err = multierr.Append(err, validateKernel("dilate.kernel_size", c.Dilate.KernelSize))
	if c.Erode.Iterations < 1 {
		err = multierr.Append(err, fmt.Errorf("erode.iterations must be >= 1, got %d", c.Erode.Iterations))
	}
	if c.Dilate.Iterations < 1 {
		err = multierr.Append(err, fmt.Errorf("dilate.iterations must be >= 1, got %d", c.Dilate.Iterations))
	}

	if c.Filter.MinArea < 0 {
		err = multierr.Append(err, fmt.Errorf("filter.min_area must be >= 0, got %g", c.Filter.MinArea))
	}
	if c.Filter.MinPerimeter < 0 {
		err = multierr.Append(err, fmt.Errorf("filter.min_perimeter must be >= 0, got %g", c.Filter.MinPerimeter))
	}

	if c.Draw.RectThickness < 1 {
		err = multierr.Append(err, fmt.Errorf("draw.rect_thickness must be >= 1, got %d", c.Draw.RectThickness))
	}
	if _, cerr := c.Draw.Rect(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("draw.rect_color: %w", cerr))
	}
	if _, cerr := c.Draw.Contour(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("draw.contour_color: %w", cerr))
	}

	switch c.Output.AnnotatedWrites {
	case WriteOnce, WriteEach:
	default:
		err = multierr.Append(err, fmt.Errorf("output.annotated_writes must be %q or %q, got %q",
			WriteOnce, WriteEach, c.Output.AnnotatedWrites))
	}
	names := []struct{ key, value string }{
		{"output.smoothed", c.Output.Smoothed},
		{"output.hsv", c.Output.HSV},
		{"output.mask", c.Output.Mask},
		{"output.refined", c.Output.Refined},
		{"output.contours", c.Output.Contours},
		{"output.final", c.Output.Final},
	}
	for _, n := range names {
		if n.value == "" {
			err = multierr.Append(err, fmt.Errorf("%s must not be empty", n.key))
		}
	}

	return err
}

func validateKernel(key string, size int) error {
	if size < 1 || size%2 == 0 {
		return fmt.Errorf("%s must be a positive odd number, got %d", key, size)
	}
	return nil
}

func parseHex(s string) (color.NRGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
