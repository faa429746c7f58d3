// Package pipeline runs the detection stages in order for one image.
//
// A Pipeline owns the stage order, the artifact persistence policy and the
// final report. It keeps no state between runs; every Run or Process call
// starts from StateAwaitingInput and ends in StateReported or StateAborted.
package pipeline

import (
	"image"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/crop-detect/internal/config"
	"github.com/ironsheep/crop-detect/internal/detection"
	"github.com/ironsheep/crop-detect/internal/imaging"
	"github.com/ironsheep/crop-detect/internal/vision"
)

// Decoder turns an image path into an image.
type Decoder interface {
	Load(path string) (image.Image, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(path string) (image.Image, error)

// Load implements Decoder.
func (f DecoderFunc) Load(path string) (image.Image, error) { return f(path) }

// State is a point in a run's lifecycle.
type State string

const (
	// StateAwaitingInput is the state before a run starts.
	StateAwaitingInput State = "awaiting_input"
	// StateReported is the terminal state of a successful run.
	StateReported State = "reported"
	// StateAborted is the terminal state of a failed run.
	StateAborted State = "aborted"
)

// stageState is the state of a run while stage executes.
func stageState(s detection.Stage) State { return State(s) }

// TransitionFunc observes every state change of a run.
type TransitionFunc func(from, to State)

// Artifact records one diagnostic image written during a run.
type Artifact struct {
	Name     string          `json:"name"`
	Stage    detection.Stage `json:"stage"`
	Location string          `json:"location"`
}

// Result is the report of a successful run.
type Result struct {
	// Detections are the accepted blobs in discovery order.
	Detections []detection.Detection `json:"detections"`

	// ContourCount is the number of contours before filtering.
	ContourCount int `json:"contour_count"`

	// Width and Height are the input image size.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Artifacts lists what was written, in write order. A name written more
	// than once appears once.
	Artifacts []Artifact `json:"artifacts,omitempty"`

	// Annotated is the original image with every detection's rectangle.
	Annotated *image.NRGBA `json:"-"`
}

// Areas returns the area of each detection, in order.
func (r *Result) Areas() []float64 {
	return detection.Areas(r.Detections)
}

// Count returns the number of detections.
func (r *Result) Count() int { return len(r.Detections) }

// Pipeline runs the detector with one configuration.
type Pipeline struct {
	cfg      config.Config
	prims    vision.Primitives
	stages   *detection.Stages
	decoder  Decoder
	store    imaging.ArtifactStore
	logger   *logrus.Logger
	observer TransitionFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPrimitives replaces the raster primitives (default vision.Default).
func WithPrimitives(p vision.Primitives) Option {
	return func(pl *Pipeline) { pl.prims = p }
}

// WithDecoder replaces the image decoder (default imaging.Decode).
func WithDecoder(d Decoder) Option {
	return func(pl *Pipeline) { pl.decoder = d }
}

// WithStore replaces the artifact store (default a DiskStore on
// cfg.Output.Dir).
func WithStore(s imaging.ArtifactStore) Option {
	return func(pl *Pipeline) { pl.store = s }
}

// WithLogger sets the logger (default discards everything).
func WithLogger(l *logrus.Logger) Option {
	return func(pl *Pipeline) { pl.logger = l }
}

// WithObserver registers a callback for every state transition.
func WithObserver(fn TransitionFunc) Option {
	return func(pl *Pipeline) { pl.observer = fn }
}

// New validates cfg and returns a Pipeline.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}

	if p.prims == nil {
		p.prims = vision.Default()
	}
	if p.decoder == nil {
		p.decoder = DecoderFunc(imaging.Decode)
	}
	if p.store == nil {
		p.store = imaging.NewDiskStore(cfg.Output.Dir)
	}
	if p.logger == nil {
		p.logger = logrus.New()
		p.logger.SetOutput(io.Discard)
	}
	p.stages = detection.NewStages(p.prims, cfg)

	return p, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() config.Config { return p.cfg }

// Run decodes the image at path and processes it.
func (p *Pipeline) Run(path string) (*Result, error) {
	r := p.newRun()
	r.enter(stageState(detection.StageLoad))

	img, err := p.decoder.Load(path)
	if err != nil {
		return nil, r.abort(detection.NewStageError(detection.StageLoad, detection.KindDecode, err))
	}
	r.log.WithFields(logrus.Fields{
		"path":   path,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug("Image loaded")

	return r.process(img)
}

// Process runs every stage after loading on img.
func (p *Pipeline) Process(img image.Image) (*Result, error) {
	r := p.newRun()
	r.enter(stageState(detection.StageLoad))
	if img == nil || img.Bounds().Empty() {
		return nil, r.abort(detection.NewStageError(detection.StageLoad, detection.KindDecode, errors.New("empty image")))
	}
	return r.process(img)
}

// run carries the state of one invocation.
type run struct {
	p         *Pipeline
	state     State
	log       *logrus.Entry
	artifacts []Artifact
}

func (p *Pipeline) newRun() *run {
	return &run{
		p:     p,
		state: StateAwaitingInput,
		log:   logrus.NewEntry(p.logger),
	}
}

func (r *run) enter(to State) {
	from := r.state
	r.state = to
	r.log.WithFields(logrus.Fields{
		"from":  from,
		"stage": to,
	}).Debug("Stage transition")
	if r.p.observer != nil {
		r.p.observer(from, to)
	}
}

func (r *run) abort(err error) error {
	stage := r.state
	r.enter(StateAborted)
	r.log.WithFields(logrus.Fields{
		"stage": stage,
		"error": err,
	}).Debug("Run aborted")
	return err
}

// save persists img under name as the output of stage.
func (r *run) save(stage detection.Stage, name string, img image.Image) error {
	loc, err := r.p.store.Save(name, img)
	if err != nil {
		return detection.NewStageError(stage, detection.KindEncode, err)
	}
	if loc == "" {
		return nil
	}
	r.log.WithFields(logrus.Fields{
		"artifact": name,
		"path":     loc,
	}).Debug("Artifact written")

	for i := range r.artifacts {
		if r.artifacts[i].Name == name {
			r.artifacts[i] = Artifact{Name: name, Stage: stage, Location: loc}
			return nil
		}
	}
	r.artifacts = append(r.artifacts, Artifact{Name: name, Stage: stage, Location: loc})
	return nil
}

func (r *run) process(original image.Image) (*Result, error) {
	s := r.p.stages
	out := r.p.cfg.Output

	r.enter(stageState(detection.StagePreprocess))
	smoothed, err := s.Preprocess(original)
	if err != nil {
		return nil, r.abort(err)
	}
	if err := r.save(detection.StagePreprocess, out.Smoothed, smoothed); err != nil {
		return nil, r.abort(err)
	}

	r.enter(stageState(detection.StageConvertColor))
	hsv, err := s.ConvertColor(smoothed)
	if err != nil {
		return nil, r.abort(err)
	}
	if err := r.save(detection.StageConvertColor, out.HSV, hsv); err != nil {
		return nil, r.abort(err)
	}

	r.enter(stageState(detection.StageSegment))
	mask, err := s.Segment(hsv)
	if err != nil {
		return nil, r.abort(err)
	}
	if err := r.save(detection.StageSegment, out.Mask, mask); err != nil {
		return nil, r.abort(err)
	}

	r.enter(stageState(detection.StageRefine))
	refined, err := s.Refine(mask)
	if err != nil {
		return nil, r.abort(err)
	}
	if err := r.save(detection.StageRefine, out.Refined, refined); err != nil {
		return nil, r.abort(err)
	}

	r.enter(stageState(detection.StageExtractContours))
	contours, _, err := s.ExtractContours(refined)
	if err != nil {
		return nil, r.abort(err)
	}
	overlay, err := s.OverlayContours(original, contours)
	if err != nil {
		return nil, r.abort(err)
	}
	if err := r.save(detection.StageExtractContours, out.Contours, overlay); err != nil {
		return nil, r.abort(err)
	}

	r.enter(stageState(detection.StageFilter))
	accepted := s.Filter(contours)
	r.log.WithFields(logrus.Fields{
		"contours": len(contours),
		"accepted": len(accepted),
	}).Debug("Contours filtered")

	r.enter(stageState(detection.StageAnnotate))
	var onDraw detection.DrawFunc
	if out.AnnotatedWrites == config.WriteEach {
		onDraw = func(_ int, canvas *image.NRGBA) error {
			return r.save(detection.StageAnnotate, out.Final, canvas)
		}
	}
	annotated, detections, err := s.Annotate(original, accepted, onDraw)
	if err != nil {
		return nil, r.abort(err)
	}
	for _, d := range detections {
		r.log.WithFields(logrus.Fields{
			"area":      d.Area,
			"perimeter": d.Perimeter,
			"bounds":    d.Bounds,
		}).Debug("Detection accepted")
	}
	if len(detections) > 0 && onDraw == nil {
		if err := r.save(detection.StageAnnotate, out.Final, annotated); err != nil {
			return nil, r.abort(err)
		}
	}

	r.enter(stageState(detection.StageReport))
	b := original.Bounds()
	result := &Result{
		Detections:   detections,
		ContourCount: len(contours),
		Width:        b.Dx(),
		Height:       b.Dy(),
		Artifacts:    r.artifacts,
		Annotated:    annotated,
	}
	r.log.WithFields(logrus.Fields{
		"contours":   result.ContourCount,
		"detections": result.Count(),
		"areas":      result.Areas(),
	}).Info("Detection complete")

	r.enter(StateReported)
	return result, nil
}
