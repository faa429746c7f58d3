package detection

import (
	"fmt"

	"github.com/pkg/errors"
)

// Stage names a step of the detection run.
type Stage string

// Stages in the order they run.
const (
	StageLoad            Stage = "load"
	StagePreprocess      Stage = "preprocess"
	StageConvertColor    Stage = "convert_color"
	StageSegment         Stage = "segment"
	StageRefine          Stage = "refine"
	StageExtractContours Stage = "extract_contours"
	StageFilter          Stage = "filter"
	StageAnnotate        Stage = "annotate"
	StageReport          Stage = "report"
)

// ErrorKind classifies a stage failure.
type ErrorKind int

const (
	// KindDecode means the input image is missing, unreadable or corrupt.
	KindDecode ErrorKind = iota + 1
	// KindOperation means a vision primitive rejected its input.
	KindOperation
	// KindEncode means an output could not be written.
	KindEncode
)

func (k ErrorKind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindOperation:
		return "operation"
	case KindEncode:
		return "encode"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against any *StageError of the same kind.
var (
	ErrDecode    = errors.New("decode error")
	ErrOperation = errors.New("operation error")
	ErrEncode    = errors.New("encode error")
)

// StageError reports which stage failed and why.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *StageError) Is(target error) bool {
	switch target {
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrOperation:
		return e.Kind == KindOperation
	case ErrEncode:
		return e.Kind == KindEncode
	}
	return false
}

// NewStageError wraps err as a failure of stage. A nil err yields nil, and an
// err that already is a *StageError is returned unchanged.
func NewStageError(stage Stage, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// StageOf returns the stage named by err, if err wraps a *StageError.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

func operationError(stage Stage, err error) error {
	return NewStageError(stage, KindOperation, err)
}
