package aquamon

import (
	"fmt"

	"github.com/pkg/errors"
)

// MalformedFrameError reports a frame that could not be parsed into a RawSample.
// The sample is discarded and the loop continues.
type MalformedFrameError struct {
	Frame string
	// Field is the zero-based index of the offending field, -1 for a field count mismatch.
	Field int
	Err   error
}

func (e *MalformedFrameError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("malformed frame %q: %s", e.Frame, e.Err)
	}
	return fmt.Sprintf("malformed frame %q: field %d: %s", e.Frame, e.Field, e.Err)
}

func (e *MalformedFrameError) Cause() error  { return e.Err }
func (e *MalformedFrameError) Unwrap() error { return e.Err }

// TransportError reports a fault on the sensor channel: connect failure,
// disconnect or a transport-level read error.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %s", e.Op, e.Err)
}

func (e *TransportError) Cause() error  { return e.Err }
func (e *TransportError) Unwrap() error { return e.Err }

// InferenceError reports a failure of the regression or sequence model.
type InferenceError struct {
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference: %s", e.Model, e.Err)
}

func (e *InferenceError) Cause() error  { return e.Err }
func (e *InferenceError) Unwrap() error { return e.Err }

// GenerationError reports that no report text could be produced.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("report generation: %s", e.Err)
}

func (e *GenerationError) Cause() error  { return e.Err }
func (e *GenerationError) Unwrap() error { return e.Err }

func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

func NewInferenceError(model string, err error) error {
	return &InferenceError{Model: model, Err: err}
}

func NewGenerationError(err error) error {
	return &GenerationError{Err: err}
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsMalformed(err error) bool {
	var target *MalformedFrameError
	return errors.As(err, &target)
}

func IsInference(err error) bool {
	var target *InferenceError
	return errors.As(err, &target)
}

func IsGeneration(err error) bool {
	var target *GenerationError
	return errors.As(err, &target)
}

// Kind names the taxonomy bucket of err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTransport(err):
		return "transport"
	case IsMalformed(err):
		return "malformed"
	case IsInference(err):
		return "inference"
	case IsGeneration(err):
		return "generation"
	default:
		return "unknown"
	}
}
