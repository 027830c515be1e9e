package worker

import (
	"errors"
	"strings"

	"thinkchat/internal/engine"
	"thinkchat/pkg/types"
)

// ErrClosed is returned by Send after Close or after Run returned.
var ErrClosed = errors.New("worker closed")

// capabilityUnavailableError signals that no usable compute adapter exists.
type capabilityUnavailableError struct {
	detail string
	cause  error
}

func (e capabilityUnavailableError) Error() string { return e.detail }
func (e capabilityUnavailableError) Unwrap() error { return e.cause }

// ErrCapabilityUnavailable constructs a capabilityUnavailableError.
func ErrCapabilityUnavailable(detail string, cause error) error {
	return capabilityUnavailableError{detail: detail, cause: cause}
}

// IsCapabilityUnavailable reports whether the compute capability is missing.
func IsCapabilityUnavailable(err error) bool {
	var e capabilityUnavailableError
	return errors.As(err, &e)
}

// resourceError wraps a tokenizer/model acquisition or warm-up failure with a
// user-facing message.
type resourceError struct {
	friendly string
	cause    error
}

func (e resourceError) Error() string { return "Model loading failed: " + e.friendly }
func (e resourceError) Unwrap() error { return e.cause }

// ErrResourceFailure classifies cause into a resourceError.
func ErrResourceFailure(cause error) error {
	detail := "unknown error"
	if cause != nil {
		detail = cause.Error()
	}
	// A missing model id is reported verbatim; the text rules would
	// misread ids such as "memory-7b".
	if engine.IsModelNotFound(cause) {
		return resourceError{friendly: detail + ". Check the configured model id.", cause: cause}
	}
	return resourceError{friendly: friendlyLoadError(detail), cause: cause}
}

// IsResourceFailure reports whether err is a fatal resource acquisition failure.
func IsResourceFailure(err error) bool {
	var e resourceError
	return errors.As(err, &e)
}

type invalidRequestError struct{ reason string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.reason }

func ErrInvalidRequest(reason string) error { return invalidRequestError{reason: reason} }

// IsInvalidRequest reports whether a command was rejected without side effects.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e)
}

type generationError struct{ cause error }

func (e generationError) Error() string { return "generation failed: " + e.cause.Error() }
func (e generationError) Unwrap() error { return e.cause }

func ErrGenerationFailure(cause error) error { return generationError{cause: cause} }

// IsGenerationFailure reports whether err is a recoverable generation failure.
func IsGenerationFailure(err error) bool {
	var e generationError
	return errors.As(err, &e)
}

// Classify maps err to the class reported in error events.
func Classify(err error) types.ErrorClass {
	switch {
	case IsCapabilityUnavailable(err):
		return types.ClassCapabilityUnavailable
	case IsResourceFailure(err):
		return types.ClassResourceAcquisition
	case IsInvalidRequest(err):
		return types.ClassInvalidRequest
	default:
		return types.ClassGenerationFailure
	}
}

// loadErrorRule rewrites load failures whose detail contains any pattern.
type loadErrorRule struct {
	patterns []string
	message  string
}

// loadErrorRules are evaluated in order; the first match wins.
var loadErrorRules = []loadErrorRule{
	{
		patterns: []string{"3944596720", "WebGPU", "device creation", "CUDA error"},
		message:  "GPU device creation failed. Try restarting the worker or check your GPU drivers.",
	},
	{
		patterns: []string{"onnxruntime", "session"},
		message:  "Model initialization failed. The model may be corrupted or incompatible.",
	},
	{
		patterns: []string{"memory", "OOM"},
		message:  "Insufficient GPU memory. Try closing other applications or use a device with more VRAM.",
	},
}

func friendlyLoadError(detail string) string {
	for _, r := range loadErrorRules {
		for _, p := range r.patterns {
			if strings.Contains(detail, p) {
				return r.message
			}
		}
	}
	return detail
}
