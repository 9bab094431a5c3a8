package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	// CategoryMalformedInput covers signature mismatches, truncated streams and
	// codec events arriving out of order.
	CategoryMalformedInput Category = "malformed_input"
	// CategoryConfigRejected is used when the codec refuses a configuration call.
	CategoryConfigRejected Category = "config_rejected"
	// CategorySizeMismatch is used when a computed buffer size disagrees with
	// the actual one, for decode output or encode input.
	CategorySizeMismatch Category = "size_mismatch"
	// CategoryResourceExhausted is used when the compressed output cannot grow.
	CategoryResourceExhausted Category = "resource_exhausted"
	CategoryInput             Category = "input"
	CategoryBackend           Category = "backend"
	CategoryConfig            Category = "config"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.  A nil err yields nil.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// Newf is New with a formatted message wrapping sentinel.
func Newf(category Category, op string, sentinel error, format string, args ...any) *ProcessingError {
	return New(category, op, fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...))
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CategoryOf returns the category of err, or "" when err is not a
// ProcessingError.
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// Sentinel errors for common failure modes.
var (
	ErrEmptyInput         = errors.New("empty input")
	ErrInvalidDimensions  = errors.New("invalid dimensions")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrUnsupportedFormat  = errors.New("unsupported image format")
	ErrSignatureMismatch  = errors.New("signature mismatch")
	ErrNeedMoreInput      = errors.New("decoder needs more input")
	ErrDecoderFailed      = errors.New("decoder reported an error")
	ErrUnexpectedEvent    = errors.New("unexpected codec event")
	ErrCodecRejected      = errors.New("codec rejected configuration")
	ErrBufferSizeMismatch = errors.New("buffer size mismatch")
	ErrEncoderFailed      = errors.New("encoder reported an error")
	ErrOutputExhausted    = errors.New("compressed output exceeds limit")
	ErrBackendUnavailable = errors.New("codec backend unavailable")
	ErrInputTooLarge      = errors.New("input exceeds size limit")
	ErrImageTooLarge      = errors.New("image area exceeds pixel limit")
)
