// Package errors defines the error vocabulary shared by every package of the
// module.
//
// Errors fall into four families that mirror how a training run reacts to them:
//
//   - schema and shape errors (ShapeError, DimensionError, ValidationError) are
//     configuration problems upstream and are never retried
//   - data quality conditions (TerminatedError) poison the accumulation round
//     that observed them
//   - resource conditions (SizeLimitError) are rejected before any allocation
//   - invariant violations are assertion failures raised through
//     cockroachdb/errors and detected with IsInvariantViolation
//
// All constructors return pointer types so that callers can use errors.As on
// wrapped chains. Stack traces are attached by the cockroachdb/errors helpers
// re-exported here (Wrap, Wrapf, New, Newf).
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/madlib/archived-madlib-sub001/pkg/log"
)

const prefix = "madtree"

// Sentinel errors. Use errors.Is to test for them.
var (
	ErrEmptyData         = errors.New("empty data")
	ErrNotImplemented    = errors.New("not implemented")
	ErrNotFitted         = errors.New("model not fitted")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrSingularMatrix    = errors.New("singular matrix")
	ErrShapeMismatch     = errors.New("accumulator shape mismatch")
	ErrTerminated        = errors.New("accumulator terminated")
	ErrSizeLimit         = errors.New("state size limit exceeded")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrSchema            = errors.New("schema violation")
)

// Re-exported cockroachdb/errors helpers so callers need a single import.
var (
	New      = errors.New
	Newf     = errors.Newf
	Wrap     = errors.Wrap
	Wrapf    = errors.Wrapf
	Is       = errors.Is
	As       = errors.As
	Unwrap   = errors.Unwrap
	Mark     = errors.Mark
	WithHint = errors.WithHint
)

// DimensionError reports a length or width that does not match what the
// receiver was configured with.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

// NewDimensionError creates a DimensionError. Axis 0 refers to rows, 1 to
// columns, and any other value to a named feature group.
func NewDimensionError(op string, expected, got, axis int) *DimensionError {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s: dimension mismatch on axis %d: expected %d, got %d",
		prefix, e.Op, e.Axis, e.Expected, e.Got)
}

// Is lets errors.Is(err, ErrDimensionMismatch) match.
func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// NotFittedError is returned when a model is used before training.
type NotFittedError struct {
	ModelName string
	Method    string
}

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) *NotFittedError {
	return &NotFittedError{ModelName: modelName, Method: method}
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: %s: %s called before Fit", prefix, e.ModelName, e.Method)
}

// Is lets errors.Is(err, ErrNotFitted) match.
func (e *NotFittedError) Is(target error) bool { return target == ErrNotFitted }

// ValueError reports an argument with an unusable value.
type ValueError struct {
	Op      string
	Message string
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) *ValueError {
	return &ValueError{Op: op, Message: message}
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
}

// ModelError wraps a cause with the operation that observed it.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

// NewModelError creates a ModelError wrapping err.
func NewModelError(op, message string, err error) *ModelError {
	return &ModelError{Op: op, Message: message, Err: err}
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ValidationError reports a hyperparameter or configuration value that failed
// validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

// NewValidationError creates a ValidationError.
func NewValidationError(param, reason string, value interface{}) *ValidationError {
	return &ValidationError{ParamName: param, Reason: reason, Value: value}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s=%v: %s", prefix, e.ParamName, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidParameter) match.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidParameter }

// ShapeError reports two accumulation buffers, or a buffer and a tree, whose
// layouts disagree. It is fatal for the whole level.
type ShapeError struct {
	Op   string
	Want []int
	Got  []int
}

// NewShapeError creates a ShapeError.
func NewShapeError(op string, want, got []int) *ShapeError {
	return &ShapeError{Op: op, Want: append([]int(nil), want...), Got: append([]int(nil), got...)}
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: shape mismatch: want %s, got %s",
		prefix, e.Op, formatShape(e.Want), formatShape(e.Got))
}

// Is lets errors.Is(err, ErrShapeMismatch) match.
func (e *ShapeError) Is(target error) bool { return target == ErrShapeMismatch }

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, s := range shape {
		parts[i] = fmt.Sprint(s)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// TerminatedError reports that an accumulation round saw a row it could not
// use. The round's result must not be trusted.
type TerminatedError struct {
	Op     string
	Reason string
	Rows   int64
}

// NewTerminatedError creates a TerminatedError.
func NewTerminatedError(op, reason string, rows int64) *TerminatedError {
	return &TerminatedError{Op: op, Reason: reason, Rows: rows}
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("%s: %s: accumulation terminated after %d rows: %s", prefix, e.Op, e.Rows, e.Reason)
}

// Is lets errors.Is(err, ErrTerminated) match.
func (e *TerminatedError) Is(target error) bool { return target == ErrTerminated }

// SizeLimitError reports a state allocation that would exceed the single
// allocation limit.
type SizeLimitError struct {
	Op        string
	Requested int64
	Limit     int64
}

// NewSizeLimitError creates a SizeLimitError. Sizes are in bytes.
func NewSizeLimitError(op string, requested, limit int64) *SizeLimitError {
	return &SizeLimitError{Op: op, Requested: requested, Limit: limit}
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s: %s: requested state of %d bytes exceeds limit of %d bytes",
		prefix, e.Op, e.Requested, e.Limit)
}

// Is lets errors.Is(err, ErrSizeLimit) match.
func (e *SizeLimitError) Is(target error) bool { return target == ErrSizeLimit }

// NewInvariantViolation reports a broken structural invariant. These are
// programming errors, never data errors.
func NewInvariantViolation(format string, args ...interface{}) error {
	return errors.AssertionFailedf(format, args...)
}

// IsInvariantViolation reports whether err or any error it wraps is an
// assertion failure.
func IsInvariantViolation(err error) bool {
	return errors.HasAssertionFailure(err)
}

// Warning is a non-fatal condition worth surfacing in logs.
type Warning struct {
	Op      string
	Message string
}

// NewWarning creates a Warning.
func NewWarning(op, message string) *Warning {
	return &Warning{Op: op, Message: message}
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s: %s: warning: %s", prefix, w.Op, w.Message)
}

// Warn logs a warning through the package logger.
func Warn(err error) {
	if err == nil {
		return
	}
	log.GetLoggerWithName("warnings").Warn(err.Error())
}

// Recover converts a panic in a public entry point into a ModelError stored in
// *err. Use it as `defer errors.Recover(&err, "Type.Method")`.
func Recover(err *error, op string) {
	if r := recover(); r != nil {
		var cause error
		switch v := r.(type) {
		case error:
			cause = v
		default:
			cause = errors.Newf("%v", v)
		}
		*err = NewModelError(op, "panic recovered", errors.WithStack(cause))
	}
}
