// Package errors provides the structured error kinds and warning system of the solver.
//
// Every error returned by the solver carries a stack trace (cockroachdb/errors) and maps to
// exactly one Kind, so that a binding layer can translate it without string matching:
//
//	if errors.KindOf(err) == errors.KindInvalidWeight {
//	    // reject the call
//	}
//
// NonConvergence is the only recoverable kind: the operation that reports it also returns its
// best iterate.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("abess-Warning: %v\n", w)
	}
	// set by pkg/log at init to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the handler used by Warn when no zerolog sink is installed.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // drop warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs the structured warning sink.
// Passing nil restores the plain handler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning through the structured sink if present, else through the plain handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Error kinds
//
// ===========================================================================

// Kind identifies one of the closed set of failure categories of the solver.
type Kind string

const (
	// KindUnknown is returned by KindOf for errors not produced by this package.
	KindUnknown Kind = ""
	// KindDimensionMismatch: X, y, weights or status disagree on the number of samples.
	KindDimensionMismatch Kind = "DimensionMismatch"
	// KindInvalidWeight: a sample weight is negative or not finite.
	KindInvalidWeight Kind = "InvalidWeight"
	// KindInvalidScreeningSize: a screening or support size is outside the admissible range.
	KindInvalidScreeningSize Kind = "InvalidScreeningSize"
	// KindNonConvergence: an iterative procedure hit its iteration cap. Recoverable.
	KindNonConvergence Kind = "NonConvergence"
	// KindEmptyPath: the path produced no candidate models.
	KindEmptyPath Kind = "EmptyPath"
	// KindSingularFit: a least-squares system stayed singular after ridge regularization.
	KindSingularFit Kind = "SingularFit"
	// KindInvalidParameter: an option value is invalid.
	KindInvalidParameter Kind = "InvalidParameter"
	// KindNumericalInstability: NaN or Inf in inputs or intermediate results.
	KindNumericalInstability Kind = "NumericalInstability"
)

type kinded interface {
	Kind() Kind
}

// KindOf returns the Kind of the first error in err's chain that carries one.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// IsRecoverable reports whether err only signals a best-effort result (NonConvergence).
func IsRecoverable(err error) bool {
	return KindOf(err) == KindNonConvergence
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// ConvergenceWarning reports that an iterative procedure stopped at its iteration cap.
// It doubles as the NonConvergence error kind.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// Kind implements kinded.
func (w *ConvergenceWarning) Kind() Kind { return KindNonConvergence }

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a ConvergenceWarning without a stack, for Warn.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// NewNonConvergenceError returns a ConvergenceWarning as an error with a stack trace.
func NewNonConvergenceError(algorithm string, iterations int, message string) error {
	return errors.WithStack(NewConvergenceWarning(algorithm, iterations, message))
}

// ===========================================================================
//
//	Structured errors
//
// ===========================================================================

// NotFittedError is returned when Predict or an accessor is used before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("abess: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// Kind implements kinded.
func (e *NotFittedError) Kind() Kind { return KindInvalidParameter }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports disagreeing dimensions (the DimensionMismatch kind).
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("abess: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// Kind implements kinded.
func (e *DimensionError) Kind() Kind { return KindDimensionMismatch }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// InvalidWeightError reports a negative or non-finite sample weight. Index -1 means the
// weights as a whole are unusable and Weight holds their sum.
type InvalidWeightError struct {
	Op     string
	Index  int
	Weight float64
}

func (e *InvalidWeightError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("abess: %s: sample weights sum to %g (need a positive total)", e.Op, e.Weight)
	}
	return fmt.Sprintf("abess: %s: invalid sample weight %g at index %d (weights must be finite and non-negative)", e.Op, e.Weight, e.Index)
}

// Kind implements kinded.
func (e *InvalidWeightError) Kind() Kind { return KindInvalidWeight }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *InvalidWeightError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("index", e.Index).
		Float64("weight", e.Weight).
		Str("type", "InvalidWeightError")
}

// NewInvalidWeightError creates an InvalidWeightError with a stack trace.
func NewInvalidWeightError(op string, index int, weight float64) error {
	return errors.WithStack(&InvalidWeightError{Op: op, Index: index, Weight: weight})
}

// InvalidSizeError reports a screening or support size outside (Min-1, Max].
type InvalidSizeError struct {
	Op    string
	Param string // "screening_size" or "support_size"
	Size  int
	Min   int
	Max   int
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("abess: %s: %s %d is out of range [%d, %d]", e.Op, e.Param, e.Size, e.Min, e.Max)
}

// Kind implements kinded.
func (e *InvalidSizeError) Kind() Kind { return KindInvalidScreeningSize }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *InvalidSizeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("param", e.Param).
		Int("size", e.Size).
		Int("min", e.Min).
		Int("max", e.Max).
		Str("type", "InvalidSizeError")
}

// NewInvalidScreeningSizeError creates an InvalidSizeError for a screening size.
func NewInvalidScreeningSizeError(op string, size, min, max int) error {
	return errors.WithStack(&InvalidSizeError{Op: op, Param: "screening_size", Size: size, Min: min, Max: max})
}

// NewInvalidSupportSizeError creates an InvalidSizeError for a support size.
func NewInvalidSupportSizeError(op string, size, min, max int) error {
	return errors.WithStack(&InvalidSizeError{Op: op, Param: "support_size", Size: size, Min: min, Max: max})
}

// EmptyPathError reports that no candidate model was produced.
type EmptyPathError struct {
	Op string
}

func (e *EmptyPathError) Error() string {
	return fmt.Sprintf("abess: %s: the path produced no candidate models", e.Op)
}

// Kind implements kinded.
func (e *EmptyPathError) Kind() Kind { return KindEmptyPath }

// NewEmptyPathError creates an EmptyPathError with a stack trace.
func NewEmptyPathError(op string) error {
	return errors.WithStack(&EmptyPathError{Op: op})
}

// SingularFitError reports a system that stayed singular after ridge regularization.
type SingularFitError struct {
	Op        string
	Condition float64
	Ridge     float64
}

func (e *SingularFitError) Error() string {
	return fmt.Sprintf("abess: %s: singular system (condition %.3g) after ridge %.3g", e.Op, e.Condition, e.Ridge)
}

// Kind implements kinded.
func (e *SingularFitError) Kind() Kind { return KindSingularFit }

// Unwrap links the error to ErrSingularMatrix.
func (e *SingularFitError) Unwrap() error { return ErrSingularMatrix }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *SingularFitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Float64("condition", e.Condition).
		Float64("ridge", e.Ridge).
		Str("type", "SingularFitError")
}

// NewSingularFitError creates a SingularFitError with a stack trace.
func NewSingularFitError(op string, condition, ridge float64) error {
	return errors.WithStack(&SingularFitError{Op: op, Condition: condition, Ridge: ridge})
}

// ValidationError reports an invalid option or parameter value.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("abess: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// Kind implements kinded.
func (e *ValidationError) Kind() Kind { return KindInvalidParameter }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ModelError is a general failure inside an operation, optionally wrapping a cause.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("abess: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("abess: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError reports NaN or Inf values.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("abess: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// Kind implements kinded.
func (e *NumericalInstabilityError) Kind() Kind { return KindNumericalInstability }

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Sentinels
//
// ===========================================================================

var (
	// ErrEmptyData is returned for matrices with no rows or columns.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is the cause of every SingularFitError.
	ErrSingularMatrix = New("singular matrix")
)
