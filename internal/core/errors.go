package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindExtraction   ErrorKind = "extraction"
	KindAnalysis     ErrorKind = "analysis"
	KindGeneration   ErrorKind = "generation"
	KindCanceled     ErrorKind = "canceled"
	KindInternal     ErrorKind = "internal"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrExtraction   = &Error{Kind: KindExtraction}
	ErrAnalysis     = &Error{Kind: KindAnalysis}
	ErrGeneration   = &Error{Kind: KindGeneration}
	ErrCanceled     = &Error{Kind: KindCanceled}
)

// Error is a classified pipeline error.
type Error struct {
	Kind      ErrorKind
	Message   string
	Err       error
	Transient bool // Retrying may succeed
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func InvalidInput(msg string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg, Err: err}
}

func Extraction(msg string, err error) *Error {
	return &Error{Kind: KindExtraction, Message: msg, Err: err}
}

func Analysis(msg string, err error) *Error {
	return &Error{Kind: KindAnalysis, Message: msg, Err: err}
}

func Generation(msg string, err error, transient bool) *Error {
	return &Error{Kind: KindGeneration, Message: msg, Err: err, Transient: transient}
}

// Canceled reports that the caller gave up on the run.
func Canceled(err error) *Error {
	return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StageError is the Failed(stage, reason) terminal state of a pipeline run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Kind returns the classified kind of the underlying failure.
func (e *StageError) Kind() ErrorKind { return KindOf(e.Err) }

// ErrorResponse is the structured failure body of the inbound operation.
type ErrorResponse struct {
	Kind    ErrorKind `json:"kind"`
	Stage   Stage     `json:"stage,omitempty"`
	Message string    `json:"message"`
}

// NewErrorResponse flattens err into the structured failure body.
func NewErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Kind: KindOf(err), Message: err.Error()}
	var se *StageError
	if errors.As(err, &se) {
		resp.Stage = se.Stage
	}
	return resp
}

// WarningKind classifies non-fatal conditions.
type WarningKind string

const (
	WarningQuality     WarningKind = "quality"
	WarningImageFetch  WarningKind = "image_fetch"
	WarningPersistence WarningKind = "persistence"
)

// Warning is recorded on a successful result; it never aborts a run.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}
