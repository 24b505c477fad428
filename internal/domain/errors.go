package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals a malformed or incomplete request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotReady signals a collaborator that has not finished initialization.
	ErrNotReady = errors.New("not ready")

	// ErrExtraction signals that document or image text could not be obtained.
	ErrExtraction = errors.New("extraction failed")
	// ErrUnsupportedFormat signals a file format the extractor cannot read.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrExtraction)
	// ErrSizeExceeded signals a file above the configured size limit.
	ErrSizeExceeded = fmt.Errorf("%w: size limit exceeded", ErrExtraction)

	// ErrGeneration signals a generative model failure or an empty model response.
	ErrGeneration = errors.New("generation failed")
	// ErrUngroundedCitation signals an answer citing an article missing from its context.
	ErrUngroundedCitation = fmt.Errorf("%w: answer cites article outside context", ErrGeneration)

	// ErrEmbedding signals an embedding provider failure.
	ErrEmbedding = errors.New("embedding provider error")
	// ErrStore signals a similarity store failure.
	ErrStore = errors.New("similarity store error")
	// ErrInsufficientBalance signals that the caller cannot pay for the request.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTimeout signals that the request deadline expired before completion.
	ErrTimeout = errors.New("request timeout")
)

// StageError reports the orchestration stage where a request failed.
type StageError struct {
	State string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the failed stage name.
func NewStageError(state string, err error) error {
	return &StageError{State: state, Err: err}
}

// FailedStage returns the stage recorded in err, or "" when err carries none.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.State
	}
	return ""
}
