package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates segmentation produced nothing to read.
	ErrEmptyInput = errors.New("no text content found to speak")

	// ErrInvalidTransition indicates an operation is not valid in the
	// session's current status.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrForcedStop indicates a worker had to be hard-killed because it did
	// not stop within the grace period.
	ErrForcedStop = errors.New("speech stopped forcefully")

	// ErrNoSession is returned by chain operations that need a session.
	ErrNoSession = errors.New("no playback session")

	// ErrChainClosed is returned after the chain has been closed.
	ErrChainClosed = errors.New("chain is closed")

	// ErrNoEngineConfigured indicates no synthesis engine has been selected.
	ErrNoEngineConfigured = errors.New("no TTS engine configured - specify --engine gtts or --engine espeak")

	// ErrInvalidEngine indicates an unknown engine was specified.
	ErrInvalidEngine = errors.New("invalid TTS engine specified")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// TransitionError describes a rejected state transition.
type TransitionError struct {
	Op   string
	From Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s session", e.Op, e.From)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// SynthesisError reports a failed speech call for a single segment.
type SynthesisError struct {
	Index    int
	Language string
	Err      error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech error at segment %d (%s): %v", e.Index+1, e.Language, e.Err)
}

// Unwrap returns the underlying engine error.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// FetchError reports an upstream content fetch or parse failure.
type FetchError struct {
	Identifier string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("error fetching %s: %v", e.Identifier, e.Err)
}

// Unwrap returns the underlying fetch error.
func (e *FetchError) Unwrap() error {
	return e.Err
}
