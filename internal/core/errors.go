package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyExplanation is returned when an explanation has no entries or
	// every weight is zero
	ErrEmptyExplanation = errors.New("explanation is empty or all weights are zero")
	// ErrNonFiniteWeight is returned when an explanation weight is NaN or infinite
	ErrNonFiniteWeight = errors.New("explanation weight is not finite")
	// ErrCollaboratorUnavailable is returned when a classifier or explainer cannot be invoked
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrInvalidProbabilities is returned when a classifier returns malformed rows
	ErrInvalidProbabilities = errors.New("classifier returned invalid probabilities")
)

// Stage is a step of the per-request pipeline
type Stage string

const (
	StageReceived   Stage = "received"
	StageNormalized Stage = "normalized"
	StageFeaturized Stage = "featurized"
	StageScored     Stage = "scored"
	StageExplained  Stage = "explained"
	StageCompleted  Stage = "completed"
)

// StageError reports the stage a request failed in
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
