package models

import (
	"errors"
	"fmt"
)

// Domain errors. Every failure in this service is either rejected back
// to the caller with one of these or retried verbatim; nothing is
// recovered by defaulting a value.
var (
	// ErrRoundClosed rejects writes after the round completed
	ErrRoundClosed = errors.New("round is closed")

	// ErrRoundNotFound means no round exists for the given id
	ErrRoundNotFound = errors.New("round not found")

	// ErrUnknownDevice means the device is not on the round's roster
	ErrUnknownDevice = errors.New("device not registered to round")

	// ErrUnknownParticipant means the participant does not belong to the round
	ErrUnknownParticipant = errors.New("participant not registered to round")

	// ErrInvalidUnit means the unit is outside the round's hole sequence
	ErrInvalidUnit = errors.New("unit outside round sequence")

	// ErrInvalidConfiguration means the start/total sequence inputs are bad
	ErrInvalidConfiguration = errors.New("invalid sequence configuration")

	// ErrInvalidScore means the round's score rule rejected the value
	ErrInvalidScore = errors.New("score rejected by round rule")

	// ErrEquipmentUnavailable means requested equipment is still leased
	// to another round
	ErrEquipmentUnavailable = errors.New("equipment already assigned")
)

// SagaStepError marks a transient failure inside the completion saga.
// The saga is retried from the top; steps are idempotent so a re-run
// never double-applies.
type SagaStepError struct {
	Step string
	Err  error
}

func (e *SagaStepError) Error() string {
	return fmt.Sprintf("saga step %s failed: %v", e.Step, e.Err)
}

func (e *SagaStepError) Unwrap() error {
	return e.Err
}
