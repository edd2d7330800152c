package diagnosis

import "errors"

var (
	// ErrNotFound is returned when a request or related record is unknown.
	ErrNotFound = errors.New("diagnosis: not found")
	// ErrEvaluatorNotFound is returned when an evaluator reference does not
	// resolve to an approved evaluator account.
	ErrEvaluatorNotFound = errors.New("diagnosis: evaluator not found")
	// ErrValidation is returned when required input is missing or malformed.
	ErrValidation = errors.New("diagnosis: invalid input")
	// ErrPrecondition is returned when an operation's preconditions are not
	// met; the request state is left unchanged.
	ErrPrecondition = errors.New("diagnosis: precondition failed")
	// ErrInvalidTransition is returned when a lifecycle transition would
	// skip or reverse a state.
	ErrInvalidTransition = errors.New("diagnosis: invalid status transition")
	// ErrDependency is returned when an external collaborator (mail,
	// translation) fails.
	ErrDependency = errors.New("diagnosis: dependency failure")
)
