package billing

import "errors"

var (
	// ErrNoBillableProject indicates no billable project matched a PI.
	ErrNoBillableProject = errors.New("no billable project")
	// ErrInvalidInput indicates invalid input for billing operations.
	ErrInvalidInput = errors.New("invalid billing input")
)
