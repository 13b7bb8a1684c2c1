package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/cbsbilling/internal/domain/billing"
	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/record"
	"github.com/rpggio/cbsbilling/internal/domain/user"
	"github.com/rpggio/cbsbilling/internal/repository"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	cause        error
}

func (e *APIError) Error() string {
	if e.RecoveryHint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
}

func (e *APIError) Unwrap() error { return e.cause }

// MapError maps domain errors to MCP error codes. Unrecognized errors map to
// INTERNAL.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	apiErr := func(code, hint string) *APIError {
		return &APIError{Code: code, Message: err.Error(), RecoveryHint: hint, cause: err}
	}
	switch {
	case errors.Is(err, errInvalidArgument), errors.Is(err, billing.ErrInvalidInput):
		return apiErr("INVALID_ARGUMENT", "Dates use YYYY-MM-DD")
	case errors.Is(err, billing.ErrNoBillableProject):
		return apiErr("NO_BILLABLE_PROJECT", "Check the PI last name with quarter_summary")
	case user.ErrInvalidUser.Has(err), project.ErrInvalidProject.Has(err):
		return apiErr("INVALID_ENTITY", "Fix the form row that created it")
	case user.ErrDateRange.Has(err), project.ErrDateRange.Has(err):
		return apiErr("INVALID_DATE_RANGE", "An end date precedes its start date")
	case user.ErrInapplicableUpdate.Has(err):
		return apiErr("INAPPLICABLE_UPDATE", "An update names an unknown user or predates their account")
	case user.ErrAlreadyActive.Has(err):
		return apiErr("ALREADY_ACTIVE", "")
	case user.ErrInactiveUser.Has(err), project.ErrInactiveProject.Has(err):
		return apiErr("INACTIVE_DATE", "")
	case record.ErrOrphanedPowerUser.Has(err):
		return apiErr("ORPHANED_POWER_USER", "A power user names a PI with no project")
	case project.ErrInvalidPIUpdate.Has(err):
		return apiErr("UNRESOLVABLE_PI_UPDATE", "A PI update matches no project, or more than one")
	case errors.Is(err, repository.ErrMissingColumn), errors.Is(err, repository.ErrInvalidValue):
		return apiErr("INVALID_FORM", "Fix the form export")
	case errors.Is(err, repository.ErrInvalidInput):
		return apiErr("SOURCE_UNAVAILABLE", "Run import or configure the form paths")
	default:
		return apiErr("INTERNAL", "")
	}
}
