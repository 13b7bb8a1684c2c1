package user

import "github.com/zeebo/errs"

var (
	// ErrInvalidUser indicates a user is missing required attribute history.
	ErrInvalidUser = errs.Class("invalid user")
	// ErrDateRange indicates a user's end date precedes its start date.
	ErrDateRange = errs.Class("invalid user date range")
	// ErrInactiveUser indicates a point-in-time lookup outside the user's term.
	ErrInactiveUser = errs.Class("inactive user")
	// ErrInapplicableUpdate indicates an update with no user to apply to.
	ErrInapplicableUpdate = errs.Class("inapplicable user update")
	// ErrAlreadyActive indicates an attempt to reinstate a user whose term has not ended.
	ErrAlreadyActive = errs.Class("user already active")
)
