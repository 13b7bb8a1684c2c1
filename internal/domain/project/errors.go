package project

import "github.com/zeebo/errs"

var (
	// ErrInvalidProject indicates a project is missing required attribute history.
	ErrInvalidProject = errs.Class("invalid project")
	// ErrDateRange indicates a project's close date precedes its open date.
	ErrDateRange = errs.Class("invalid project date range")
	// ErrInactiveProject indicates a point-in-time lookup outside the project's lifetime.
	ErrInactiveProject = errs.Class("inactive project")
	// ErrInvalidPIUpdate indicates a PI update that matches no project, or more than one.
	ErrInvalidPIUpdate = errs.Class("invalid PI update")
)
