package record

import "github.com/zeebo/errs"

// ErrOrphanedPowerUser indicates a power user whose PI matches no project.
var ErrOrphanedPowerUser = errs.Class("orphaned power user")
