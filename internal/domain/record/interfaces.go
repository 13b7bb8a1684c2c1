package record

import (
	"time"

	"github.com/rpggio/cbsbilling/internal/domain/user"
)

// BillableProjectRecord is everything billing needs to know about one project.
type BillableProjectRecord interface {
	PILastName() string
	PIFullName() string
	// StorageStart is the date the project was opened.
	StorageStart() time.Time
	CloseDate() (time.Time, bool)
	StorageAmount(date time.Time) (float64, error)
	SpeedCode(date time.Time) (string, error)
	// EnumerateAllUsers lists users affiliated with the PI on some day of [start, end].
	EnumerateAllUsers(start, end time.Time) ([]user.User, error)
	// EnumeratePowerUsers lists users who were power users affiliated with
	// the PI on some day of [start, end]. It is empty for all but the PI's
	// first project.
	EnumeratePowerUsers(start, end time.Time) ([]user.User, error)
}
