package record

import (
	"time"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/user"
)

// ProjectRecord joins a project with the users known at reconstruction time.
type ProjectRecord struct {
	project       project.Project
	users         []user.User
	hasPowerUsers bool
}

var _ BillableProjectRecord = (*ProjectRecord)(nil)

// NewProjectRecord builds a record. Power users are only reported when
// hasPowerUsers is set.
func NewProjectRecord(p project.Project, users []user.User, hasPowerUsers bool) *ProjectRecord {
	return &ProjectRecord{project: p, users: users, hasPowerUsers: hasPowerUsers}
}

func (r *ProjectRecord) Project() project.Project { return r.project }
func (r *ProjectRecord) HasPowerUsers() bool      { return r.hasPowerUsers }

func (r *ProjectRecord) PILastName() string           { return r.project.PILastName() }
func (r *ProjectRecord) PIFullName() string           { return r.project.PIFullName() }
func (r *ProjectRecord) StorageStart() time.Time      { return r.project.OpenDate() }
func (r *ProjectRecord) CloseDate() (time.Time, bool) { return r.project.CloseDate() }

func (r *ProjectRecord) StorageAmount(date time.Time) (float64, error) {
	return r.project.Storage(date)
}

func (r *ProjectRecord) SpeedCode(date time.Time) (string, error) {
	return r.project.SpeedCode(date)
}

func (r *ProjectRecord) EnumerateAllUsers(start, end time.Time) ([]user.User, error) {
	return r.matchUsers(start, end, false)
}

func (r *ProjectRecord) EnumeratePowerUsers(start, end time.Time) ([]user.User, error) {
	if !r.hasPowerUsers {
		return nil, nil
	}
	return r.matchUsers(start, end, true)
}

func (r *ProjectRecord) matchUsers(start, end time.Time, powerOnly bool) ([]user.User, error) {
	var out []user.User
	for _, u := range r.users {
		ok, err := r.affiliated(u, start, end, powerOnly)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// affiliated reports whether u belongs to this record's PI on some day of
// [start, end], and is a power user that day when powerOnly is set.
func (r *ProjectRecord) affiliated(u user.User, start, end time.Time, powerOnly bool) (bool, error) {
	from := calendar.Max(calendar.DateOf(start), u.StartDate())
	to := calendar.DateOf(end)
	if last, ok := u.EndDate(); ok {
		to = calendar.Min(to, last)
	}

	for _, d := range calendar.DaysInRange(from, to) {
		pi, err := u.PIName(d)
		if err != nil {
			return false, err
		}
		if pi != r.project.PILastName() {
			continue
		}
		if !powerOnly {
			return true, nil
		}
		power, err := u.PowerUser(d)
		if err != nil {
			return false, err
		}
		if power {
			return true, nil
		}
	}
	return false, nil
}
