package project

import (
	"strings"
	"time"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/user"
)

// Event is a dated change to the set of projects. The only implementations
// are PIRequest and PIUpdate.
type Event interface {
	OccurredAt() time.Time
	apply(projects []Project) ([]Project, error)
	// AccountEvent is the change to the PI's own server account implied by
	// the event, if any.
	AccountEvent() (user.Event, bool)
}

// PIRequest opens a new project. It also requests a server account for the PI.
type PIRequest struct {
	Timestamp time.Time
	Email     string
	Name      string
	FirstName string
	SpeedCode string
	PowerUser bool
	Storage   float64
}

func (r PIRequest) OccurredAt() time.Time { return r.Timestamp }

// CreateProject builds the project described by the request.
func (r PIRequest) CreateProject() (Project, error) {
	date := calendar.DateOf(r.Timestamp)
	code, storage := r.SpeedCode, r.Storage
	full := strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + r.Name)
	return New(date, r.Email, r.Name, full, nil, []Update{{Date: date, SpeedCode: &code, Storage: &storage}})
}

func (r PIRequest) AccountEvent() (user.Event, bool) {
	return user.AccountRequest{
		Timestamp: r.Timestamp,
		Name:      r.Name,
		Email:     r.Email,
		PIName:    r.Name,
		PowerUser: r.PowerUser,
	}, true
}

func (r PIRequest) apply(projects []Project) ([]Project, error) {
	p, err := r.CreateProject()
	if err != nil {
		return nil, err
	}
	return append(projects, p), nil
}

// PIUpdate changes a PI's project. Nil fields are unchanged.
type PIUpdate struct {
	Timestamp     time.Time
	Email         string
	Name          string
	SpeedCode     *string
	Storage       *float64
	AccountClosed bool
}

func (u PIUpdate) OccurredAt() time.Time { return u.Timestamp }

// UpdateProject applies the update to p.
func (u PIUpdate) UpdateProject(p Project) (Project, error) {
	date := calendar.DateOf(u.Timestamp)
	closeDate := p.closeDate
	if u.AccountClosed {
		closeDate = &date
	}
	return p.with(closeDate, Update{Date: date, SpeedCode: u.SpeedCode, Storage: u.Storage})
}

// Target picks the project the update applies to: among projects with a
// matching PI last name, one active on the update date is preferred, then the
// earliest opened. Two equally good candidates make the update ambiguous.
func (u PIUpdate) Target(projects []Project) (int, error) {
	date := calendar.DateOf(u.Timestamp)
	best, ambiguous := -1, false
	for i, p := range projects {
		if p.piLastName != u.Name {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		switch c := compareCandidates(p, projects[best], date); {
		case c < 0:
			best, ambiguous = i, false
		case c == 0:
			ambiguous = true
		}
	}

	if best < 0 {
		return 0, ErrInvalidPIUpdate.New("no project with PI %q for update on %s", u.Name, date.Format(time.DateOnly))
	}
	if ambiguous {
		return 0, ErrInvalidPIUpdate.New("update on %s matches more than one project with PI %q",
			date.Format(time.DateOnly), u.Name)
	}
	return best, nil
}

func (u PIUpdate) AccountEvent() (user.Event, bool) {
	if !u.AccountClosed {
		return nil, false
	}
	end := calendar.DateOf(u.Timestamp)
	return user.AccountUpdate{
		Timestamp: u.Timestamp,
		Name:      u.Name,
		Email:     u.Email,
		EndDate:   &end,
	}, true
}

func (u PIUpdate) apply(projects []Project) ([]Project, error) {
	i, err := u.Target(projects)
	if err != nil {
		return nil, err
	}
	p, err := u.UpdateProject(projects[i])
	if err != nil {
		return nil, err
	}
	projects[i] = p
	return projects, nil
}

// compareCandidates orders a before b when a is the better update target.
func compareCandidates(a, b Project, date time.Time) int {
	aActive, bActive := a.IsActive(date), b.IsActive(date)
	switch {
	case aActive && !bActive:
		return -1
	case !aActive && bActive:
		return 1
	}
	return a.openDate.Compare(b.openDate)
}
