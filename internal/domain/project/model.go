package project

import (
	"fmt"
	"sort"
	"time"

	"github.com/rpggio/cbsbilling/internal/calendar"
)

// Update is a dated change to a project. Storage is a delta in TB added to
// the project's allocation.
type Update struct {
	Date      time.Time
	SpeedCode *string
	Storage   *float64
}

// Project is one PI's storage allocation and billing speed code over time.
type Project struct {
	openDate   time.Time
	email      string
	piLastName string
	piFullName string
	closeDate  *time.Time
	updates    []Update
}

// New builds a validated project.
func New(openDate time.Time, email, piLastName, piFullName string, closeDate *time.Time, updates []Update) (Project, error) {
	p := Project{
		openDate:   calendar.DateOf(openDate),
		email:      email,
		piLastName: piLastName,
		piFullName: piFullName,
		updates:    make([]Update, len(updates)),
	}
	if closeDate != nil {
		closed := calendar.DateOf(*closeDate)
		p.closeDate = &closed
	}
	for i, upd := range updates {
		upd.Date = calendar.DateOf(upd.Date)
		p.updates[i] = upd
	}
	sort.SliceStable(p.updates, func(i, j int) bool {
		return p.updates[i].Date.Before(p.updates[j].Date)
	})

	if err := validate(p); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (p Project) OpenDate() time.Time { return p.openDate }
func (p Project) Email() string       { return p.email }
func (p Project) PILastName() string  { return p.piLastName }

// PIFullName returns the PI's full name, falling back to the last name.
func (p Project) PIFullName() string {
	if p.piFullName == "" {
		return p.piLastName
	}
	return p.piFullName
}

// CloseDate returns the date the project closed, if it has.
func (p Project) CloseDate() (time.Time, bool) {
	if p.closeDate == nil {
		return time.Time{}, false
	}
	return *p.closeDate, true
}

// Updates returns a copy of the project's dated updates in date order.
func (p Project) Updates() []Update {
	out := make([]Update, len(p.updates))
	copy(out, p.updates)
	return out
}

// IsActive reports whether the project is open on date.
func (p Project) IsActive(date time.Time) bool {
	date = calendar.DateOf(date)
	if date.Before(p.openDate) {
		return false
	}
	return p.closeDate == nil || !date.After(*p.closeDate)
}

// Storage returns the project's total storage in TB on date.
func (p Project) Storage(date time.Time) (float64, error) {
	date = calendar.DateOf(date)
	if !p.IsActive(date) {
		return 0, ErrInactiveProject.New("project %s is inactive on date %s", p, date.Format(time.DateOnly))
	}
	total := 0.0
	for _, upd := range p.updates {
		if upd.Date.After(date) {
			break
		}
		if upd.Storage != nil {
			total += *upd.Storage
		}
	}
	return total, nil
}

// SpeedCode returns the speed code billed on date.
func (p Project) SpeedCode(date time.Time) (string, error) {
	date = calendar.DateOf(date)
	if !p.IsActive(date) {
		return "", ErrInactiveProject.New("project %s is inactive on date %s", p, date.Format(time.DateOnly))
	}
	code := ""
	for _, upd := range p.updates {
		if upd.Date.After(date) {
			break
		}
		if setsSpeedCode(upd) {
			code = *upd.SpeedCode
		}
	}
	if code == "" {
		return "", ErrInvalidProject.New("project %s has no speed code on or before %s", p, date.Format(time.DateOnly))
	}
	return code, nil
}

func (p Project) String() string {
	return fmt.Sprintf("%s (opened %s)", p.piLastName, p.openDate.Format(time.DateOnly))
}

// with returns a copy of p with a new close date and an extra update appended.
func (p Project) with(closeDate *time.Time, extra Update) (Project, error) {
	updates := make([]Update, 0, len(p.updates)+1)
	updates = append(updates, p.updates...)
	updates = append(updates, extra)
	return New(p.openDate, p.email, p.piLastName, p.piFullName, closeDate, updates)
}
