package user

import (
	"fmt"
	"sort"
	"time"

	"github.com/rpggio/cbsbilling/internal/calendar"
)

// Update is a dated change to a user's attributes. Nil fields are unchanged.
type Update struct {
	Date      time.Time
	PowerUser *bool
	PIName    *string
}

// User is one term of a server account, with the full history of its
// power-user flag and PI affiliation.
//
// Users are values: every change produces a new User, so a User obtained from
// a reconstruction can be shared freely.
type User struct {
	name      string
	email     string
	startDate time.Time
	endDate   *time.Time
	updates   []Update
}

// New builds a validated user. The end date, when set, must not precede the
// start date, and the updates must assign both a power-user flag and a PI name.
func New(name, email string, startDate time.Time, endDate *time.Time, updates []Update) (User, error) {
	u := User{
		name:      name,
		email:     email,
		startDate: calendar.DateOf(startDate),
		updates:   make([]Update, len(updates)),
	}
	if endDate != nil {
		end := calendar.DateOf(*endDate)
		u.endDate = &end
	}
	for i, upd := range updates {
		upd.Date = calendar.DateOf(upd.Date)
		u.updates[i] = upd
	}
	sort.SliceStable(u.updates, func(i, j int) bool {
		return u.updates[i].Date.Before(u.updates[j].Date)
	})

	if u.endDate != nil && u.endDate.Before(u.startDate) {
		return User{}, ErrDateRange.New("user %s has end date %s before start date %s",
			email, u.endDate.Format(time.DateOnly), u.startDate.Format(time.DateOnly))
	}
	if !hasUpdate(u.updates, setsPowerUser) {
		return User{}, ErrInvalidUser.New("user %s is missing required info power_user", email)
	}
	if !hasUpdate(u.updates, setsPIName) {
		return User{}, ErrInvalidUser.New("user %s is missing required info pi_name", email)
	}
	return u, nil
}

func (u User) Name() string         { return u.name }
func (u User) Email() string        { return u.email }
func (u User) StartDate() time.Time { return u.startDate }

// EndDate returns the end of the term, if one is set.
func (u User) EndDate() (time.Time, bool) {
	if u.endDate == nil {
		return time.Time{}, false
	}
	return *u.endDate, true
}

// Updates returns a copy of the user's dated updates in date order.
func (u User) Updates() []Update {
	out := make([]Update, len(u.updates))
	copy(out, u.updates)
	return out
}

// IsActive reports whether date falls within the user's term.
func (u User) IsActive(date time.Time) bool {
	date = calendar.DateOf(date)
	if date.Before(u.startDate) {
		return false
	}
	return u.endDate == nil || !date.After(*u.endDate)
}

// PowerUser reports whether the user was a power user on date.
func (u User) PowerUser(date time.Time) (bool, error) {
	upd, err := u.lookup(date, setsPowerUser, "power_user")
	if err != nil {
		return false, err
	}
	return *upd.PowerUser, nil
}

// PIName returns the user's PI on date.
func (u User) PIName(date time.Time) (string, error) {
	upd, err := u.lookup(date, setsPIName, "pi_name")
	if err != nil {
		return "", err
	}
	return *upd.PIName, nil
}

func (u User) String() string {
	end := "open"
	if u.endDate != nil {
		end = u.endDate.Format(time.DateOnly)
	}
	return fmt.Sprintf("%s <%s> [%s, %s]", u.name, u.email, u.startDate.Format(time.DateOnly), end)
}

// lookup returns the most recent update at or before date that sets the
// attribute. Same-day updates resolve to the one applied last.
func (u User) lookup(date time.Time, sets func(Update) bool, attr string) (Update, error) {
	date = calendar.DateOf(date)
	if !u.IsActive(date) {
		return Update{}, ErrInactiveUser.New("user %s is inactive on date %s", u, date.Format(time.DateOnly))
	}
	found := -1
	for i, upd := range u.updates {
		if upd.Date.After(date) {
			break
		}
		if sets(upd) {
			found = i
		}
	}
	if found < 0 {
		return Update{}, ErrInvalidUser.New("user %s has no %s on or before %s", u, attr, date.Format(time.DateOnly))
	}
	return u.updates[found], nil
}

// with returns a copy of u with a new end date and an extra update appended.
func (u User) with(endDate *time.Time, extra ...Update) (User, error) {
	updates := make([]Update, 0, len(u.updates)+len(extra))
	updates = append(updates, u.updates...)
	updates = append(updates, extra...)
	return New(u.name, u.email, u.startDate, endDate, updates)
}

func setsPowerUser(u Update) bool { return u.PowerUser != nil }
func setsPIName(u Update) bool    { return u.PIName != nil && *u.PIName != "" }

func hasUpdate(updates []Update, sets func(Update) bool) bool {
	for _, u := range updates {
		if sets(u) {
			return true
		}
	}
	return false
}
