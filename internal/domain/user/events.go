package user

import (
	"log/slog"
	"time"

	"github.com/rpggio/cbsbilling/internal/calendar"
)

// Event is a dated change to the set of users. The only implementations are
// AccountRequest and AccountUpdate.
type Event interface {
	OccurredAt() time.Time
	apply(set *workingSet, logger *slog.Logger) error
}

// AccountRequest asks for a new account, or renews the latest term of an
// existing one.
type AccountRequest struct {
	Timestamp time.Time
	Name      string
	Email     string
	PIName    string
	PowerUser bool
	EndDate   *time.Time
}

func (r AccountRequest) OccurredAt() time.Time { return r.Timestamp }

// CreateUser builds the user described by the request.
func (r AccountRequest) CreateUser() (User, error) {
	date := calendar.DateOf(r.Timestamp)
	return New(r.Name, r.Email, date, r.EndDate, []Update{r.update(date)})
}

// UpdateUser applies the request's attributes to an existing user. The
// request's end date replaces the user's.
func (r AccountRequest) UpdateUser(u User) (User, error) {
	return u.with(r.EndDate, r.update(calendar.DateOf(r.Timestamp)))
}

func (r AccountRequest) update(date time.Time) Update {
	power, pi := r.PowerUser, r.PIName
	return Update{Date: date, PowerUser: &power, PIName: &pi}
}

func (r AccountRequest) apply(set *workingSet, _ *slog.Logger) error {
	if i, ok := set.current(r.Email); ok {
		u, err := r.UpdateUser(set.terms[i])
		if err != nil {
			return err
		}
		set.replace(i, u)
		return nil
	}

	u, err := r.CreateUser()
	if err != nil {
		return err
	}
	set.add(u)
	return nil
}

// AccountUpdate changes an existing account. Nil fields are unchanged.
type AccountUpdate struct {
	Timestamp time.Time
	Name      string
	Email     string
	PIName    *string
	PowerUser *bool
	EndDate   *time.Time
}

func (a AccountUpdate) OccurredAt() time.Time { return a.Timestamp }

// HasChanges reports whether the update changes anything.
func (a AccountUpdate) HasChanges() bool {
	return a.PowerUser != nil || (a.PIName != nil && *a.PIName != "") || a.EndDate != nil
}

// UpdateUser applies the update to a user whose term is still running.
func (a AccountUpdate) UpdateUser(u User) (User, error) {
	endDate := u.endDate
	if a.EndDate != nil {
		endDate = a.EndDate
	}

	var extra []Update
	upd := Update{Date: calendar.DateOf(a.Timestamp), PowerUser: a.PowerUser}
	if a.PIName != nil && *a.PIName != "" {
		upd.PIName = a.PIName
	}
	if upd.PowerUser != nil || upd.PIName != nil {
		extra = append(extra, upd)
	}
	return u.with(endDate, extra...)
}

// Reinstate starts a new term for a user whose term has ended. Attributes the
// update leaves unset are carried over from the last day of the old term.
func (a AccountUpdate) Reinstate(u User) (User, error) {
	date := calendar.DateOf(a.Timestamp)
	if u.IsActive(date) {
		return User{}, ErrAlreadyActive.New("user %s is already active on %s", u, date.Format(time.DateOnly))
	}
	if date.Before(u.startDate) {
		return User{}, ErrInapplicableUpdate.New("update on %s predates user %s", date.Format(time.DateOnly), u)
	}

	// The user is inactive after its start, so the term has an end.
	lastDay := *u.endDate

	power := false
	if a.PowerUser != nil {
		power = *a.PowerUser
	} else {
		var err error
		if power, err = u.PowerUser(lastDay); err != nil {
			return User{}, err
		}
	}

	pi := ""
	if a.PIName != nil && *a.PIName != "" {
		pi = *a.PIName
	} else {
		var err error
		if pi, err = u.PIName(lastDay); err != nil {
			return User{}, err
		}
	}

	return New(u.name, u.email, date, a.EndDate, []Update{{Date: date, PowerUser: &power, PIName: &pi}})
}

func (a AccountUpdate) apply(set *workingSet, logger *slog.Logger) error {
	i, ok := set.current(a.Email)
	if !ok {
		return ErrInapplicableUpdate.New("no user with email %s for update on %s",
			a.Email, calendar.DateOf(a.Timestamp).Format(time.DateOnly))
	}

	current := set.terms[i]
	if current.IsActive(a.Timestamp) {
		u, err := a.UpdateUser(current)
		if err != nil {
			return err
		}
		set.replace(i, u)
		return nil
	}

	u, err := a.Reinstate(current)
	if err != nil {
		return err
	}
	if a.EndDate == nil {
		logger.Warn("reinstated user without an end date",
			"email", a.Email,
			"date", calendar.DateOf(a.Timestamp).Format(time.DateOnly))
	}
	set.add(u)
	return nil
}

// workingSet holds every user term seen so far, in the order they were created.
type workingSet struct {
	terms   []User
	byEmail map[string][]int
}

func newWorkingSet() *workingSet {
	return &workingSet{byEmail: make(map[string][]int)}
}

// current returns the index of the term with the latest start date for email.
func (s *workingSet) current(email string) (int, bool) {
	idx := s.byEmail[email]
	if len(idx) == 0 {
		return 0, false
	}
	best := idx[0]
	for _, i := range idx[1:] {
		if !s.terms[i].startDate.Before(s.terms[best].startDate) {
			best = i
		}
	}
	return best, true
}

func (s *workingSet) add(u User) {
	s.byEmail[u.email] = append(s.byEmail[u.email], len(s.terms))
	s.terms = append(s.terms, u)
}

func (s *workingSet) replace(i int, u User) {
	s.terms[i] = u
}
