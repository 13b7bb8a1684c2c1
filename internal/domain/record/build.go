package record

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/user"
)

// BuildRecords wraps each project in a record, ordered by open date. Only the
// first project of each PI carries that PI's power users.
func BuildRecords(projects []project.Project, users []user.User) []*ProjectRecord {
	sorted := make([]project.Project, len(projects))
	copy(sorted, projects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenDate().Before(sorted[j].OpenDate())
	})

	seen := make(map[string]bool, len(sorted))
	records := make([]*ProjectRecord, 0, len(sorted))
	for _, p := range sorted {
		pi := p.PILastName()
		records = append(records, NewProjectRecord(p, users, !seen[pi]))
		seen[pi] = true
	}
	return records
}

// CheckAllPowerUsers fails if any user is a power user, on some day of
// [start, end], under a PI that has no project.
func CheckAllPowerUsers(users []user.User, projects []project.Project, start, end time.Time) error {
	pis := lo.SliceToMap(projects, func(p project.Project) (string, struct{}) {
		return p.PILastName(), struct{}{}
	})

	for _, u := range users {
		from := calendar.Max(calendar.DateOf(start), u.StartDate())
		to := calendar.DateOf(end)
		if last, ok := u.EndDate(); ok {
			to = calendar.Min(to, last)
		}

		for _, d := range calendar.DaysInRange(from, to) {
			power, err := u.PowerUser(d)
			if err != nil {
				return err
			}
			if !power {
				continue
			}
			pi, err := u.PIName(d)
			if err != nil {
				return err
			}
			if _, ok := pis[pi]; !ok {
				return ErrOrphanedPowerUser.New("power user %s has PI %q on %s, which matches no project",
					u, pi, d.Format(time.DateOnly))
			}
		}
	}
	return nil
}
