package project

import (
	"fmt"
	"sort"
	"time"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/user"
)

// Reconstruct folds PI events into the projects relevant to the window
// [start, end], and returns the account events those PI events imply.
//
// Events dated after end are ignored. Projects closed before start are
// dropped. The account events are returned in the order they were applied.
func Reconstruct(requests []PIRequest, updates []PIUpdate, start, end time.Time) ([]Project, []user.Event, error) {
	start, end = calendar.DateOf(start), calendar.DateOf(end)

	events := make([]Event, 0, len(requests)+len(updates))
	for _, r := range requests {
		if !calendar.DateOf(r.Timestamp).After(end) {
			events = append(events, r)
		}
	}
	for _, u := range updates {
		if !calendar.DateOf(u.Timestamp).After(end) {
			events = append(events, u)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt().Before(events[j].OccurredAt())
	})

	var (
		projects []Project
		accounts []user.Event
		err      error
	)
	for _, e := range events {
		if projects, err = e.apply(projects); err != nil {
			return nil, nil, fmt.Errorf("applying PI event at %s: %w", e.OccurredAt().Format(time.DateTime), err)
		}
		if ae, ok := e.AccountEvent(); ok {
			accounts = append(accounts, ae)
		}
	}

	kept := make([]Project, 0, len(projects))
	for _, p := range projects {
		if p.closeDate != nil && p.closeDate.Before(start) {
			continue
		}
		kept = append(kept, p)
	}
	return kept, accounts, nil
}
