package user

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rpggio/cbsbilling/internal/calendar"
)

// Reconstruct folds account events into the user terms relevant to the window
// [start, end].
//
// Requests and updates dated on or after end are ignored, as are updates that
// change nothing. Extra events (such as those implied by PI forms) are always
// applied. Events apply in timestamp order; events with equal timestamps keep
// their input order, with requests before updates before extras. Terms that
// end on or before start are dropped.
func Reconstruct(requests []AccountRequest, updates []AccountUpdate, start, end time.Time, extra []Event, logger *slog.Logger) ([]User, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	start, end = calendar.DateOf(start), calendar.DateOf(end)

	events := make([]Event, 0, len(requests)+len(updates)+len(extra))
	for _, r := range requests {
		if calendar.DateOf(r.Timestamp).Before(end) {
			events = append(events, r)
		}
	}
	for _, u := range updates {
		if calendar.DateOf(u.Timestamp).Before(end) && u.HasChanges() {
			events = append(events, u)
		}
	}
	events = append(events, extra...)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt().Before(events[j].OccurredAt())
	})

	set := newWorkingSet()
	for _, e := range events {
		if err := e.apply(set, logger); err != nil {
			return nil, fmt.Errorf("applying account event at %s: %w", e.OccurredAt().Format(time.DateTime), err)
		}
	}

	users := make([]User, 0, len(set.terms))
	for _, u := range set.terms {
		if u.endDate != nil && !u.endDate.After(start) {
			continue
		}
		users = append(users, u)
	}

	logger.Debug("reconstructed users",
		"events", len(events),
		"terms", len(set.terms),
		"kept", len(users))
	return users, nil
}
