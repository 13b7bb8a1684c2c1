package billing

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/record"
	"github.com/rpggio/cbsbilling/internal/domain/user"
)

const (
	// DefaultStoragePrice is in dollars per TB per year.
	DefaultStoragePrice = 50.0
	// DefaultFirstPowerUserPrice is in dollars per year.
	DefaultFirstPowerUserPrice = 1000.0
	// DefaultAdditionalPowerUserPrice is in dollars per year.
	DefaultAdditionalPowerUserPrice = 500.0

	DefaultPeriodLength = 3
	DefaultMinBillUsage = 2

	DefaultTimeZone = "America/Toronto"

	// quarterShare converts an annual price to one quarter's price.
	quarterShare = 0.25
)

// Policy holds the prices and cutoffs used to bill a quarter. It has no state
// beyond its configuration.
type Policy struct {
	StoragePrice             float64
	FirstPowerUserPrice      float64
	AdditionalPowerUserPrice float64
	// PeriodLength is the length of a billing period in months.
	PeriodLength int
	// MinBillUsage is the number of months of a period a project or power
	// user must be present for to be billed.
	MinBillUsage int
	// Location is the zone used for the bill issue date.
	Location *time.Location
	// Now reads the clock for the bill issue date. Nil means time.Now.
	Now func() time.Time
}

// DefaultPolicy returns the standard CBS server prices.
func DefaultPolicy() Policy {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		loc = time.UTC
	}
	return Policy{
		StoragePrice:             DefaultStoragePrice,
		FirstPowerUserPrice:      DefaultFirstPowerUserPrice,
		AdditionalPowerUserPrice: DefaultAdditionalPowerUserPrice,
		PeriodLength:             DefaultPeriodLength,
		MinBillUsage:             DefaultMinBillUsage,
		Location:                 loc,
	}
}

// PowerUserPrice is the quarterly price of one power user term.
type PowerUserPrice struct {
	User       user.User
	ActiveDays int
	Price      float64
}

// QuarterEnd returns the last day of the period starting in qs's month.
func (p Policy) QuarterEnd(qs time.Time) time.Time {
	return calendar.EndOfPeriod(qs.Year(), qs.Month(), p.PeriodLength)
}

// usageCutoff is the end of the minimum-usage window at the start of the quarter.
func (p Policy) usageCutoff(qs time.Time) time.Time {
	return calendar.EndOfPeriod(qs.Year(), qs.Month(), p.MinBillUsage)
}

// startCutoff is the last day a project may open and still be billed for storage.
func (p Policy) startCutoff(qs time.Time) time.Time {
	return calendar.EndOfPeriod(qs.Year(), qs.Month(), p.PeriodLength-p.MinBillUsage)
}

// IsBillable reports whether rec is billed in the quarter starting qs. A
// project is billable when it opened by the end of the quarter and is either
// still open or closed after the minimum-usage cutoff.
func (p Policy) IsBillable(rec record.BillableProjectRecord, qs time.Time) bool {
	if rec.StorageStart().After(p.QuarterEnd(qs)) {
		return false
	}
	closed, ok := rec.CloseDate()
	return !ok || closed.After(p.usageCutoff(qs))
}

// QuarterlyStorageAmount returns the TB billed for the quarter: the lesser of
// the storage held at the two cutoffs, or zero if the project opened too late.
func (p Policy) QuarterlyStorageAmount(rec record.BillableProjectRecord, qs time.Time) (float64, error) {
	early, late := p.startCutoff(qs), p.usageCutoff(qs)
	if rec.StorageStart().After(early) {
		return 0, nil
	}
	a, err := rec.StorageAmount(early)
	if err != nil {
		return 0, err
	}
	b, err := rec.StorageAmount(late)
	if err != nil {
		return 0, err
	}
	return min(a, b), nil
}

// QuarterlyStoragePrice returns the storage charge for the quarter.
func (p Policy) QuarterlyStoragePrice(rec record.BillableProjectRecord, qs time.Time) (float64, error) {
	amount, err := p.QuarterlyStorageAmount(rec, qs)
	if err != nil {
		return 0, err
	}
	return amount * p.StoragePrice * quarterShare, nil
}

// requiredDays is the number of days a power user must be active in the
// quarter to be billed: the length of the longer minimum-usage window.
func (p Policy) requiredDays(qs time.Time) int {
	return max(
		calendar.DaysBetween(qs, p.usageCutoff(qs)),
		calendar.DaysBetween(p.startCutoff(qs), p.QuarterEnd(qs)),
	)
}

// EnumeratePowerUserPrices prices each of rec's power users for the quarter.
// Users are taken in order of start date. The first user active long enough
// pays the first power user price, later ones the additional price, and users
// active too briefly pay nothing.
func (p Policy) EnumeratePowerUserPrices(rec record.BillableProjectRecord, qs time.Time) ([]PowerUserPrice, error) {
	end := p.QuarterEnd(qs)
	users, err := rec.EnumeratePowerUsers(qs, end)
	if err != nil {
		return nil, err
	}
	sorted := make([]user.User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDate().Before(sorted[j].StartDate())
	})

	required := p.requiredDays(qs)
	firstApplied := false
	prices := make([]PowerUserPrice, 0, len(sorted))
	for _, u := range sorted {
		days, err := activePowerDays(u, rec.PILastName(), qs, end)
		if err != nil {
			return nil, err
		}

		price := 0.0
		switch {
		case days < required:
		case !firstApplied:
			price = p.FirstPowerUserPrice * quarterShare
			firstApplied = true
		default:
			price = p.AdditionalPowerUserPrice * quarterShare
		}
		prices = append(prices, PowerUserPrice{User: u, ActiveDays: days, Price: price})
	}
	return prices, nil
}

// QuarterlyPowerUserPrice returns the power user charge for the quarter.
func (p Policy) QuarterlyPowerUserPrice(rec record.BillableProjectRecord, qs time.Time) (float64, error) {
	prices, err := p.EnumeratePowerUserPrices(rec, qs)
	if err != nil {
		return 0, err
	}
	return lo.SumBy(prices, func(pp PowerUserPrice) float64 { return pp.Price }), nil
}

// QuarterlyTotalPrice returns the full charge for the quarter.
func (p Policy) QuarterlyTotalPrice(rec record.BillableProjectRecord, qs time.Time) (float64, error) {
	storage, err := p.QuarterlyStoragePrice(rec, qs)
	if err != nil {
		return 0, err
	}
	power, err := p.QuarterlyPowerUserPrice(rec, qs)
	if err != nil {
		return 0, err
	}
	return storage + power, nil
}

func (p Policy) now() time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// activePowerDays counts the days of [start, end] on which u is active, a
// power user and affiliated with pi.
func activePowerDays(u user.User, pi string, start, end time.Time) (int, error) {
	count := 0
	for _, d := range calendar.DaysInRange(start, end) {
		if !u.IsActive(d) {
			continue
		}
		name, err := u.PIName(d)
		if err != nil {
			return 0, err
		}
		if name != pi {
			continue
		}
		power, err := u.PowerUser(d)
		if err != nil {
			return 0, err
		}
		if power {
			count++
		}
	}
	return count, nil
}
