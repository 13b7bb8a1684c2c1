package billing_test

import (
	"testing"
	"time"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/billing"
	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/record"
	"github.com/rpggio/cbsbilling/internal/domain/user"
	"github.com/stretchr/testify/require"
)

var quarterStart = calendar.Date(2020, time.November, 1)

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time { return calendar.Date(y, m, d) }

func newProject(t *testing.T, open time.Time, storage float64, extra ...project.PIUpdate) project.Project {
	t.Helper()
	p, err := project.PIRequest{Timestamp: open, Email: "kiwi@x.ca", Name: "kiwi", FirstName: "kim", SpeedCode: "aaaa", Storage: storage}.CreateProject()
	require.NoError(t, err)
	for _, u := range extra {
		u.Name = "kiwi"
		p, err = u.UpdateProject(p)
		require.NoError(t, err)
	}
	return p
}

func powerUser(t *testing.T, name string, start time.Time, end *time.Time) user.User {
	t.Helper()
	u, err := user.AccountRequest{Timestamp: start, Name: name, Email: name + "@x.ca", PIName: "kiwi", PowerUser: true, EndDate: end}.CreateUser()
	require.NoError(t, err)
	return u
}

func TestSimpleQuarter(t *testing.T) {
	policy := billing.DefaultPolicy()
	rec := record.NewProjectRecord(newProject(t, day(2019, time.December, 10), 20), nil, true)

	require.True(t, policy.IsBillable(rec, quarterStart))

	storage, err := policy.QuarterlyStoragePrice(rec, quarterStart)
	require.NoError(t, err)
	require.InDelta(t, 250.0, storage, 1e-9)

	total, err := policy.QuarterlyTotalPrice(rec, quarterStart)
	require.NoError(t, err)
	require.InDelta(t, 250.0, total, 1e-9)
}

func TestStorageProration(t *testing.T) {
	policy := billing.DefaultPolicy()
	for _, tb := range []float64{0, 0.5, 1, 7, 20, 123.25} {
		rec := record.NewProjectRecord(newProject(t, day(2019, time.December, 10), tb), nil, true)
		price, err := policy.QuarterlyStoragePrice(rec, quarterStart)
		require.NoError(t, err)
		require.InDelta(t, tb*50*0.25, price, 1e-9)
	}
}

func TestMidQuarterStorageChangeBillsMinimum(t *testing.T) {
	policy := billing.DefaultPolicy()
	p := newProject(t, day(2019, time.December, 10), 10,
		project.PIUpdate{Timestamp: day(2020, time.December, 15), Storage: ptr(5.0)})
	rec := record.NewProjectRecord(p, nil, true)

	amount, err := policy.QuarterlyStorageAmount(rec, quarterStart)
	require.NoError(t, err)
	require.InDelta(t, 10.0, amount, 1e-9)

	price, err := policy.QuarterlyStoragePrice(rec, quarterStart)
	require.NoError(t, err)
	require.InDelta(t, 125.0, price, 1e-9)
}

func TestStorageNotBilledWhenOpenedLate(t *testing.T) {
	policy := billing.DefaultPolicy()
	rec := record.NewProjectRecord(newProject(t, day(2020, time.December, 1), 10), nil, true)

	require.True(t, policy.IsBillable(rec, quarterStart))
	amount, err := policy.QuarterlyStorageAmount(rec, quarterStart)
	require.NoError(t, err)
	require.Zero(t, amount)

	notYet := record.NewProjectRecord(newProject(t, day(2021, time.February, 1), 10), nil, true)
	require.False(t, policy.IsBillable(notYet, quarterStart))
}

func TestClosureCutoffBoundary(t *testing.T) {
	policy := billing.DefaultPolicy()

	onCutoff := newProject(t, day(2019, time.December, 10), 10,
		project.PIUpdate{Timestamp: day(2020, time.December, 31), AccountClosed: true})
	require.False(t, policy.IsBillable(record.NewProjectRecord(onCutoff, nil, true), quarterStart))

	dayAfter := newProject(t, day(2019, time.December, 10), 10,
		project.PIUpdate{Timestamp: day(2021, time.January, 1), AccountClosed: true})
	require.True(t, policy.IsBillable(record.NewProjectRecord(dayAfter, nil, true), quarterStart))
}

func TestPowerUserOrderingByStartDate(t *testing.T) {
	policy := billing.DefaultPolicy()
	users := []user.User{
		// Alphabetically first, but starts after the month-1 cutoff.
		powerUser(t, "apple", day(2020, time.December, 2), nil),
		powerUser(t, "zucchini", day(2020, time.October, 1), nil),
	}
	rec := record.NewProjectRecord(newProject(t, day(2019, time.December, 10), 0), users, true)

	prices, err := policy.EnumeratePowerUserPrices(rec, quarterStart)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	require.Equal(t, "zucchini", prices[0].User.Name())
	require.InDelta(t, 250.0, prices[0].Price, 1e-9)
	require.Equal(t, "apple", prices[1].User.Name())
	require.Zero(t, prices[1].Price)
}

func TestPowerUserRates(t *testing.T) {
	policy := billing.DefaultPolicy()
	users := []user.User{
		powerUser(t, "cherry", day(2020, time.September, 1), nil),
		powerUser(t, "banana", day(2020, time.August, 1), nil),
		powerUser(t, "apple", day(2020, time.October, 1), nil),
		// Ends on the month-2 cutoff: too short.
		powerUser(t, "date", day(2020, time.July, 1), ptr(day(2020, time.December, 31))),
	}
	rec := record.NewProjectRecord(newProject(t, day(2019, time.December, 10), 0), users, true)

	prices, err := policy.EnumeratePowerUserPrices(rec, quarterStart)
	require.NoError(t, err)

	got := map[string]float64{}
	first := 0
	for _, pp := range prices {
		got[pp.User.Name()] = pp.Price
		if pp.Price == 250 {
			first++
		}
	}
	require.Equal(t, 1, first)
	require.Equal(t, map[string]float64{"date": 0, "banana": 250, "cherry": 125, "apple": 125}, got)

	total, err := policy.QuarterlyPowerUserPrice(rec, quarterStart)
	require.NoError(t, err)
	require.InDelta(t, 500.0, total, 1e-9)
}

func TestPowerUserMinimumUsageBoundary(t *testing.T) {
	policy := billing.DefaultPolicy()
	tests := []struct {
		name  string
		start time.Time
		end   *time.Time
		days  int
		price float64
	}{
		{"start edge 61 days", day(2020, time.December, 2), nil, 61, 0},
		{"start edge 62 days", day(2020, time.December, 1), nil, 62, 250},
		{"start edge 63 days", day(2020, time.November, 30), nil, 63, 250},
		{"end edge 61 days", day(2020, time.October, 1), ptr(day(2020, time.December, 31)), 61, 0},
		{"end edge 62 days", day(2020, time.October, 1), ptr(day(2021, time.January, 1)), 62, 250},
		{"end edge 63 days", day(2020, time.October, 1), ptr(day(2021, time.January, 2)), 63, 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := []user.User{powerUser(t, "apple", tt.start, tt.end)}
			rec := record.NewProjectRecord(newProject(t, day(2019, time.December, 10), 0), users, true)

			prices, err := policy.EnumeratePowerUserPrices(rec, quarterStart)
			require.NoError(t, err)
			require.Len(t, prices, 1)
			require.Equal(t, tt.days, prices[0].ActiveDays)
			require.InDelta(t, tt.price, prices[0].Price, 1e-9)
		})
	}
}

func TestPowerUserBilledFromMonth1Cutoff(t *testing.T) {
	policy := billing.DefaultPolicy()
	users := []user.User{
		powerUser(t, "apple", day(2020, time.November, 1), ptr(day(2021, time.January, 1))),
		powerUser(t, "berry", day(2020, time.December, 1), nil),
	}
	rec := record.NewProjectRecord(newProject(t, day(2019, time.December, 10), 0), users, true)

	prices, err := policy.EnumeratePowerUserPrices(rec, quarterStart)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	require.Equal(t, "apple", prices[0].User.Name())
	require.InDelta(t, 250.0, prices[0].Price, 1e-9)
	require.Equal(t, "berry", prices[1].User.Name())
	require.InDelta(t, 125.0, prices[1].Price, 1e-9)
}

func TestPowerUsersOnlyOnRecordWithPowerUsers(t *testing.T) {
	policy := billing.DefaultPolicy()
	users := []user.User{powerUser(t, "apple", day(2020, time.October, 1), nil)}
	rec := record.NewProjectRecord(newProject(t, day(2019, time.December, 10), 0), users, false)

	price, err := policy.QuarterlyPowerUserPrice(rec, quarterStart)
	require.NoError(t, err)
	require.Zero(t, price)
}

func TestInvoicePayload(t *testing.T) {
	policy := billing.DefaultPolicy()
	policy.Now = func() time.Time { return time.Date(2021, time.February, 3, 12, 0, 0, 0, time.UTC) }

	users := []user.User{powerUser(t, "apple", day(2020, time.October, 1), nil)}
	p := newProject(t, day(2019, time.December, 10), 20,
		project.PIUpdate{Timestamp: day(2021, time.January, 10), SpeedCode: ptr("bbbb")})
	rec := record.NewProjectRecord(p, users, true)

	inv, err := policy.Invoice(rec, quarterStart)
	require.NoError(t, err)

	require.Equal(t, "kim kiwi", inv.PIName)
	require.Equal(t, "kiwi", inv.PILastName)
	require.Equal(t, billing.InvoiceDates{Start: "Nov 01, 2020", End: "Jan 31, 2021", Bill: "Feb 03, 2021"}, inv.Dates)
	require.Equal(t, billing.StorageLine{Timestamp: "Dec 10, 2019", Amount: 20, Price: "50.00", Subtotal: "250.00"}, inv.Storage)
	require.Equal(t, []billing.PowerUserLine{{
		Name:      "apple",
		Email:     "apple@x.ca",
		StartDate: "Oct 01, 2020",
		EndDate:   billing.NotApplicable,
		Price:     "1000.00",
		Subtotal:  "250.00",
	}}, inv.PowerUsers)
	require.Equal(t, "250.00", inv.PowerUsersSubtotal)
	require.Equal(t, "500.00", inv.Total)
	require.Equal(t, "bbbb", inv.SpeedCode)
}

func TestMoney(t *testing.T) {
	require.Equal(t, "0.00", billing.Money(0))
	require.Equal(t, "62.50", billing.Money(62.5))
	require.Equal(t, "1000.00", billing.Money(1000))
}
