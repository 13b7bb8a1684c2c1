package billing

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gocarina/gocsv"
	"github.com/samber/lo"

	"github.com/rpggio/cbsbilling/internal/domain/record"
)

// SummaryRow is one line of the quarterly summary spreadsheet.
type SummaryRow struct {
	PI              string
	PILastName      string
	Storage         float64
	StoragePrice    float64
	PowerUsers      int
	PowerUsersPrice float64
	TotalPrice      float64
	SpeedCode       string
}

// PowerUserEntry is one line of the power user count report.
type PowerUserEntry struct {
	Name       string `csv:"name"`
	Email      string `csv:"email"`
	PILastName string `csv:"-"`
}

// summaryLine is a SummaryRow as written to the spreadsheet.
type summaryLine struct {
	PI              string  `csv:"pi"`
	Storage         float64 `csv:"storage"`
	StoragePrice    string  `csv:"storage_price"`
	PowerUsers      int     `csv:"power_users"`
	PowerUsersPrice string  `csv:"power_users_price"`
	TotalPrice      string  `csv:"total_price"`
	SpeedCode       string  `csv:"speed_code"`
}

// SummaryFileName names the summary spreadsheet for the quarter starting qs.
func SummaryFileName(qs time.Time) string {
	return fmt.Sprintf("summary_%s.csv", qs.Format(time.DateOnly))
}

// WriteSummary writes the summary rows as CSV.
func WriteSummary(w io.Writer, rows []SummaryRow) error {
	lines := lo.Map(rows, func(r SummaryRow, _ int) summaryLine {
		return summaryLine{
			PI:              r.PI,
			Storage:         r.Storage,
			StoragePrice:    Money(r.StoragePrice),
			PowerUsers:      r.PowerUsers,
			PowerUsersPrice: Money(r.PowerUsersPrice),
			TotalPrice:      Money(r.TotalPrice),
			SpeedCode:       r.SpeedCode,
		}
	})
	if err := gocsv.MarshalCSV(lines, csv.NewWriter(w)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// WritePowerUsers writes the power user count report as CSV.
func WritePowerUsers(w io.Writer, entries []PowerUserEntry) error {
	if err := gocsv.MarshalCSV(entries, csv.NewWriter(w)); err != nil {
		return fmt.Errorf("write power users: %w", err)
	}
	return nil
}

// billFileNames names each record's bill. PIs with several billable projects
// get the project open date appended, and projects of one PI opened on the
// same day are numbered in record order.
func billFileNames(run *QuarterRun) []string {
	perPI := lo.CountValuesBy(run.Records, func(r *record.ProjectRecord) string {
		return r.PILastName()
	})
	perOpenDay := lo.CountValuesBy(run.Records, openDayKey)

	seen := make(map[string]int, len(perOpenDay))
	names := make([]string, len(run.Records))
	for i, rec := range run.Records {
		pi := fileSafe(rec.PILastName())
		if perPI[rec.PILastName()] > 1 {
			pi = pi + "-" + rec.StorageStart().Format(time.DateOnly)
		}
		if key := openDayKey(rec); perOpenDay[key] > 1 {
			seen[key]++
			pi = pi + "-" + strconv.Itoa(seen[key])
		}
		names[i] = fmt.Sprintf("pi-%s_quarter-%s_bill.tex", pi, run.QuarterStart.Format(time.DateOnly))
	}
	return names
}

func openDayKey(r *record.ProjectRecord) string {
	return r.PILastName() + "/" + r.StorageStart().Format(time.DateOnly)
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' || r == '\\' {
			return '-'
		}
		return r
	}, s)
}
