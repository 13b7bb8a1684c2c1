// Package forms loads the CSV exports of the four CBS server forms.
//
// Each export may use either the form's own question headers or the
// normalized column names directly. String cells are trimmed and lower-cased.
package forms

import (
	"context"
	"fmt"

	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/user"
	"github.com/rpggio/cbsbilling/internal/repository"
)

// Header renames per form, keyed by lower-cased, trimmed question text.
var (
	accountRequestColumns = map[string]string{
		"completion time": "start_timestamp",
		"uwo.ca email address": "email",
		"first name":           "first_name",
		"last name":            "last_name",
		"pi last name":         "pi_last_name",
		"contract end date":    "end_timestamp",
		"do you need your account to be a power user account": "power_user",
	}
	accountUpdateColumns = map[string]string{
		"completion time":            "timestamp",
		"uwo.ca email address":       "email",
		"first name":                 "first_name",
		"last name":                  "last_name",
		"pi last name (e.g., smith)": "pi_last_name",
		"update contract end date":   "new_end_timestamp",
		"change account type":        "new_power_user",
	}
	piRequestColumns = map[string]string{
		"completion time":   "start_timestamp",
		"uwo email address": "email",
		"first name":        "first_name",
		"last name":         "last_name",
		"would you like your account to be a power user account?": "pi_is_power_user",
		"speed code":                     "speed_code",
		"required storage needs (in tb)": "storage",
	}
	piUpdateColumns = map[string]string{
		"completion time":                  "timestamp",
		"uwo.ca email address":             "email",
		"first name":                       "first_name",
		"last name":                        "last_name",
		"additional storage needs (in tb)": "new_storage",
		"new speed code":                   "speed_code",
		"account closure2":                 "account_closed",
	}
)

// Paths locates the four form exports.
type Paths struct {
	PIRequests      string
	PIUpdates       string
	AccountRequests string
	AccountUpdates  string
}

// Validate checks that every path is set.
func (p Paths) Validate() error {
	for _, f := range []struct{ name, path string }{
		{"PI form", p.PIRequests},
		{"PI update form", p.PIUpdates},
		{"user form", p.AccountRequests},
		{"user update form", p.AccountUpdates},
	} {
		if f.path == "" {
			return fmt.Errorf("%w: %s path required", repository.ErrInvalidInput, f.name)
		}
	}
	return nil
}

// Source reads events from CSV form exports. Files are re-read on every call.
type Source struct {
	paths Paths
}

var _ repository.EventSource = (*Source)(nil)

// NewSource creates a source over the given exports.
func NewSource(paths Paths) *Source {
	return &Source{paths: paths}
}

// Rows as decoded by gocsv, keyed by normalized column name.
type (
	accountRequestRow struct {
		StartTimestamp string `csv:"start_timestamp"`
		Email          string `csv:"email"`
		LastName       string `csv:"last_name"`
		PILastName     string `csv:"pi_last_name"`
		PowerUser      string `csv:"power_user"`
		EndTimestamp   string `csv:"end_timestamp"`
	}
	accountUpdateRow struct {
		Timestamp       string `csv:"timestamp"`
		Email           string `csv:"email"`
		LastName        string `csv:"last_name"`
		PILastName      string `csv:"pi_last_name"`
		NewEndTimestamp string `csv:"new_end_timestamp"`
		NewPowerUser    string `csv:"new_power_user"`
	}
	piRequestRow struct {
		StartTimestamp string `csv:"start_timestamp"`
		Email          string `csv:"email"`
		FirstName      string `csv:"first_name"`
		LastName       string `csv:"last_name"`
		SpeedCode      string `csv:"speed_code"`
		Storage        string `csv:"storage"`
		PIIsPowerUser  string `csv:"pi_is_power_user"`
	}
	piUpdateRow struct {
		Timestamp     string `csv:"timestamp"`
		Email         string `csv:"email"`
		LastName      string `csv:"last_name"`
		NewStorage    string `csv:"new_storage"`
		SpeedCode     string `csv:"speed_code"`
		AccountClosed string `csv:"account_closed"`
	}
)

func (s *Source) AccountRequests(_ context.Context) ([]user.AccountRequest, error) {
	var rows []accountRequestRow
	f, err := readForm(s.paths.AccountRequests, accountRequestColumns, &rows,
		"start_timestamp", "email", "last_name", "pi_last_name", "power_user")
	if err != nil {
		return nil, err
	}
	return parseAccountRequests(f, rows)
}

func (s *Source) AccountUpdates(_ context.Context) ([]user.AccountUpdate, error) {
	var rows []accountUpdateRow
	f, err := readForm(s.paths.AccountUpdates, accountUpdateColumns, &rows,
		"timestamp", "email", "last_name")
	if err != nil {
		return nil, err
	}
	return parseAccountUpdates(f, rows)
}

func (s *Source) PIRequests(_ context.Context) ([]project.PIRequest, error) {
	var rows []piRequestRow
	f, err := readForm(s.paths.PIRequests, piRequestColumns, &rows,
		"start_timestamp", "email", "last_name", "speed_code", "storage", "pi_is_power_user")
	if err != nil {
		return nil, err
	}
	return parsePIRequests(f, rows)
}

func (s *Source) PIUpdates(_ context.Context) ([]project.PIUpdate, error) {
	var rows []piUpdateRow
	f, err := readForm(s.paths.PIUpdates, piUpdateColumns, &rows,
		"timestamp", "email", "last_name")
	if err != nil {
		return nil, err
	}
	return parsePIUpdates(f, rows)
}

func parseAccountRequests(f *form, rows []accountRequestRow) ([]user.AccountRequest, error) {
	out := make([]user.AccountRequest, 0, len(rows))
	for i, r := range rows {
		ts, err := f.timestamp(i, "start_timestamp", r.StartTimestamp)
		if err != nil {
			return nil, err
		}
		end, err := f.optTimestamp(i, "end_timestamp", r.EndTimestamp)
		if err != nil {
			return nil, err
		}
		out = append(out, user.AccountRequest{
			Timestamp: ts,
			Name:      str(r.LastName),
			Email:     str(r.Email),
			PIName:    str(r.PILastName),
			PowerUser: yes(r.PowerUser),
			EndDate:   end,
		})
	}
	return out, nil
}

func parseAccountUpdates(f *form, rows []accountUpdateRow) ([]user.AccountUpdate, error) {
	out := make([]user.AccountUpdate, 0, len(rows))
	for i, r := range rows {
		ts, err := f.timestamp(i, "timestamp", r.Timestamp)
		if err != nil {
			return nil, err
		}
		end, err := f.optTimestamp(i, "new_end_timestamp", r.NewEndTimestamp)
		if err != nil {
			return nil, err
		}
		out = append(out, user.AccountUpdate{
			Timestamp: ts,
			Name:      str(r.LastName),
			Email:     str(r.Email),
			PIName:    optStr(r.PILastName),
			PowerUser: powerUserChoice(r.NewPowerUser),
			EndDate:   end,
		})
	}
	return out, nil
}

func parsePIRequests(f *form, rows []piRequestRow) ([]project.PIRequest, error) {
	out := make([]project.PIRequest, 0, len(rows))
	for i, r := range rows {
		ts, err := f.timestamp(i, "start_timestamp", r.StartTimestamp)
		if err != nil {
			return nil, err
		}
		storage, err := f.float(i, "storage", r.Storage)
		if err != nil {
			return nil, err
		}
		out = append(out, project.PIRequest{
			Timestamp: ts,
			Email:     str(r.Email),
			Name:      str(r.LastName),
			FirstName: str(r.FirstName),
			SpeedCode: str(r.SpeedCode),
			PowerUser: yes(r.PIIsPowerUser),
			Storage:   storage,
		})
	}
	return out, nil
}

func parsePIUpdates(f *form, rows []piUpdateRow) ([]project.PIUpdate, error) {
	out := make([]project.PIUpdate, 0, len(rows))
	for i, r := range rows {
		ts, err := f.timestamp(i, "timestamp", r.Timestamp)
		if err != nil {
			return nil, err
		}
		storage, err := f.optFloat(i, "new_storage", r.NewStorage)
		if err != nil {
			return nil, err
		}
		out = append(out, project.PIUpdate{
			Timestamp:     ts,
			Email:         str(r.Email),
			Name:          str(r.LastName),
			SpeedCode:     optStr(r.SpeedCode),
			Storage:       storage,
			AccountClosed: yes(r.AccountClosed),
		})
	}
	return out, nil
}
