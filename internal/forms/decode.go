package forms

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/rpggio/cbsbilling/internal/repository"
)

// timestampLayouts are tried in order. Form exports differ by locale and tool.
var timestampLayouts = []string{
	time.RFC3339,
	time.DateTime,
	"2006-01-02 15:04",
	time.DateOnly,
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"1/2/2006",
}

// form is one export fed to gocsv with its header renamed to the column
// contract and blank rows dropped.
type form struct {
	name    string
	in      io.Reader
	renames map[string]string

	columns map[string]bool
	// lines holds the 1-based source row of each decoded row, header included.
	lines []int
}

var _ gocsv.Decoder = (*form)(nil)

// GetCSVRows implements gocsv.Decoder.
func (f *form) GetCSVRows() ([][]string, error) {
	cr := csv.NewReader(f.in)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: form %s has no header", repository.ErrMissingColumn, f.name)
	}

	header := make([]string, len(records[0]))
	f.columns = make(map[string]bool, len(header))
	for i, h := range records[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if renamed, ok := f.renames[key]; ok {
			key = renamed
		}
		// Later duplicates are left unnamed so the first column wins.
		if f.columns[key] {
			continue
		}
		f.columns[key] = true
		header[i] = key
	}

	rows := [][]string{header}
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		rows = append(rows, rec)
		f.lines = append(f.lines, i+2)
	}
	return rows, nil
}

// readForm decodes the export at path into rows, a pointer to a slice of
// csv-tagged structs, and checks that every required column is present.
func readForm(path string, renames map[string]string, rows any, required ...string) (*form, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open form %s: %w", path, err)
	}
	defer in.Close()
	return decodeForm(path, in, renames, rows, required...)
}

func decodeForm(name string, in io.Reader, renames map[string]string, rows any, required ...string) (*form, error) {
	f := &form{name: name, in: in, renames: renames}
	if err := gocsv.UnmarshalDecoder(f, rows); err != nil {
		if errors.Is(err, repository.ErrMissingColumn) {
			return nil, err
		}
		return nil, fmt.Errorf("read form %s: %w", name, err)
	}
	for _, c := range required {
		if !f.columns[c] {
			return nil, fmt.Errorf("%w: form %s has no %q column", repository.ErrMissingColumn, name, c)
		}
	}
	return f, nil
}

func (f *form) float(row int, col, cell string) (float64, error) {
	v, err := f.optFloat(row, col, cell)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, f.invalid(row, col, "value required")
	}
	return *v, nil
}

func (f *form) optFloat(row int, col, cell string) (*float64, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, f.invalid(row, col, err.Error())
	}
	return &v, nil
}

func (f *form) timestamp(row int, col, cell string) (time.Time, error) {
	ts, err := f.optTimestamp(row, col, cell)
	if err != nil {
		return time.Time{}, err
	}
	if ts == nil {
		return time.Time{}, f.invalid(row, col, "value required")
	}
	return *ts, nil
}

func (f *form) optTimestamp(row int, col, cell string) (*time.Time, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts, nil
		}
	}
	return nil, f.invalid(row, col, fmt.Sprintf("unrecognized timestamp %q", s))
}

func (f *form) invalid(row int, col, msg string) error {
	return fmt.Errorf("%w: form %s row %d column %s: %s", repository.ErrInvalidValue, f.name, f.lines[row], col, msg)
}

// str returns the normalized (trimmed, lower-cased) cell.
func str(cell string) string {
	return strings.ToLower(strings.TrimSpace(cell))
}

func optStr(cell string) *string {
	s := str(cell)
	if s == "" {
		return nil
	}
	return &s
}

func yes(cell string) bool {
	switch str(cell) {
	case "yes", "true", "1":
		return true
	}
	return false
}

// powerUserChoice reads an account type change: empty means unchanged.
func powerUserChoice(cell string) *bool {
	s := str(cell)
	if s == "" {
		return nil
	}
	power := s == "power user" || s == "yes" || s == "true"
	return &power
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
