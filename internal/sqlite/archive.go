package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/user"
	"github.com/rpggio/cbsbilling/internal/repository"
)

// Archive implements repository.EventArchive for SQLite
type Archive struct {
	db *DB
}

var _ repository.EventArchive = (*Archive)(nil)

// NewArchive creates a new Archive
func NewArchive(db *DB) *Archive {
	return &Archive{db: db}
}

// Import is one completed Replace.
type Import struct {
	ID              string
	ImportedAt      time.Time
	AccountRequests int
	AccountUpdates  int
	PIRequests      int
	PIUpdates       int
}

// Replace swaps the archive's contents for events in one transaction.
func (a *Archive) Replace(ctx context.Context, events repository.Events) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"user_requests", "user_updates", "pi_requests", "pi_updates"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, r := range events.AccountRequests {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_requests (start_timestamp, email, last_name, pi_last_name, power_user, end_timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.Timestamp, r.Email, r.Name, r.PIName, r.PowerUser, nullTime(r.EndDate))
		if err != nil {
			return fmt.Errorf("failed to insert user request: %w", err)
		}
	}
	for _, u := range events.AccountUpdates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_updates (timestamp, email, last_name, pi_last_name, new_power_user, new_end_timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			u.Timestamp, u.Email, u.Name, nullString(u.PIName), nullBool(u.PowerUser), nullTime(u.EndDate))
		if err != nil {
			return fmt.Errorf("failed to insert user update: %w", err)
		}
	}
	for _, r := range events.PIRequests {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pi_requests (start_timestamp, email, first_name, last_name, speed_code, storage, pi_is_power_user)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.Timestamp, r.Email, r.FirstName, r.Name, r.SpeedCode, r.Storage, r.PowerUser)
		if err != nil {
			return fmt.Errorf("failed to insert PI request: %w", err)
		}
	}
	for _, u := range events.PIUpdates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pi_updates (timestamp, email, last_name, speed_code, new_storage, account_closed)
			VALUES (?, ?, ?, ?, ?, ?)`,
			u.Timestamp, u.Email, u.Name, nullString(u.SpeedCode), nullFloat(u.Storage), u.AccountClosed)
		if err != nil {
			return fmt.Errorf("failed to insert PI update: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO imports (id, user_requests, user_updates, pi_requests, pi_updates)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), len(events.AccountRequests), len(events.AccountUpdates), len(events.PIRequests), len(events.PIUpdates))
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// LastImport returns the most recent import.
func (a *Archive) LastImport(ctx context.Context) (*Import, error) {
	var imp Import
	err := a.db.QueryRowContext(ctx, `
		SELECT id, imported_at, user_requests, user_updates, pi_requests, pi_updates
		FROM imports
		ORDER BY imported_at DESC, rowid DESC
		LIMIT 1`).Scan(
		&imp.ID, &imp.ImportedAt, &imp.AccountRequests, &imp.AccountUpdates, &imp.PIRequests, &imp.PIUpdates)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, a.wrap("failed to get last import", err)
	}
	return &imp, nil
}

// AccountRequests loads the user account request form.
func (a *Archive) AccountRequests(ctx context.Context) ([]user.AccountRequest, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT start_timestamp, email, last_name, pi_last_name, power_user, end_timestamp
		FROM user_requests
		ORDER BY id`)
	if err != nil {
		return nil, a.wrap("failed to list user requests", err)
	}
	defer rows.Close()

	var out []user.AccountRequest
	for rows.Next() {
		var (
			r   user.AccountRequest
			end sql.NullTime
		)
		if err := rows.Scan(&r.Timestamp, &r.Email, &r.Name, &r.PIName, &r.PowerUser, &end); err != nil {
			return nil, fmt.Errorf("failed to scan user request: %w", err)
		}
		r.EndDate = timePtr(end)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AccountUpdates loads the user account update form.
func (a *Archive) AccountUpdates(ctx context.Context) ([]user.AccountUpdate, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT timestamp, email, last_name, pi_last_name, new_power_user, new_end_timestamp
		FROM user_updates
		ORDER BY id`)
	if err != nil {
		return nil, a.wrap("failed to list user updates", err)
	}
	defer rows.Close()

	var out []user.AccountUpdate
	for rows.Next() {
		var (
			u     user.AccountUpdate
			pi    sql.NullString
			power sql.NullBool
			end   sql.NullTime
		)
		if err := rows.Scan(&u.Timestamp, &u.Email, &u.Name, &pi, &power, &end); err != nil {
			return nil, fmt.Errorf("failed to scan user update: %w", err)
		}
		u.PIName = stringPtr(pi)
		u.PowerUser = boolPtr(power)
		u.EndDate = timePtr(end)
		out = append(out, u)
	}
	return out, rows.Err()
}

// PIRequests loads the PI account request form.
func (a *Archive) PIRequests(ctx context.Context) ([]project.PIRequest, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT start_timestamp, email, first_name, last_name, speed_code, storage, pi_is_power_user
		FROM pi_requests
		ORDER BY id`)
	if err != nil {
		return nil, a.wrap("failed to list PI requests", err)
	}
	defer rows.Close()

	var out []project.PIRequest
	for rows.Next() {
		var r project.PIRequest
		if err := rows.Scan(&r.Timestamp, &r.Email, &r.FirstName, &r.Name, &r.SpeedCode, &r.Storage, &r.PowerUser); err != nil {
			return nil, fmt.Errorf("failed to scan PI request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PIUpdates loads the PI account update form.
func (a *Archive) PIUpdates(ctx context.Context) ([]project.PIUpdate, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT timestamp, email, last_name, speed_code, new_storage, account_closed
		FROM pi_updates
		ORDER BY id`)
	if err != nil {
		return nil, a.wrap("failed to list PI updates", err)
	}
	defer rows.Close()

	var out []project.PIUpdate
	for rows.Next() {
		var (
			u       project.PIUpdate
			code    sql.NullString
			storage sql.NullFloat64
		)
		if err := rows.Scan(&u.Timestamp, &u.Email, &u.Name, &code, &storage, &u.AccountClosed); err != nil {
			return nil, fmt.Errorf("failed to scan PI update: %w", err)
		}
		u.SpeedCode = stringPtr(code)
		if storage.Valid {
			u.Storage = &storage.Float64
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (a *Archive) wrap(msg string, err error) error {
	if isMissingTable(err) {
		return fmt.Errorf("%s: %w: archive has not been initialized", msg, repository.ErrInvalidInput)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	return &b.Bool
}
