package repository

import (
	"context"

	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/user"
)

// EventSource loads the four form tables, normalized to the form column
// contract. Every call returns the full history of its table.
type EventSource interface {
	AccountRequests(ctx context.Context) ([]user.AccountRequest, error)
	AccountUpdates(ctx context.Context) ([]user.AccountUpdate, error)
	PIRequests(ctx context.Context) ([]project.PIRequest, error)
	PIUpdates(ctx context.Context) ([]project.PIUpdate, error)
}

// Events is the content of all four form tables.
type Events struct {
	AccountRequests []user.AccountRequest
	AccountUpdates  []user.AccountUpdate
	PIRequests      []project.PIRequest
	PIUpdates       []project.PIUpdate
}

// EventArchive stores form events, replacing whatever it held before.
type EventArchive interface {
	EventSource
	Replace(ctx context.Context, events Events) error
}

// LoadAll reads every table of src.
func LoadAll(ctx context.Context, src EventSource) (Events, error) {
	var (
		ev  Events
		err error
	)
	if ev.AccountRequests, err = src.AccountRequests(ctx); err != nil {
		return Events{}, err
	}
	if ev.AccountUpdates, err = src.AccountUpdates(ctx); err != nil {
		return Events{}, err
	}
	if ev.PIRequests, err = src.PIRequests(ctx); err != nil {
		return Events{}, err
	}
	if ev.PIUpdates, err = src.PIUpdates(ctx); err != nil {
		return Events{}, err
	}
	return ev, nil
}

// Copy replaces the contents of dst with every table of src.
func Copy(ctx context.Context, src EventSource, dst EventArchive) (Events, error) {
	ev, err := LoadAll(ctx, src)
	if err != nil {
		return Events{}, err
	}
	if err := dst.Replace(ctx, ev); err != nil {
		return Events{}, err
	}
	return ev, nil
}
