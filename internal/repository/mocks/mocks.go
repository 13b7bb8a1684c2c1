package mocks

import (
	"context"
	"io"

	"github.com/rpggio/cbsbilling/internal/domain/billing"
	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/user"
	"github.com/rpggio/cbsbilling/internal/repository"
	"github.com/stretchr/testify/mock"
)

// EventSource is a mock for repository.EventSource.
type EventSource struct {
	mock.Mock
}

func (m *EventSource) AccountRequests(ctx context.Context) ([]user.AccountRequest, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]user.AccountRequest); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EventSource) AccountUpdates(ctx context.Context) ([]user.AccountUpdate, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]user.AccountUpdate); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EventSource) PIRequests(ctx context.Context) ([]project.PIRequest, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]project.PIRequest); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EventSource) PIUpdates(ctx context.Context) ([]project.PIUpdate, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]project.PIUpdate); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// EventArchive is a mock for repository.EventArchive.
type EventArchive struct {
	EventSource
}

func (m *EventArchive) Replace(ctx context.Context, events repository.Events) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// Renderer is a mock for billing.Renderer.
type Renderer struct {
	mock.Mock
}

func (m *Renderer) Render(w io.Writer, inv billing.Invoice) error {
	args := m.Called(w, inv)
	return args.Error(0)
}

var (
	_ repository.EventSource  = (*EventSource)(nil)
	_ repository.EventArchive = (*EventArchive)(nil)
	_ billing.EventSource     = (*EventSource)(nil)
	_ billing.Renderer        = (*Renderer)(nil)
)
