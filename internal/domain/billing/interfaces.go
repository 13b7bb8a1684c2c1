package billing

import (
	"context"
	"io"

	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/user"
)

// EventSource loads the four form tables. Each call returns the full history.
type EventSource interface {
	AccountRequests(ctx context.Context) ([]user.AccountRequest, error)
	AccountUpdates(ctx context.Context) ([]user.AccountUpdate, error)
	PIRequests(ctx context.Context) ([]project.PIRequest, error)
	PIUpdates(ctx context.Context) ([]project.PIUpdate, error)
}

// Renderer turns an invoice payload into a document.
type Renderer interface {
	Render(w io.Writer, inv Invoice) error
}
