package mcp

import (
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/cbsbilling/internal/domain/billing"
)

// BillingService defines billing operations needed by MCP.
type BillingService interface {
	Policy() billing.Policy
	Quarter(ctx context.Context, qs time.Time) (*billing.QuarterRun, error)
	Invoices(ctx context.Context, qs time.Time, piLastName string) ([]billing.Bill, error)
	PowerUsers(ctx context.Context, start, end time.Time) ([]billing.PowerUserEntry, error)
}

// Config contains server configuration.
type Config struct {
	Billing BillingService
	Version string
	Logger  *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and resources.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "cbsbilling",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server, cfg.Billing.Policy())

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Billing, cfg.Logger)

	return server
}
