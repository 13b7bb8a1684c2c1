package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/billing"
)

var errInvalidArgument = errors.New("invalid argument")

type QuarterSummaryParams struct {
	QuarterStart string `json:"quarter_start" jsonschema:"first day of the quarter, YYYY-MM-DD"`
}

type SummaryRow struct {
	PI              string  `json:"pi"`
	PILastName      string  `json:"pi_last_name"`
	Storage         float64 `json:"storage"`
	StoragePrice    string  `json:"storage_price"`
	PowerUsers      int     `json:"power_users"`
	PowerUsersPrice string  `json:"power_users_price"`
	TotalPrice      string  `json:"total_price"`
	SpeedCode       string  `json:"speed_code"`
}

type QuarterSummaryResult struct {
	RunID        string       `json:"run_id"`
	QuarterStart string       `json:"quarter_start"`
	QuarterEnd   string       `json:"quarter_end"`
	Rows         []SummaryRow `json:"rows"`
	Total        string       `json:"total"`
}

type ProjectInvoiceParams struct {
	QuarterStart string `json:"quarter_start" jsonschema:"first day of the quarter, YYYY-MM-DD"`
	PILastName   string `json:"pi_last_name" jsonschema:"PI last name as it appears in the summary"`
}

type Invoice struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

type ProjectInvoiceResult struct {
	Invoices []Invoice `json:"invoices"`
}

type PowerUsersParams struct {
	Start string `json:"start" jsonschema:"first day of the window, YYYY-MM-DD"`
	End   string `json:"end" jsonschema:"last day of the window, YYYY-MM-DD"`
}

type PowerUser struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	PILastName string `json:"pi_last_name"`
}

type PowerUsersResult struct {
	Count int         `json:"count"`
	Users []PowerUser `json:"users"`
}

func registerTools(server *sdkmcp.Server, svc BillingService, logger *slog.Logger) {
	h := &toolHandlers{billing: svc, logger: logger}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "quarter_summary",
		Description: "Summarize every billable project of a quarter: storage, power users and totals",
	}, h.quarterSummary)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "project_invoice",
		Description: "Render the LaTeX invoices of one PI's billable projects for a quarter",
	}, h.projectInvoice)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "power_users",
		Description: "List power users affiliated with any project over a date window",
	}, h.powerUsers)
}

type toolHandlers struct {
	billing BillingService
	logger  *slog.Logger
}

func (h *toolHandlers) quarterSummary(ctx context.Context, _ *sdkmcp.CallToolRequest, in QuarterSummaryParams) (*sdkmcp.CallToolResult, QuarterSummaryResult, error) {
	qs, err := parseDateArg("quarter_start", in.QuarterStart)
	if err != nil {
		return nil, QuarterSummaryResult{}, h.fail("quarter_summary", err)
	}
	run, err := h.billing.Quarter(ctx, qs)
	if err != nil {
		return nil, QuarterSummaryResult{}, h.fail("quarter_summary", err)
	}

	rows := lo.Map(run.Rows, func(r billing.SummaryRow, _ int) SummaryRow {
		return SummaryRow{
			PI:              r.PI,
			PILastName:      r.PILastName,
			Storage:         r.Storage,
			StoragePrice:    billing.Money(r.StoragePrice),
			PowerUsers:      r.PowerUsers,
			PowerUsersPrice: billing.Money(r.PowerUsersPrice),
			TotalPrice:      billing.Money(r.TotalPrice),
			SpeedCode:       r.SpeedCode,
		}
	})
	total := lo.SumBy(run.Rows, func(r billing.SummaryRow) float64 { return r.TotalPrice })

	return nil, QuarterSummaryResult{
		RunID:        run.ID,
		QuarterStart: run.QuarterStart.Format(time.DateOnly),
		QuarterEnd:   run.QuarterEnd.Format(time.DateOnly),
		Rows:         rows,
		Total:        billing.Money(total),
	}, nil
}

func (h *toolHandlers) projectInvoice(ctx context.Context, _ *sdkmcp.CallToolRequest, in ProjectInvoiceParams) (*sdkmcp.CallToolResult, ProjectInvoiceResult, error) {
	qs, err := parseDateArg("quarter_start", in.QuarterStart)
	if err != nil {
		return nil, ProjectInvoiceResult{}, h.fail("project_invoice", err)
	}
	if in.PILastName == "" {
		return nil, ProjectInvoiceResult{}, h.fail("project_invoice", fmt.Errorf("%w: pi_last_name is required", errInvalidArgument))
	}
	bills, err := h.billing.Invoices(ctx, qs, in.PILastName)
	if err != nil {
		return nil, ProjectInvoiceResult{}, h.fail("project_invoice", err)
	}
	return nil, ProjectInvoiceResult{
		Invoices: lo.Map(bills, func(b billing.Bill, _ int) Invoice {
			return Invoice{FileName: b.FileName, Content: string(b.Content)}
		}),
	}, nil
}

func (h *toolHandlers) powerUsers(ctx context.Context, _ *sdkmcp.CallToolRequest, in PowerUsersParams) (*sdkmcp.CallToolResult, PowerUsersResult, error) {
	start, err := parseDateArg("start", in.Start)
	if err != nil {
		return nil, PowerUsersResult{}, h.fail("power_users", err)
	}
	end, err := parseDateArg("end", in.End)
	if err != nil {
		return nil, PowerUsersResult{}, h.fail("power_users", err)
	}
	if end.Before(start) {
		return nil, PowerUsersResult{}, h.fail("power_users", fmt.Errorf("%w: end precedes start", errInvalidArgument))
	}
	entries, err := h.billing.PowerUsers(ctx, start, end)
	if err != nil {
		return nil, PowerUsersResult{}, h.fail("power_users", err)
	}
	users := lo.Map(entries, func(e billing.PowerUserEntry, _ int) PowerUser {
		return PowerUser{Name: e.Name, Email: e.Email, PILastName: e.PILastName}
	})
	return nil, PowerUsersResult{Count: len(users), Users: users}, nil
}

func (h *toolHandlers) fail(tool string, err error) error {
	apiErr := MapError(err)
	h.logger.Warn("tool call failed", "tool", tool, "code", apiErr.Code, "error", err)
	return apiErr
}

func parseDateArg(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", errInvalidArgument, name)
	}
	d, err := calendar.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", errInvalidArgument, name, err)
	}
	return d, nil
}
