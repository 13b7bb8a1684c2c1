package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/cbsbilling/internal/domain/billing"
	"github.com/rpggio/cbsbilling/internal/domain/record"
)

type billingStub struct {
	quarterFn    func(context.Context, time.Time) (*billing.QuarterRun, error)
	invoicesFn   func(context.Context, time.Time, string) ([]billing.Bill, error)
	powerUsersFn func(context.Context, time.Time, time.Time) ([]billing.PowerUserEntry, error)
}

func (b billingStub) Policy() billing.Policy { return billing.DefaultPolicy() }
func (b billingStub) Quarter(ctx context.Context, qs time.Time) (*billing.QuarterRun, error) {
	return b.quarterFn(ctx, qs)
}
func (b billingStub) Invoices(ctx context.Context, qs time.Time, pi string) ([]billing.Bill, error) {
	return b.invoicesFn(ctx, qs, pi)
}
func (b billingStub) PowerUsers(ctx context.Context, start, end time.Time) ([]billing.PowerUserEntry, error) {
	return b.powerUsersFn(ctx, start, end)
}

func connect(t *testing.T, svc BillingService) *sdkmcp.ClientSession {
	t.Helper()
	return connectWithLogger(t, svc, nil)
}

func connectWithLogger(t *testing.T, svc BillingService, logger *slog.Logger) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(Config{Billing: svc, Version: "test", Logger: logger})
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
		serverSession.Wait()
	})
	return session
}

func callTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func textOf(t *testing.T, res *sdkmcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestListTools(t *testing.T) {
	session := connect(t, billingStub{})

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"quarter_summary", "project_invoice", "power_users"}, names)
}

func TestQuarterSummary(t *testing.T) {
	var gotQS time.Time
	session := connect(t, billingStub{
		quarterFn: func(_ context.Context, qs time.Time) (*billing.QuarterRun, error) {
			gotQS = qs
			return &billing.QuarterRun{
				ID:           "run-1",
				QuarterStart: qs,
				QuarterEnd:   time.Date(2021, time.January, 31, 0, 0, 0, 0, time.UTC),
				Rows: []billing.SummaryRow{
					{PI: "kim kiwi", PILastName: "kiwi", Storage: 20, StoragePrice: 250, PowerUsers: 1, PowerUsersPrice: 250, TotalPrice: 500, SpeedCode: "ab12"},
					{PI: "lee lime", PILastName: "lime", Storage: 2, StoragePrice: 25, TotalPrice: 25, SpeedCode: "cd34"},
				},
			}, nil
		},
	})

	res := callTool(t, session, "quarter_summary", map[string]any{"quarter_start": "2020-11-01"})
	require.False(t, res.IsError, textOf(t, res))

	var out QuarterSummaryResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	require.Equal(t, time.Date(2020, time.November, 1, 0, 0, 0, 0, time.UTC), gotQS)
	require.Equal(t, "run-1", out.RunID)
	require.Equal(t, "2021-01-31", out.QuarterEnd)
	require.Len(t, out.Rows, 2)
	require.Equal(t, "500.00", out.Rows[0].TotalPrice)
	require.Equal(t, "525.00", out.Total)
}

func TestQuarterSummaryRejectsBadDate(t *testing.T) {
	session := connect(t, billingStub{})

	res := callTool(t, session, "quarter_summary", map[string]any{"quarter_start": "Nov 1 2020"})
	require.True(t, res.IsError)
	require.Contains(t, textOf(t, res), "INVALID_ARGUMENT")
}

func TestQuarterSummaryMapsDomainErrors(t *testing.T) {
	session := connect(t, billingStub{
		quarterFn: func(context.Context, time.Time) (*billing.QuarterRun, error) {
			return nil, record.ErrOrphanedPowerUser.New("apple@uwo.ca names PI %q", "fig")
		},
	})

	res := callTool(t, session, "quarter_summary", map[string]any{"quarter_start": "2020-11-01"})
	require.True(t, res.IsError)
	require.Contains(t, textOf(t, res), "ORPHANED_POWER_USER")
}

func TestProjectInvoice(t *testing.T) {
	session := connect(t, billingStub{
		invoicesFn: func(_ context.Context, _ time.Time, pi string) ([]billing.Bill, error) {
			if pi != "kiwi" {
				return nil, fmt.Errorf("%w for PI %q", billing.ErrNoBillableProject, pi)
			}
			return []billing.Bill{{PILastName: "kiwi", FileName: "pi-kiwi_quarter-2020-11-01_bill.tex", Content: []byte(`\total{500.00}`)}}, nil
		},
	})

	res := callTool(t, session, "project_invoice", map[string]any{"quarter_start": "2020-11-01", "pi_last_name": "kiwi"})
	require.False(t, res.IsError, textOf(t, res))
	var out ProjectInvoiceResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	require.Len(t, out.Invoices, 1)
	require.Equal(t, `\total{500.00}`, out.Invoices[0].Content)

	res = callTool(t, session, "project_invoice", map[string]any{"quarter_start": "2020-11-01", "pi_last_name": "plum"})
	require.True(t, res.IsError)
	require.Contains(t, textOf(t, res), "NO_BILLABLE_PROJECT")
}

func TestPowerUsers(t *testing.T) {
	session := connect(t, billingStub{
		powerUsersFn: func(_ context.Context, start, end time.Time) ([]billing.PowerUserEntry, error) {
			return []billing.PowerUserEntry{{Name: "apple", Email: "apple@uwo.ca", PILastName: "kiwi"}}, nil
		},
	})

	res := callTool(t, session, "power_users", map[string]any{"start": "2020-01-01", "end": "2020-12-31"})
	require.False(t, res.IsError, textOf(t, res))
	var out PowerUsersResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	require.Equal(t, 1, out.Count)
	require.Equal(t, "apple@uwo.ca", out.Users[0].Email)

	res = callTool(t, session, "power_users", map[string]any{"start": "2020-12-31", "end": "2020-01-01"})
	require.True(t, res.IsError)
}

func TestPolicyResource(t *testing.T) {
	session := connect(t, billingStub{})

	res, err := session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: policyURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "$50.00 per TB per year")
	require.Contains(t, res.Contents[0].Text, "$1000.00 per year")
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Equal(t, "INTERNAL", MapError(fmt.Errorf("boom")).Code)
	require.Equal(t, "NO_BILLABLE_PROJECT", MapError(fmt.Errorf("wrapped: %w", billing.ErrNoBillableProject)).Code)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) records(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestTrafficLogNamesToolAndQuarter(t *testing.T) {
	var logs lockedBuffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	session := connectWithLogger(t, billingStub{
		invoicesFn: func(_ context.Context, _ time.Time, pi string) ([]billing.Bill, error) {
			if pi != "kiwi" {
				return nil, fmt.Errorf("%w for PI %q", billing.ErrNoBillableProject, pi)
			}
			return []billing.Bill{{PILastName: "kiwi", FileName: "pi-kiwi_quarter-2020-11-01_bill.tex", Content: []byte(`\total{500.00}`)}}, nil
		},
	}, logger)

	res := callTool(t, session, "project_invoice", map[string]any{"quarter_start": "2020-11-01", "pi_last_name": "kiwi"})
	require.False(t, res.IsError, textOf(t, res))
	res = callTool(t, session, "project_invoice", map[string]any{"quarter_start": "2020-11-01", "pi_last_name": "plum"})
	require.True(t, res.IsError)

	var responses []map[string]any
	for _, rec := range logs.records(t) {
		if rec["msg"] == "mcp response" && rec["tool"] == "project_invoice" {
			responses = append(responses, rec)
		}
	}
	require.Len(t, responses, 2)

	require.Equal(t, "inbound", responses[0]["direction"])
	require.Equal(t, "tools/call", responses[0]["method"])
	require.Equal(t, "2020-11-01", responses[0]["quarter_start"])
	require.Equal(t, "kiwi", responses[0]["pi_last_name"])
	require.Equal(t, false, responses[0]["tool_error"])
	require.NotContains(t, responses[0], "start")

	require.Equal(t, "plum", responses[1]["pi_last_name"])
	require.Equal(t, true, responses[1]["tool_error"])

	logs.mu.Lock()
	defer logs.mu.Unlock()
	require.NotContains(t, logs.buf.String(), "total{500.00}")
}
