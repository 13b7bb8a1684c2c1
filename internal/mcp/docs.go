package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/cbsbilling/internal/domain/billing"
)

const serverInstructions = `cbsbilling computes quarterly CBS server bills from the account request and update forms.

Core concepts:
- Project: one PI's storage allocation, opened by a PI request and changed by PI updates.
- User: a server account affiliated with a PI. Power users are billed per quarter.
- Quarter: three months starting on the first day of quarter_start's month.

Workflow:
1) Call quarter_summary(quarter_start) to list billable projects and their totals.
2) Call project_invoice(quarter_start, pi_last_name) for a PI's rendered bill.
3) Call power_users(start, end) to count power users over any window.

Dates are YYYY-MM-DD. Prices and cutoffs are described by cbsbilling://policy.
`

const policyURI = "cbsbilling://policy"

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

func policyDoc(p billing.Policy) docResource {
	return docResource{
		URI:         policyURI,
		Name:        "billing_policy",
		Title:       "Billing policy",
		Description: "Prices, billing period and minimum usage applied to every bill.",
		Content: fmt.Sprintf(`# Billing policy

- Storage: $%s per TB per year, billed quarterly.
- First power user of a PI: $%s per year.
- Each additional power user: $%s per year.
- Billing period: %d months.
- Minimum usage: %d months of a period.
- Bill dates use the %s time zone.

## Rules

- A project is billed for a quarter when it opened by the end of the quarter
  and did not close before the minimum usage window ended.
- Storage is the lesser amount held at the two usage cutoffs, or nothing if
  the project opened after the first cutoff.
- A power user is billed when they were active long enough to cover a minimum
  usage window. Power users are ordered by start date; the first billable one
  pays the first power user price.
- Only the earliest project of a PI bills power users.
`,
			billing.Money(p.StoragePrice),
			billing.Money(p.FirstPowerUserPrice),
			billing.Money(p.AdditionalPowerUserPrice),
			p.PeriodLength,
			p.MinBillUsage,
			p.Location),
	}
}

func registerDocResources(server *sdkmcp.Server, p billing.Policy) {
	for _, doc := range []docResource{policyDoc(p)} {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
