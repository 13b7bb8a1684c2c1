package invoice_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpggio/cbsbilling/internal/domain/billing"
	"github.com/rpggio/cbsbilling/internal/invoice"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() billing.Invoice {
	return billing.Invoice{
		PIName:     "kim o_kiwi",
		PILastName: "o_kiwi",
		Dates:      billing.InvoiceDates{Start: "Nov 01, 2020", End: "Jan 31, 2021", Bill: "Feb 03, 2021"},
		Storage:    billing.StorageLine{Timestamp: "Dec 10, 2019", Amount: 20, Price: "50.00", Subtotal: "250.00"},
		PowerUsers: []billing.PowerUserLine{
			{Name: "apple", StartDate: "Oct 01, 2020", EndDate: billing.NotApplicable, Price: "1000.00", Subtotal: "250.00"},
		},
		PowerUsersSubtotal: "250.00",
		Total:              "500.00",
		SpeedCode:          "ab&c",
	}
}

func TestDefaultTemplate(t *testing.T) {
	r, err := invoice.Default()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleInvoice()))

	out := buf.String()
	require.Contains(t, out, `Kim O\_kiwi`)
	require.Contains(t, out, `Nov 01, 2020 -- Jan 31, 2021`)
	require.Contains(t, out, `Dec 10, 2019 & 20 & 50.00 & 250.00`)
	require.Contains(t, out, `Apple & Oct 01, 2020 & N/A & 1000.00 & 250.00`)
	require.Contains(t, out, `AB\&C`)
	require.Contains(t, out, `Total due: \$500.00`)
	require.NotContains(t, out, "No power users")
}

func TestDefaultTemplateWithoutPowerUsers(t *testing.T) {
	r, err := invoice.Default()
	require.NoError(t, err)

	inv := sampleInvoice()
	inv.PowerUsers = nil

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, inv))
	require.Contains(t, buf.String(), "No power users this quarter.")
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bill.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(`{| .PILastName | upper |}: {| .Total |}`), 0o644))

	r, err := invoice.FromFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleInvoice()))
	require.Equal(t, "O_KIWI: 500.00", buf.String())
}

func TestNewRejectsBadTemplate(t *testing.T) {
	_, err := invoice.New("broken", `{| .Total `)
	require.Error(t, err)
}

func TestEscapeTeX(t *testing.T) {
	require.Equal(t, `50\% of \$10 \& more`, invoice.EscapeTeX(`50% of $10 & more`))
}
