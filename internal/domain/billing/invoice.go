package billing

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/record"
)

// NotApplicable is shown in place of a missing date.
const NotApplicable = "N/A"

// Invoice is the payload handed to a Renderer. Prices are two-decimal strings
// and dates use calendar.Layout.
type Invoice struct {
	PIName             string
	PILastName         string
	Dates              InvoiceDates
	Storage            StorageLine
	PowerUsers         []PowerUserLine
	PowerUsersSubtotal string
	Total              string
	SpeedCode          string
}

type InvoiceDates struct {
	Start string
	End   string
	Bill  string
}

// StorageLine is the storage line item. Price is the annual price per TB.
type StorageLine struct {
	Timestamp string
	Amount    float64
	Price     string
	Subtotal  string
}

// PowerUserLine is one power user line item. Price is annualized, Subtotal
// is the quarter's charge.
type PowerUserLine struct {
	Name      string
	Email     string
	StartDate string
	EndDate   string
	Price     string
	Subtotal  string
}

// Invoice assembles the invoice payload for rec for the quarter starting qs.
// Storage and speed code are sampled at the end of the quarter, or at the
// close date if the project closed earlier.
func (p Policy) Invoice(rec record.BillableProjectRecord, qs time.Time) (Invoice, error) {
	qs = calendar.DateOf(qs)
	end := p.QuarterEnd(qs)
	sample := end
	if closed, ok := rec.CloseDate(); ok {
		sample = calendar.Min(end, closed)
	}

	amount, err := p.QuarterlyStorageAmount(rec, qs)
	if err != nil {
		return Invoice{}, err
	}
	storagePrice, err := p.QuarterlyStoragePrice(rec, qs)
	if err != nil {
		return Invoice{}, err
	}
	prices, err := p.EnumeratePowerUserPrices(rec, qs)
	if err != nil {
		return Invoice{}, err
	}
	speedCode, err := rec.SpeedCode(sample)
	if err != nil {
		return Invoice{}, err
	}

	powerTotal := 0.0
	lines := make([]PowerUserLine, 0, len(prices))
	for _, pp := range prices {
		endDate := NotApplicable
		if last, ok := pp.User.EndDate(); ok {
			endDate = last.Format(calendar.Layout)
		}
		lines = append(lines, PowerUserLine{
			Name:      pp.User.Name(),
			Email:     pp.User.Email(),
			StartDate: pp.User.StartDate().Format(calendar.Layout),
			EndDate:   endDate,
			Price:     Money(pp.Price / quarterShare),
			Subtotal:  Money(pp.Price),
		})
		powerTotal += pp.Price
	}

	return Invoice{
		PIName:     rec.PIFullName(),
		PILastName: rec.PILastName(),
		Dates: InvoiceDates{
			Start: qs.Format(calendar.Layout),
			End:   end.Format(calendar.Layout),
			Bill:  p.now().Format(calendar.Layout),
		},
		Storage: StorageLine{
			Timestamp: rec.StorageStart().Format(calendar.Layout),
			Amount:    amount,
			Price:     Money(p.StoragePrice),
			Subtotal:  Money(storagePrice),
		},
		PowerUsers:         lines,
		PowerUsersSubtotal: Money(powerTotal),
		Total:              Money(storagePrice + powerTotal),
		SpeedCode:          speedCode,
	}, nil
}

// RenderInvoice renders the invoice for rec to w.
func (p Policy) RenderInvoice(w io.Writer, rec record.BillableProjectRecord, qs time.Time, r Renderer) error {
	inv, err := p.Invoice(rec, qs)
	if err != nil {
		return err
	}
	if err := r.Render(w, inv); err != nil {
		return fmt.Errorf("rendering invoice for %s: %w", rec.PILastName(), err)
	}
	return nil
}

// Money formats a dollar amount with two decimals.
func Money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
