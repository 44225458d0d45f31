package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"merlionpos/internal/domain"
)

// RenderReceiptText formats a receipt as fixed-width plain text for preview
// and thermal printing. Pure read-side transform; nothing is persisted.
func RenderReceiptText(r *domain.Receipt, company CompanyInfo) string {
	width := company.Width
	if width < 20 {
		width = 40
	}
	sep := strings.Repeat("-", width)

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	pair := func(label, value string) {
		pad := width - len(label) - len(value)
		if pad < 1 {
			pad = 1
		}
		line(label + strings.Repeat(" ", pad) + value)
	}
	center := func(s string) {
		if pad := (width - len(s)) / 2; pad > 0 {
			s = strings.Repeat(" ", pad) + s
		}
		line(s)
	}

	center(company.Name)
	if company.Address != "" {
		center(company.Address)
	}
	line(sep)
	pair("Receipt", r.ReceiptNo)
	pair("Date", r.CreatedAt.Format("02 Jan 2006 15:04"))
	if r.CashierName != "" {
		pair("Cashier", r.CashierName)
	}
	if r.CustomerName != "" {
		pair("Customer", r.CustomerName)
	}
	if r.Status != domain.ReceiptStatusPaid {
		pair("Status", r.Status)
	}
	line(sep)

	for _, item := range r.Items {
		line(item.ProductName)
		qty := item.Qty.String()
		if item.Unit != "" {
			qty += " " + item.Unit
		}
		pair(fmt.Sprintf("  %s x %s", qty, item.UnitPrice.StringFixed(2)), item.LineTotal.StringFixed(2))
	}

	line(sep)
	pair("TOTAL", r.GrandTotal.StringFixed(2))

	if len(r.Payments) > 0 {
		line("")
		cashTendered := decimal.Zero
		cashAllocated := decimal.Zero
		for _, p := range r.Payments {
			pair(p.Type, p.Amount.StringFixed(2))
			if p.Type == domain.PaymentTypeCash {
				cashTendered = cashTendered.Add(p.Tendered)
				cashAllocated = cashAllocated.Add(p.Amount)
			}
		}
		if cashTendered.GreaterThan(cashAllocated) {
			pair("Cash tendered", cashTendered.StringFixed(2))
			pair("Change", cashTendered.Sub(cashAllocated).StringFixed(2))
		}
	}

	line(sep)
	center("Thank you, please come again!")

	return strings.TrimRight(b.String(), "\n")
}
