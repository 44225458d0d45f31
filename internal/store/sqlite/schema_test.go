package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"merlionpos/internal/domain"
	"merlionpos/internal/store"
)

// Databases produced by older tills use different column names and link the
// child tables by the textual receipt number. The probe must adapt and the
// committers must write those tables without touching their shape.
func TestLegacySchemaVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	stmts := []string{
		`CREATE TABLE receipts (
			receipt_number TEXT NOT NULL UNIQUE,
			customer       TEXT,
			cashier        TEXT,
			status         TEXT NOT NULL,
			total          REAL,
			created_at     TEXT,
			remarks        TEXT
		)`,
		`CREATE TABLE receipt_items (
			receipt_number TEXT NOT NULL,
			line_no        INTEGER,
			name           TEXT,
			quantity       REAL,
			price          REAL,
			total          REAL
		)`,
		`CREATE TABLE receipt_payments (
			receipt_number TEXT NOT NULL,
			type           TEXT NOT NULL,
			amount         REAL NOT NULL,
			created_at     TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("create legacy table: %v", err)
		}
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open over legacy schema: %v", err)
	}
	defer s.Close()

	if s.schema.items.linkByRowID {
		t.Fatalf("items link resolved to rowid, want receipt_number")
	}
	if s.schema.items.qty != "quantity" || s.schema.items.price != "price" {
		t.Fatalf("item columns = %s/%s, want quantity/price", s.schema.items.qty, s.schema.items.price)
	}
	if s.schema.receipts.no != "receipt_number" {
		t.Fatalf("receipt no column = %s, want receipt_number", s.schema.receipts.no)
	}

	ctx := context.Background()
	no, err := s.HoldSale(ctx, domain.HoldSaleRequest{
		CustomerName: "Mr Lim",
		CashierName:  "alice",
		Items: []domain.SaleItem{
			{ProductName: "Kopi O", Qty: dec("2"), UnitPrice: dec("1.50")},
		},
	})
	if err != nil {
		t.Fatalf("hold on legacy schema: %v", err)
	}

	if _, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{
		ReceiptNo: no,
		Payments:  cashPayment("3.00", "5.00"),
	}); err != nil {
		t.Fatalf("settle on legacy schema: %v", err)
	}

	r, err := s.GetReceipt(ctx, no)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if r.Status != domain.ReceiptStatusPaid {
		t.Fatalf("status = %s, want PAID", r.Status)
	}
	if len(r.Items) != 1 || !r.Items[0].Qty.Equal(dec("2")) {
		t.Fatalf("items read back wrong: %+v", r.Items)
	}
	if len(r.Payments) != 1 || !r.Payments[0].Amount.Equal(dec("3.00")) {
		t.Fatalf("payments read back wrong: %+v", r.Payments)
	}
	// The legacy receipts table has no paid_at column; the read model just
	// leaves it empty.
	if r.PaidAt != nil {
		t.Fatalf("paid_at populated from a schema without the column")
	}
}

func TestUnusableSchemaIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db")

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	// receipts without a status column cannot support the committers.
	if _, err := raw.Exec(`CREATE TABLE receipts (receipt_no TEXT, total REAL)`); err != nil {
		t.Fatalf("create broken table: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	if _, err := Open(context.Background(), path); !errors.Is(err, store.ErrSchemaUnusable) {
		t.Fatalf("got %v, want ErrSchemaUnusable", err)
	}
}
