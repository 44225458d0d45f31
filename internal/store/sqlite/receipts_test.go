package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"merlionpos/internal/domain"
	"merlionpos/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testItems() []domain.SaleItem {
	return []domain.SaleItem{
		{ProductCode: "KOPI-O", ProductName: "Kopi O", Qty: dec("2"), Unit: "cup", UnitPrice: dec("1.50")},
		{ProductCode: "KAYA-TOAST", ProductName: "Kaya Toast Set", Qty: dec("1"), Unit: "set", UnitPrice: dec("3.00")},
	}
}

func cashPayment(amount, tendered string) []domain.PaymentRow {
	return []domain.PaymentRow{
		{Type: domain.PaymentTypeCash, Amount: dec(amount), Tendered: dec(tendered)},
	}
}

func TestSequentialReceiptNumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	datePrefix := time.Now().UTC().Format("20060102")

	// Interleave held and direct-paid commits; numbering must not care.
	var got []string
	for i := 0; i < 6; i++ {
		var (
			no  string
			err error
		)
		if i%2 == 0 {
			no, err = s.HoldSale(ctx, domain.HoldSaleRequest{CashierName: "alice", Items: testItems()})
		} else {
			no, err = s.CommitPaidSale(ctx, domain.PaidSaleRequest{
				CashierName: "alice",
				Items:       testItems(),
				Payments:    cashPayment("6.00", "6.00"),
			})
		}
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		got = append(got, no)
	}

	for i, no := range got {
		want := fmt.Sprintf("%s-%04d", datePrefix, i+1)
		if no != want {
			t.Fatalf("receipt %d: got %s, want %s", i, no, want)
		}
	}
}

func TestEmptyCartAndEmptyPayments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.HoldSale(ctx, domain.HoldSaleRequest{CashierName: "alice"}); !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("hold with no items: got %v, want ErrEmptyCart", err)
	}
	if _, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{Items: testItems()}); !errors.Is(err, store.ErrEmptyPayments) {
		t.Fatalf("pay with no payments: got %v, want ErrEmptyPayments", err)
	}
	if _, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{Payments: cashPayment("1.00", "1.00")}); !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("direct sale with no items: got %v, want ErrEmptyCart", err)
	}
}

// A payment row violating the amount > 0 check lands after the header and
// item inserts, so a failure there must erase the whole receipt, counter
// increment included.
func TestCommitPaidSaleRollsBackCompletely(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	datePrefix := time.Now().UTC().Format("20060102")

	if _, err := s.HoldSale(ctx, domain.HoldSaleRequest{CashierName: "alice", Items: testItems()}); err != nil {
		t.Fatalf("seed hold: %v", err)
	}

	_, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{
		CashierName: "alice",
		Items:       testItems(),
		Payments:    []domain.PaymentRow{{Type: domain.PaymentTypeCash, Amount: decimal.Zero}},
	})
	if err == nil {
		t.Fatalf("expected zero-amount payment to fail the commit")
	}

	failedNo := datePrefix + "-0002"
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM receipts WHERE receipt_no = ?`, failedNo).Scan(&n); err != nil {
		t.Fatalf("count receipts: %v", err)
	}
	if n != 0 {
		t.Fatalf("rolled-back receipt %s still present", failedNo)
	}

	// The counter increment rolled back with it, so the number is issued to
	// the next successful commit.
	no, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{
		CashierName: "alice",
		Items:       testItems(),
		Payments:    cashPayment("6.00", "10.00"),
	})
	if err != nil {
		t.Fatalf("commit after rollback: %v", err)
	}
	if no != failedNo {
		t.Fatalf("got %s after rollback, want %s", no, failedNo)
	}
}

func TestHoldThenPayTotalInvariance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	no, err := s.HoldSale(ctx, domain.HoldSaleRequest{
		CustomerName: "Mdm Tan",
		CashierName:  "alice",
		Items:        testItems(),
	})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	held, err := s.GetReceipt(ctx, no)
	if err != nil {
		t.Fatalf("get held: %v", err)
	}
	if held.Status != domain.ReceiptStatusUnpaid {
		t.Fatalf("held status = %s, want UNPAID", held.Status)
	}
	if !held.GrandTotal.Equal(dec("6.00")) {
		t.Fatalf("held grand total = %s, want 6.00", held.GrandTotal)
	}
	if len(held.Items) != 2 {
		t.Fatalf("held items = %d, want 2", len(held.Items))
	}
	if held.Items[0].LineNo != 1 || held.Items[1].LineNo != 2 {
		t.Fatalf("line numbers = %d,%d, want 1,2", held.Items[0].LineNo, held.Items[1].LineNo)
	}
	if !held.Items[0].LineTotal.Equal(dec("3.00")) {
		t.Fatalf("line 1 total = %s, want 3.00", held.Items[0].LineTotal)
	}

	payNo, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{
		ReceiptNo: no,
		Payments:  cashPayment("6.00", "10.00"),
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if payNo != no {
		t.Fatalf("settle returned %s, want %s", payNo, no)
	}

	paid, err := s.GetReceipt(ctx, no)
	if err != nil {
		t.Fatalf("get paid: %v", err)
	}
	if paid.Status != domain.ReceiptStatusPaid {
		t.Fatalf("status = %s, want PAID", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatalf("paid_at not stamped")
	}
	if len(paid.Items) != 2 {
		t.Fatalf("settling re-wrote items: got %d, want 2", len(paid.Items))
	}

	sum := decimal.Zero
	for _, p := range paid.Payments {
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(dec("6.00")) {
		t.Fatalf("payment amounts sum = %s, want 6.00", sum)
	}
	if !paid.Payments[0].Tendered.Equal(dec("10.00")) {
		t.Fatalf("tendered = %s, want 10.00", paid.Payments[0].Tendered)
	}
}

func TestSettleByReceiptID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	no, err := s.HoldSale(ctx, domain.HoldSaleRequest{CashierName: "alice", Items: testItems()})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	held, err := s.GetReceipt(ctx, no)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	payNo, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{
		ReceiptID: held.ID,
		Payments:  cashPayment("6.00", "6.00"),
	})
	if err != nil {
		t.Fatalf("settle by id: %v", err)
	}
	if payNo != no {
		t.Fatalf("settle returned %s, want %s", payNo, no)
	}
}

func TestCatalogEditsDoNotRewriteReceipts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateProduct(ctx, domain.Product{
		Code: "TEH-C", Name: "Teh C", SellingPrice: dec("1.60"), Unit: "cup",
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	no, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{
		CashierName: "alice",
		Items: []domain.SaleItem{
			{ProductCode: "TEH-C", ProductName: "Teh C", Qty: dec("1"), UnitPrice: dec("1.60")},
		},
		Payments: cashPayment("1.60", "2.00"),
	})
	if err != nil {
		t.Fatalf("sale: %v", err)
	}

	if _, err := s.UpdateProduct(ctx, domain.Product{
		Code: "TEH-C", Name: "Teh C Siew Dai", SellingPrice: dec("1.90"), Unit: "cup",
	}); err != nil {
		t.Fatalf("update product: %v", err)
	}

	r, err := s.GetReceipt(ctx, no)
	if err != nil {
		t.Fatalf("get receipt: %v", err)
	}
	if r.Items[0].ProductName != "Teh C" {
		t.Fatalf("snapshot name changed to %q", r.Items[0].ProductName)
	}
	if !r.Items[0].UnitPrice.Equal(dec("1.60")) {
		t.Fatalf("snapshot price changed to %s", r.Items[0].UnitPrice)
	}
}

func TestVoidIsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	no, err := s.HoldSale(ctx, domain.HoldSaleRequest{CashierName: "alice", Items: testItems()})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	voided, err := s.VoidReceipt(ctx, 0, no, "customer left")
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if !voided {
		t.Fatalf("void of UNPAID receipt reported no rows")
	}

	r, err := s.GetReceipt(ctx, no)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Status != domain.ReceiptStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", r.Status)
	}
	if r.CancelledAt == nil {
		t.Fatalf("cancelled_at not stamped")
	}
	if r.Note != "customer left" {
		t.Fatalf("note = %q", r.Note)
	}

	// Settling a cancelled receipt must fail, and the receipt must stay
	// cancelled with no payment rows.
	if _, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{
		ReceiptNo: no,
		Payments:  cashPayment("6.00", "6.00"),
	}); !errors.Is(err, store.ErrReceiptFinalized) {
		t.Fatalf("settle after void: got %v, want ErrReceiptFinalized", err)
	}

	again, err := s.VoidReceipt(ctx, 0, no, "")
	if err != nil {
		t.Fatalf("second void: %v", err)
	}
	if again {
		t.Fatalf("second void reported rows affected")
	}
}

func TestVoidPaidReceiptIsRefused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	no, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{
		CashierName: "alice",
		Items:       testItems(),
		Payments:    cashPayment("6.00", "6.00"),
	})
	if err != nil {
		t.Fatalf("sale: %v", err)
	}

	voided, err := s.VoidReceipt(ctx, 0, no, "")
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if voided {
		t.Fatalf("voided a PAID receipt")
	}

	if _, err := s.VoidReceipt(ctx, 0, "", ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("void without identifier: got %v, want ErrInvalidInput", err)
	}
}

func TestReceiptLookupIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	no, err := s.HoldSale(ctx, domain.HoldSaleRequest{CashierName: "alice", Items: testItems()})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	// Numbers are digits and a dash today, but lookups go through UPPER()
	// for databases where hand-entered suffixes exist.
	if _, err := s.GetReceipt(ctx, " "+no+" "); err != nil {
		t.Fatalf("get with padding: %v", err)
	}
	if _, err := s.GetReceipt(ctx, "NOPE-0001"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get unknown: got %v, want ErrNotFound", err)
	}
}

func TestListAndSearchUnpaid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, customer := range []string{"Mdm Tan", "Mr Lim", "Tania"} {
		if _, err := s.HoldSale(ctx, domain.HoldSaleRequest{
			CustomerName: customer, CashierName: "alice", Items: testItems(),
		}); err != nil {
			t.Fatalf("hold for %s: %v", customer, err)
		}
	}
	paidNo, err := s.CommitPaidSale(ctx, domain.PaidSaleRequest{
		CashierName: "alice", Items: testItems(), Payments: cashPayment("6.00", "6.00"),
	})
	if err != nil {
		t.Fatalf("paid sale: %v", err)
	}

	unpaid, err := s.ListUnpaidReceipts(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unpaid) != 3 {
		t.Fatalf("unpaid count = %d, want 3", len(unpaid))
	}
	for _, r := range unpaid {
		if r.ReceiptNo == paidNo {
			t.Fatalf("paid receipt %s in unpaid list", paidNo)
		}
	}

	matches, err := s.SearchUnpaidReceipts(ctx, "tan", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("search 'tan' = %d matches, want 2 (Mdm Tan, Tania)", len(matches))
	}

	limited, err := s.ListUnpaidReceipts(ctx, 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited count = %d, want 2", len(limited))
	}
}

func TestDayBoundaryResetsCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 0, 1, 0, 0, time.UTC)

	var nos []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, day := range []time.Time{day1, day1, day2} {
			no, err := s.nextReceiptNo(ctx, tx, day)
			if err != nil {
				return err
			}
			nos = append(nos, no)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("issue numbers: %v", err)
	}

	want := []string{"20260314-0001", "20260314-0002", "20260315-0001"}
	for i := range want {
		if nos[i] != want[i] {
			t.Fatalf("number %d = %s, want %s", i, nos[i], want[i])
		}
	}
}

func TestCounterOverflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if _, err := s.db.Exec(`INSERT INTO receipt_counters (date, counter) VALUES ('20260314', 9999)`); err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := s.nextReceiptNo(ctx, tx, day)
		return err
	})
	if !errors.Is(err, store.ErrCounterExhausted) {
		t.Fatalf("got %v, want ErrCounterExhausted", err)
	}
}

func TestCashOutflows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateCashOutflow(ctx, domain.CashOutflow{
		Type: domain.OutflowRefund, Amount: decimal.Zero,
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("zero amount: got %v, want ErrInvalidInput", err)
	}
	if _, err := s.CreateCashOutflow(ctx, domain.CashOutflow{
		Type: "PETTY_CASH", Amount: dec("5.00"),
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("unknown type: got %v, want ErrInvalidInput", err)
	}

	created, err := s.CreateCashOutflow(ctx, domain.CashOutflow{
		Type: domain.OutflowVendor, Amount: dec("25.00"), ActorName: "alice", Note: "ice supplier",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("outflow id not assigned")
	}

	listed, err := s.ListCashOutflows(ctx, time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("list = %+v, want the created outflow", listed)
	}
	if listed[0].ActorName != "alice" || listed[0].Note != "ice supplier" {
		t.Fatalf("outflow fields lost: %+v", listed[0])
	}

	none, err := s.ListCashOutflows(ctx, time.Now().UTC().Add(time.Hour), time.Time{}, 0)
	if err != nil {
		t.Fatalf("list windowed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("future window returned %d outflows", len(none))
	}
}
