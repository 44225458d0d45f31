package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"merlionpos/internal/cache"
	"merlionpos/internal/domain"
	"merlionpos/internal/store"
	"merlionpos/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.NewMemoryProductCache(), CompanyInfo{
		Name:  "Merlion Trading Pte Ltd",
		Width: 40,
	})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "alice", Role: "cashier"})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "boss", Role: "admin"})
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func kopitiamCart() []domain.SaleItem {
	return []domain.SaleItem{
		{ProductCode: "KOPI-O", ProductName: "Kopi O", Qty: dec("2"), Unit: "cup", UnitPrice: dec("1.50")},
		{ProductCode: "KAYA-TOAST", ProductName: "Kaya Toast Set", Qty: dec("1"), Unit: "set", UnitPrice: dec("3.00")},
	}
}

func TestHoldSaleRecordsActorAsCashier(t *testing.T) {
	svc := newTestService()

	resp, err := svc.HoldSale(cashierCtx(), domain.HoldSaleRequest{
		CustomerName: "Mdm Tan",
		Items:        kopitiamCart(),
	})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	r, err := svc.GetReceipt(context.Background(), resp.ReceiptNo)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.CashierName != "alice" {
		t.Fatalf("cashier = %q, want alice from actor", r.CashierName)
	}
}

func TestHoldSaleValidation(t *testing.T) {
	svc := newTestService()

	if _, err := svc.HoldSale(cashierCtx(), domain.HoldSaleRequest{}); !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("empty cart: got %v, want ErrEmptyCart", err)
	}

	_, err := svc.HoldSale(cashierCtx(), domain.HoldSaleRequest{
		Items: []domain.SaleItem{{ProductName: "Kopi O", Qty: dec("0"), UnitPrice: dec("1.50")}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("zero qty: got %v, want ErrInvalidInput", err)
	}

	_, err = svc.HoldSale(cashierCtx(), domain.HoldSaleRequest{
		Items: []domain.SaleItem{{ProductName: "Kopi O", Qty: dec("1"), UnitPrice: dec("-1")}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("negative price: got %v, want ErrInvalidInput", err)
	}
}

func TestCommitPaidSalePaymentChecks(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	_, err := svc.CommitPaidSale(ctx, domain.PaidSaleRequest{
		Items:    kopitiamCart(),
		Payments: []domain.PaymentRow{{Type: "CHEQUE", Amount: dec("6.00")}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("unknown tender type: got %v, want ErrInvalidInput", err)
	}

	_, err = svc.CommitPaidSale(ctx, domain.PaidSaleRequest{
		Items:    kopitiamCart(),
		Payments: []domain.PaymentRow{{Type: domain.PaymentTypeCash, Amount: dec("6.00"), Tendered: dec("5.00")}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("tendered below amount: got %v, want ErrInvalidInput", err)
	}

	// Allocations must cover the cart total exactly.
	_, err = svc.CommitPaidSale(ctx, domain.PaidSaleRequest{
		Items:    kopitiamCart(),
		Payments: []domain.PaymentRow{{Type: domain.PaymentTypeNets, Amount: dec("5.00")}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("short allocation: got %v, want ErrInvalidInput", err)
	}

	resp, err := svc.CommitPaidSale(ctx, domain.PaidSaleRequest{
		Items: kopitiamCart(),
		Payments: []domain.PaymentRow{
			{Type: domain.PaymentTypeNets, Amount: dec("4.00")},
			{Type: domain.PaymentTypeCash, Amount: dec("2.00"), Tendered: dec("10.00")},
		},
	})
	if err != nil {
		t.Fatalf("split tender: %v", err)
	}
	if resp.Status != domain.ReceiptStatusPaid {
		t.Fatalf("status = %s, want PAID", resp.Status)
	}
}

func TestSettleHeldReceiptChecksStoredTotal(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	held, err := svc.HoldSale(ctx, domain.HoldSaleRequest{Items: kopitiamCart()})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	// The held receipt's stored total is 6.00; a 5.00 allocation is refused
	// before any transaction opens.
	_, err = svc.CommitPaidSale(ctx, domain.PaidSaleRequest{
		ReceiptNo: held.ReceiptNo,
		Payments:  []domain.PaymentRow{{Type: domain.PaymentTypePayNow, Amount: dec("5.00")}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("short settle: got %v, want ErrInvalidInput", err)
	}

	if _, err := svc.CommitPaidSale(ctx, domain.PaidSaleRequest{
		ReceiptNo: held.ReceiptNo,
		Payments:  []domain.PaymentRow{{Type: domain.PaymentTypePayNow, Amount: dec("6.00")}},
	}); err != nil {
		t.Fatalf("settle: %v", err)
	}
}

func TestVoidThenSettle(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	held, err := svc.HoldSale(ctx, domain.HoldSaleRequest{Items: kopitiamCart()})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	resp, err := svc.VoidReceipt(ctx, domain.VoidReceiptRequest{ReceiptNo: held.ReceiptNo})
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if !resp.Voided {
		t.Fatalf("void reported no effect")
	}

	_, err = svc.CommitPaidSale(ctx, domain.PaidSaleRequest{
		ReceiptNo: held.ReceiptNo,
		Payments:  []domain.PaymentRow{{Type: domain.PaymentTypeCash, Amount: dec("6.00")}},
	})
	if !errors.Is(err, store.ErrReceiptFinalized) {
		t.Fatalf("settle after void: got %v, want ErrReceiptFinalized", err)
	}
}

func TestListHeldReceiptsFilters(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	for _, customer := range []string{"Mdm Tan", "Mr Lim"} {
		if _, err := svc.HoldSale(ctx, domain.HoldSaleRequest{
			CustomerName: customer, Items: kopitiamCart(),
		}); err != nil {
			t.Fatalf("hold: %v", err)
		}
	}

	all, err := svc.ListHeldReceipts(ctx, "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("held = %d, want 2", len(all))
	}

	tan, err := svc.ListHeldReceipts(ctx, "tan", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(tan) != 1 || tan[0].CustomerName != "Mdm Tan" {
		t.Fatalf("search 'tan' = %+v, want Mdm Tan", tan)
	}
}

func TestProductCRUDRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(cashierCtx(), domain.Product{Code: "MILO", Name: "Milo"})
	if err == nil || !strings.Contains(err.Error(), "admin role required") {
		t.Fatalf("cashier create: got %v, want admin role error", err)
	}

	created, err := svc.CreateProduct(adminCtx(), domain.Product{
		Code: "milo", Name: "Milo Dinosaur", SellingPrice: dec("3.20"),
	})
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if created.Code != "MILO" {
		t.Fatalf("code = %q, want uppercased MILO", created.Code)
	}
}

func TestGetProductReadsThroughCache(t *testing.T) {
	svc := newTestService()

	first, err := svc.GetProduct(cashierCtx(), "KOPI-O")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}

	// Change the catalog behind the cache's back; the cached snapshot is
	// served until invalidated by a catalog write through the service.
	newName := "Kopi O Kosong"
	if _, err := svc.repo.UpdateProduct(context.Background(), domain.Product{
		Code: "KOPI-O", Name: newName, SellingPrice: first.SellingPrice,
	}); err != nil {
		t.Fatalf("backdoor update: %v", err)
	}

	second, err := svc.GetProduct(cashierCtx(), "KOPI-O")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if second.Name != first.Name {
		t.Fatalf("cache bypassed: got %q, want cached %q", second.Name, first.Name)
	}

	if _, err := svc.UpdateProduct(adminCtx(), "KOPI-O", domain.ProductUpdateRequest{Name: &newName}); err != nil {
		t.Fatalf("service update: %v", err)
	}
	third, err := svc.GetProduct(cashierCtx(), "KOPI-O")
	if err != nil {
		t.Fatalf("third get: %v", err)
	}
	if third.Name != newName {
		t.Fatalf("invalidation missed: got %q, want %q", third.Name, newName)
	}
}

func TestRecordCashOutflowUsesActor(t *testing.T) {
	svc := newTestService()

	outflow, err := svc.RecordCashOutflow(cashierCtx(), domain.CashOutflowRequest{
		Type:   domain.OutflowRefund,
		Amount: dec("4.50"),
		Note:   "refund kopi",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if outflow.ActorName != "alice" {
		t.Fatalf("actor = %q, want alice", outflow.ActorName)
	}

	_, err = svc.RecordCashOutflow(cashierCtx(), domain.CashOutflowRequest{
		Type: domain.OutflowVendor, Amount: decimal.Zero,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("zero outflow: got %v, want ErrInvalidInput", err)
	}
}

func TestBuildPrintJob(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	resp, err := svc.CommitPaidSale(ctx, domain.PaidSaleRequest{
		Items: kopitiamCart(),
		Payments: []domain.PaymentRow{
			{Type: domain.PaymentTypeCash, Amount: dec("6.00"), Tendered: dec("10.00")},
		},
	})
	if err != nil {
		t.Fatalf("sale: %v", err)
	}

	job, err := svc.BuildPrintJob(ctx, resp.ReceiptNo)
	if err != nil {
		t.Fatalf("print job: %v", err)
	}
	if job.ReceiptNo != resp.ReceiptNo {
		t.Fatalf("job receipt = %s, want %s", job.ReceiptNo, resp.ReceiptNo)
	}
	if job.EscposBase64 == "" {
		t.Fatalf("escpos stream empty")
	}
	if !strings.Contains(job.PreviewText, "Kaya Toast Set") {
		t.Fatalf("preview missing item line:\n%s", job.PreviewText)
	}

	if _, err := svc.BuildPrintJob(ctx, "NOPE-0001"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("print unknown receipt: got %v, want ErrNotFound", err)
	}
}
