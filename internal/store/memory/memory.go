// Package memory holds a mutex-guarded in-process Repository. It backs local
// development without a database file and the service layer tests. Semantics
// mirror the sqlite store, including numbering and status transitions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"merlionpos/internal/domain"
	"merlionpos/internal/store"
	"merlionpos/internal/xid"
)

const maxDailyReceipts = 9999

type Store struct {
	mu       sync.Mutex
	nextID   int64
	counters map[string]int
	receipts []domain.Receipt
	outflows []domain.CashOutflow
	products map[string]domain.Product
	users    map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		counters: make(map[string]int),
		products: make(map[string]domain.Product),
		users:    make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with a small catalog so the server is
// usable out of the box when no database path is configured.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, p := range []domain.Product{
		{Code: "KOPI-O", Name: "Kopi O", Category: "Drinks", SellingPrice: decimal.NewFromFloat(1.40), Unit: "cup", UpdatedAt: now},
		{Code: "TEH-C", Name: "Teh C", Category: "Drinks", SellingPrice: decimal.NewFromFloat(1.60), Unit: "cup", UpdatedAt: now},
		{Code: "KAYA-TOAST", Name: "Kaya Toast Set", Category: "Food", SellingPrice: decimal.NewFromFloat(3.80), Unit: "set", UpdatedAt: now},
		{Code: "MEE-SIAM", Name: "Mee Siam", Category: "Food", SellingPrice: decimal.NewFromFloat(4.50), Unit: "plate", UpdatedAt: now},
	} {
		s.products[p.Code] = p
	}
	return s
}

func (s *Store) nextReceiptNo(day time.Time) (string, error) {
	date := day.UTC().Format("20060102")
	counter := s.counters[date] + 1
	if counter > maxDailyReceipts {
		return "", fmt.Errorf("%w: %s", store.ErrCounterExhausted, date)
	}
	s.counters[date] = counter
	return fmt.Sprintf("%s-%04d", date, counter), nil
}

func lineTotal(item domain.SaleItem) decimal.Decimal {
	if !item.LineTotal.IsZero() {
		return item.LineTotal
	}
	return item.Qty.Mul(item.UnitPrice)
}

func toReceiptItems(items []domain.SaleItem) []domain.ReceiptItem {
	out := make([]domain.ReceiptItem, 0, len(items))
	for i, item := range items {
		out = append(out, domain.ReceiptItem{
			LineNo:      i + 1,
			ProductCode: item.ProductCode,
			ProductName: item.ProductName,
			Category:    item.Category,
			Qty:         item.Qty,
			Unit:        item.Unit,
			UnitPrice:   item.UnitPrice,
			LineTotal:   lineTotal(item),
		})
	}
	return out
}

func (s *Store) HoldSale(_ context.Context, req domain.HoldSaleRequest) (string, error) {
	if len(req.Items) == 0 {
		return "", store.ErrEmptyCart
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	no, err := s.nextReceiptNo(now)
	if err != nil {
		return "", err
	}

	total := decimal.Zero
	for _, item := range req.Items {
		total = total.Add(lineTotal(item))
	}

	s.nextID++
	s.receipts = append(s.receipts, domain.Receipt{
		ID:           s.nextID,
		ReceiptNo:    no,
		CustomerName: req.CustomerName,
		CashierName:  req.CashierName,
		Status:       domain.ReceiptStatusUnpaid,
		GrandTotal:   total,
		CreatedAt:    now,
		Note:         req.Note,
		Items:        toReceiptItems(req.Items),
	})
	return no, nil
}

func (s *Store) CommitPaidSale(_ context.Context, req domain.PaidSaleRequest) (string, error) {
	if len(req.Payments) == 0 {
		return "", store.ErrEmptyPayments
	}
	directSale := req.ReceiptID == 0 && strings.TrimSpace(req.ReceiptNo) == ""
	if directSale && len(req.Items) == 0 {
		return "", store.ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	paidAt := now
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}

	payments := make([]domain.ReceiptPayment, 0, len(req.Payments))
	for _, p := range req.Payments {
		tendered := p.Tendered
		if tendered.IsZero() {
			tendered = p.Amount
		}
		payments = append(payments, domain.ReceiptPayment{
			Type:      p.Type,
			Amount:    p.Amount,
			Tendered:  tendered,
			CreatedAt: paidAt,
		})
	}

	if directSale {
		no, err := s.nextReceiptNo(now)
		if err != nil {
			return "", err
		}
		total := req.Total
		if total.IsZero() {
			for _, item := range req.Items {
				total = total.Add(lineTotal(item))
			}
		}
		s.nextID++
		s.receipts = append(s.receipts, domain.Receipt{
			ID:           s.nextID,
			ReceiptNo:    no,
			CustomerName: req.CustomerName,
			CashierName:  req.CashierName,
			Status:       domain.ReceiptStatusPaid,
			GrandTotal:   total,
			CreatedAt:    now,
			PaidAt:       &paidAt,
			Items:        toReceiptItems(req.Items),
			Payments:     payments,
		})
		return no, nil
	}

	idx := s.findReceipt(req.ReceiptID, req.ReceiptNo)
	if idx < 0 || s.receipts[idx].Status != domain.ReceiptStatusUnpaid {
		return "", store.ErrReceiptFinalized
	}
	r := &s.receipts[idx]
	r.Status = domain.ReceiptStatusPaid
	r.PaidAt = &paidAt
	r.Payments = payments
	return r.ReceiptNo, nil
}

func (s *Store) findReceipt(receiptID int64, receiptNo string) int {
	receiptNo = strings.TrimSpace(receiptNo)
	for i := range s.receipts {
		if receiptID != 0 && s.receipts[i].ID == receiptID {
			return i
		}
		if receiptID == 0 && strings.EqualFold(s.receipts[i].ReceiptNo, receiptNo) {
			return i
		}
	}
	return -1
}

func (s *Store) ListUnpaidReceipts(ctx context.Context, limit int) ([]domain.Receipt, error) {
	return s.SearchUnpaidReceipts(ctx, "", limit)
}

func (s *Store) SearchUnpaidReceipts(_ context.Context, customer string, limit int) ([]domain.Receipt, error) {
	if limit < 1 {
		limit = 100
	}
	needle := strings.ToLower(strings.TrimSpace(customer))

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Receipt, 0, limit)
	for _, r := range s.receipts {
		if r.Status != domain.ReceiptStatusUnpaid {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.CustomerName), needle) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ReceiptNo > out[j].ReceiptNo
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) VoidReceipt(_ context.Context, receiptID int64, receiptNo string, note string) (bool, error) {
	if receiptID == 0 && strings.TrimSpace(receiptNo) == "" {
		return false, fmt.Errorf("%w: receipt id or number required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findReceipt(receiptID, receiptNo)
	if idx < 0 || s.receipts[idx].Status != domain.ReceiptStatusUnpaid {
		return false, nil
	}
	now := time.Now().UTC()
	r := &s.receipts[idx]
	r.Status = domain.ReceiptStatusCancelled
	r.CancelledAt = &now
	if note != "" {
		r.Note = note
	}
	return true, nil
}

func (s *Store) GetReceipt(_ context.Context, receiptNo string) (*domain.Receipt, error) {
	receiptNo = strings.TrimSpace(receiptNo)
	if receiptNo == "" {
		return nil, fmt.Errorf("%w: receipt number required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findReceipt(0, receiptNo)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	r := s.receipts[idx]
	return &r, nil
}

var outflowTypes = map[string]bool{
	domain.OutflowRefund:      true,
	domain.OutflowVendor:      true,
	domain.OutflowCashInOther: true,
}

func (s *Store) CreateCashOutflow(_ context.Context, outflow domain.CashOutflow) (*domain.CashOutflow, error) {
	outflow.Type = strings.ToUpper(strings.TrimSpace(outflow.Type))
	if !outflowTypes[outflow.Type] {
		return nil, fmt.Errorf("%w: unknown outflow type %q", store.ErrInvalidInput, outflow.Type)
	}
	if outflow.Amount.IsZero() {
		return nil, fmt.Errorf("%w: outflow amount must be nonzero", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	outflow.ID = xid.New("out")
	outflow.CreatedAt = time.Now().UTC()
	s.outflows = append(s.outflows, outflow)
	return &outflow, nil
}

func (s *Store) ListCashOutflows(_ context.Context, from, to time.Time, limit int) ([]domain.CashOutflow, error) {
	if limit < 1 {
		limit = 200
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CashOutflow, 0, limit)
	for _, o := range s.outflows {
		if !from.IsZero() && o.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !o.CreatedAt.Before(to) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetProductByCode(_ context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: product code required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	product.Code = strings.TrimSpace(product.Code)
	if product.Code == "" || strings.TrimSpace(product.Name) == "" {
		return nil, fmt.Errorf("%w: product code and name required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.Code]; exists {
		return nil, fmt.Errorf("%w: product %s already exists", store.ErrInvalidInput, product.Code)
	}
	product.UpdatedAt = time.Now().UTC()
	s.products[product.Code] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	product.Code = strings.TrimSpace(product.Code)
	if product.Code == "" {
		return nil, fmt.Errorf("%w: product code required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.Code]; !exists {
		return nil, store.ErrNotFound
	}
	product.UpdatedAt = time.Now().UTC()
	s.products[product.Code] = product
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: product code required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[code]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, code)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	user.Username = strings.TrimSpace(strings.ToLower(user.Username))
	if user.Username == "" || user.Password == "" {
		return fmt.Errorf("%w: username and password required", store.ErrInvalidInput)
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return fmt.Errorf("%w: username %s taken", store.ErrInvalidInput, user.Username)
	}
	user.CreatedAt = time.Now().UTC()
	s.users[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		u.Password = ""
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.users[username] = u
	return nil
}
