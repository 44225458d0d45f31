package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"merlionpos/internal/cache"
	"merlionpos/internal/domain"
	"merlionpos/internal/escpos"
	"merlionpos/internal/store"
	"merlionpos/pkg/logger"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// CompanyInfo is printed on receipt headers.
type CompanyInfo struct {
	Name    string
	Address string
	Width   int
}

const productCacheTTL = 10 * time.Minute

type Service struct {
	repo    store.Repository
	cache   cache.ProductCache
	company CompanyInfo
}

func New(repo store.Repository, productCache cache.ProductCache, company CompanyInfo) *Service {
	if productCache == nil {
		productCache = cache.NoopProductCache{}
	}
	if company.Name == "" {
		company.Name = "Merlion POS"
	}
	if company.Width < 20 {
		company.Width = 40
	}
	return &Service{repo: repo, cache: productCache, company: company}
}

var paymentTypes = map[string]bool{
	domain.PaymentTypeCash:   true,
	domain.PaymentTypeNets:   true,
	domain.PaymentTypePayNow: true,
	domain.PaymentTypeOther:  true,
}

func validateItems(items []domain.SaleItem) error {
	if len(items) == 0 {
		return store.ErrEmptyCart
	}
	for i, item := range items {
		if strings.TrimSpace(item.ProductName) == "" {
			return fmt.Errorf("%w: item %d missing product name", store.ErrInvalidInput, i+1)
		}
		if !item.Qty.IsPositive() {
			return fmt.Errorf("%w: item %d qty must be positive", store.ErrInvalidInput, i+1)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d unit price negative", store.ErrInvalidInput, i+1)
		}
	}
	return nil
}

// validatePayments also normalizes tender types in place so the store writes
// the canonical uppercase values.
func validatePayments(payments []domain.PaymentRow) error {
	if len(payments) == 0 {
		return store.ErrEmptyPayments
	}
	for i := range payments {
		typ := strings.ToUpper(strings.TrimSpace(payments[i].Type))
		if !paymentTypes[typ] {
			return fmt.Errorf("%w: payment %d unknown type %q", store.ErrInvalidInput, i+1, payments[i].Type)
		}
		payments[i].Type = typ
		if !payments[i].Amount.IsPositive() {
			return fmt.Errorf("%w: payment %d amount must be positive", store.ErrInvalidInput, i+1)
		}
		if typ == domain.PaymentTypeCash && !payments[i].Tendered.IsZero() && payments[i].Tendered.LessThan(payments[i].Amount) {
			return fmt.Errorf("%w: payment %d cash tendered below amount", store.ErrInvalidInput, i+1)
		}
	}
	return nil
}

func itemsTotal(items []domain.SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		line := item.LineTotal
		if line.IsZero() {
			line = item.Qty.Mul(item.UnitPrice)
		}
		total = total.Add(line)
	}
	return total
}

func paymentsTotal(payments []domain.PaymentRow) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// HoldSale parks the cart as an UNPAID receipt with a real receipt number.
// The cashier name comes from the authenticated actor when the till does not
// send one.
func (s *Service) HoldSale(ctx context.Context, req domain.HoldSaleRequest) (domain.HoldSaleResponse, error) {
	if err := validateItems(req.Items); err != nil {
		return domain.HoldSaleResponse{}, err
	}
	if req.CashierName == "" {
		if actor, ok := ActorFromContext(ctx); ok {
			req.CashierName = actor.Username
		}
	}

	no, err := s.repo.HoldSale(ctx, req)
	if err != nil {
		return domain.HoldSaleResponse{}, err
	}
	return domain.HoldSaleResponse{ReceiptNo: no}, nil
}

// CommitPaidSale settles a sale. For a direct sale the items are required;
// for a held receipt only the identifier and payments. Payment allocations
// must cover the receipt total exactly.
func (s *Service) CommitPaidSale(ctx context.Context, req domain.PaidSaleRequest) (domain.PaidSaleResponse, error) {
	if err := validatePayments(req.Payments); err != nil {
		return domain.PaidSaleResponse{}, err
	}
	directSale := req.ReceiptID == 0 && strings.TrimSpace(req.ReceiptNo) == ""
	if directSale {
		if err := validateItems(req.Items); err != nil {
			return domain.PaidSaleResponse{}, err
		}
	}
	if req.CashierName == "" {
		if actor, ok := ActorFromContext(ctx); ok {
			req.CashierName = actor.Username
		}
	}

	expected := req.Total
	if expected.IsZero() {
		if directSale {
			expected = itemsTotal(req.Items)
		} else if no := strings.TrimSpace(req.ReceiptNo); no != "" {
			held, err := s.repo.GetReceipt(ctx, no)
			if err == nil {
				expected = held.GrandTotal
			}
		}
	}
	if !expected.IsZero() && !paymentsTotal(req.Payments).Equal(expected) {
		return domain.PaidSaleResponse{}, fmt.Errorf(
			"%w: payments %s do not cover total %s",
			store.ErrInvalidInput, paymentsTotal(req.Payments).StringFixed(2), expected.StringFixed(2))
	}

	no, err := s.repo.CommitPaidSale(ctx, req)
	if err != nil {
		return domain.PaidSaleResponse{}, err
	}
	return domain.PaidSaleResponse{ReceiptNo: no, Status: domain.ReceiptStatusPaid}, nil
}

// ListHeldReceipts returns open UNPAID receipts, optionally filtered by a
// case-insensitive customer name fragment.
func (s *Service) ListHeldReceipts(ctx context.Context, customer string, limit int) ([]domain.Receipt, error) {
	if strings.TrimSpace(customer) == "" {
		return s.repo.ListUnpaidReceipts(ctx, limit)
	}
	return s.repo.SearchUnpaidReceipts(ctx, customer, limit)
}

func (s *Service) VoidReceipt(ctx context.Context, req domain.VoidReceiptRequest) (domain.VoidReceiptResponse, error) {
	voided, err := s.repo.VoidReceipt(ctx, req.ReceiptID, req.ReceiptNo, req.Note)
	if err != nil {
		return domain.VoidReceiptResponse{}, err
	}
	if voided {
		actor, _ := ActorFromContext(ctx)
		logger.Info("receipt voided", "receipt_no", req.ReceiptNo, "receipt_id", req.ReceiptID, "actor", actor.Username)
	}
	return domain.VoidReceiptResponse{Voided: voided, ReceiptNo: req.ReceiptNo}, nil
}

func (s *Service) GetReceipt(ctx context.Context, receiptNo string) (*domain.Receipt, error) {
	return s.repo.GetReceipt(ctx, receiptNo)
}

// RecordCashOutflow books a drawer movement under the authenticated actor.
func (s *Service) RecordCashOutflow(ctx context.Context, req domain.CashOutflowRequest) (*domain.CashOutflow, error) {
	actor, _ := ActorFromContext(ctx)
	return s.repo.CreateCashOutflow(ctx, domain.CashOutflow{
		Type:      req.Type,
		Amount:    req.Amount,
		ActorName: actor.Username,
		Note:      req.Note,
	})
}

func (s *Service) ListCashOutflows(ctx context.Context, from, to time.Time, limit int) ([]domain.CashOutflow, error) {
	return s.repo.ListCashOutflows(ctx, from, to, limit)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// GetProduct reads through the product cache. Cache failures are logged and
// ignored; the catalog is the source of truth.
func (s *Service) GetProduct(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if cached, ok, err := s.cache.Get(ctx, code); err != nil {
		logger.Warn("product cache read failed", "code", code, "err", err)
	} else if ok {
		return cached, nil
	}

	product, err := s.repo.GetProductByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, product, productCacheTTL); err != nil {
		logger.Warn("product cache write failed", "code", code, "err", err)
	}
	return product, nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("%w: admin role required", store.ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	product.Code = strings.ToUpper(strings.TrimSpace(product.Code))
	product.Name = strings.TrimSpace(product.Name)
	if product.SellingPrice.IsNegative() || product.CostPrice.IsNegative() {
		return nil, fmt.Errorf("%w: prices must not be negative", store.ErrInvalidInput)
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.invalidateProduct(ctx, created.Code)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, code string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	existing, err := s.repo.GetProductByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: product name required", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Supplier != nil {
		updated.Supplier = strings.TrimSpace(*req.Supplier)
	}
	if req.SellingPrice != nil {
		if req.SellingPrice.IsNegative() {
			return nil, fmt.Errorf("%w: selling price must not be negative", store.ErrInvalidInput)
		}
		updated.SellingPrice = *req.SellingPrice
	}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return nil, fmt.Errorf("%w: cost price must not be negative", store.ErrInvalidInput)
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.Unit != nil {
		updated.Unit = strings.TrimSpace(*req.Unit)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.invalidateProduct(ctx, saved.Code)
	return saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, code string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := s.repo.DeleteProduct(ctx, code); err != nil {
		return err
	}
	s.invalidateProduct(ctx, code)
	return nil
}

func (s *Service) invalidateProduct(ctx context.Context, code string) {
	if err := s.cache.Invalidate(ctx, code); err != nil {
		logger.Warn("product cache invalidation failed", "code", code, "err", err)
	}
}

// CreateCashier registers a till account with a bcrypt password hash.
func (s *Service) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	if req.Username == "" || len(req.Password) < 6 {
		return fmt.Errorf("%w: username and a password of 6+ chars required", store.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.CreateUser(ctx, domain.UserAccount{
		Username:      req.Username,
		Password:      string(hash),
		RecoveryEmail: req.RecoveryEmail,
		Role:          "cashier",
		Active:        true,
	})
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

// BuildPrintJob renders a receipt both as fixed-width preview text and as an
// ESC/POS stream for the printer bridge.
func (s *Service) BuildPrintJob(ctx context.Context, receiptNo string) (domain.PrintJob, error) {
	receipt, err := s.repo.GetReceipt(ctx, receiptNo)
	if err != nil {
		return domain.PrintJob{}, err
	}

	text := RenderReceiptText(receipt, s.company)

	b := escpos.NewBuilder(s.company.Width)
	b.Align(escpos.AlignCenter).Bold(true).Line(s.company.Name).Bold(false)
	if s.company.Address != "" {
		b.Line(s.company.Address)
	}
	b.Align(escpos.AlignLeft)
	for _, line := range strings.Split(text, "\n") {
		b.Line(line)
	}
	b.Feed(3).Cut()

	return domain.PrintJob{
		ReceiptNo:    receipt.ReceiptNo,
		PreviewText:  text,
		EscposBase64: base64.StdEncoding.EncodeToString(b.Bytes()),
		FileName:     fmt.Sprintf("receipt-%s.bin", receipt.ReceiptNo),
	}, nil
}

// OpenCashDrawer returns the drawer kick command for the bridge. Nothing is
// persisted; the till decides when a no-sale open is allowed.
func (s *Service) OpenCashDrawer(_ context.Context, terminalID string) domain.CashDrawerOpenResponse {
	return domain.CashDrawerOpenResponse{
		TerminalID:    terminalID,
		CommandBase64: base64.StdEncoding.EncodeToString(escpos.DrawerKick()),
		Note:          "send command to printer-attached drawer",
	}
}
