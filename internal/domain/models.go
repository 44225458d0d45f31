package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt statuses. Transitions are one-directional: UNPAID -> PAID,
// UNPAID -> CANCELLED. A PAID or CANCELLED receipt is never mutated again.
const (
	ReceiptStatusUnpaid    = "UNPAID"
	ReceiptStatusPaid      = "PAID"
	ReceiptStatusCancelled = "CANCELLED"
)

const (
	PaymentTypeCash   = "CASH"
	PaymentTypeNets   = "NETS"
	PaymentTypePayNow = "PAYNOW"
	PaymentTypeOther  = "OTHER"
)

const (
	OutflowRefund      = "REFUND_OUT"
	OutflowVendor      = "VENDOR_OUT"
	OutflowCashInOther = "CASH_IN_OTHER"
)

type Receipt struct {
	ID           int64            `json:"id"`
	ReceiptNo    string           `json:"receipt_no"`
	CustomerName string           `json:"customer_name,omitempty"`
	CashierName  string           `json:"cashier_name"`
	Status       string           `json:"status"`
	GrandTotal   decimal.Decimal  `json:"grand_total"`
	CreatedAt    time.Time        `json:"created_at"`
	PaidAt       *time.Time       `json:"paid_at,omitempty"`
	CancelledAt  *time.Time       `json:"cancelled_at,omitempty"`
	Note         string           `json:"note,omitempty"`
	Items        []ReceiptItem    `json:"items,omitempty"`
	Payments     []ReceiptPayment `json:"payments,omitempty"`
}

// ReceiptItem is a line snapshot: the product's code, name, and price are
// copied at sale time and never follow later catalog edits.
type ReceiptItem struct {
	LineNo      int             `json:"line_no"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category,omitempty"`
	Qty         decimal.Decimal `json:"qty"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type ReceiptPayment struct {
	Type      string          `json:"payment_type"`
	Amount    decimal.Decimal `json:"amount"`
	Tendered  decimal.Decimal `json:"tendered"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaleItem is one cart line handed over by the till when a sale is held or
// paid. LineTotal may be left zero, in which case it is derived as qty * price.
type SaleItem struct {
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category,omitempty"`
	Qty         decimal.Decimal `json:"qty"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total,omitempty"`
}

// PaymentRow is one tender record: Amount is what was applied against the
// receipt total, Tendered what the customer handed over. For cash the two may
// differ; change due is Tendered - Amount and is never persisted.
type PaymentRow struct {
	Type     string          `json:"payment_type"`
	Amount   decimal.Decimal `json:"amount"`
	Tendered decimal.Decimal `json:"tendered"`
}

type HoldSaleRequest struct {
	CustomerName string     `json:"customer_name"`
	Note         string     `json:"note"`
	CashierName  string     `json:"cashier_name,omitempty"`
	Items        []SaleItem `json:"items"`
}

type HoldSaleResponse struct {
	ReceiptNo string `json:"receipt_no"`
}

// PaidSaleRequest settles a sale. ReceiptID/ReceiptNo identify a previously
// held receipt; both zero-valued means a brand-new direct sale, for which
// Items must be supplied.
type PaidSaleRequest struct {
	ReceiptID    int64           `json:"receipt_id,omitempty"`
	ReceiptNo    string          `json:"receipt_no,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	CashierName  string          `json:"cashier_name,omitempty"`
	Items        []SaleItem      `json:"items,omitempty"`
	Payments     []PaymentRow    `json:"payments"`
	Total        decimal.Decimal `json:"total"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
}

type PaidSaleResponse struct {
	ReceiptNo string `json:"receipt_no"`
	Status    string `json:"status"`
}

type VoidReceiptRequest struct {
	ReceiptID int64  `json:"receipt_id,omitempty"`
	ReceiptNo string `json:"receipt_no,omitempty"`
	Note      string `json:"note,omitempty"`
}

type VoidReceiptResponse struct {
	Voided    bool   `json:"voided"`
	ReceiptNo string `json:"receipt_no,omitempty"`
}

// CashOutflow records cash leaving (or exceptionally entering) the register
// outside the receipt flow. It is deliberately not linked to any receipt.
type CashOutflow struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	ActorName string          `json:"actor_name"`
	Note      string          `json:"note,omitempty"`
}

type CashOutflowRequest struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type Product struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	Supplier     string          `json:"supplier,omitempty"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	Unit         string          `json:"unit,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ProductUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Supplier     *string          `json:"supplier,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	Unit         *string          `json:"unit,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username      string
	Password      string
	RecoveryEmail string
	Role          string
	Active        bool
	CreatedAt     time.Time
}

type CashierCreateRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	RecoveryEmail string `json:"recovery_email,omitempty"`
}

type PrintJob struct {
	ReceiptNo    string `json:"receipt_no"`
	PreviewText  string `json:"preview_text"`
	EscposBase64 string `json:"escpos_base64"`
	FileName     string `json:"file_name"`
}

type CashDrawerOpenResponse struct {
	TerminalID    string `json:"terminal_id"`
	CommandBase64 string `json:"command_base64"`
	Note          string `json:"note"`
}
