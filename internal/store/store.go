package store

import (
	"context"
	"errors"
	"time"

	"merlionpos/internal/domain"
)

var (
	// ErrNotFound is returned when a receipt, product, or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks validation failures: bad amounts, missing
	// identifiers, malformed fields. No transaction is opened for these.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyCart: holding or selling nothing is an error, not a no-op.
	ErrEmptyCart = errors.New("no items to commit")

	// ErrEmptyPayments: a paid sale needs at least one tender row.
	ErrEmptyPayments = errors.New("no payment rows")

	// ErrReceiptFinalized is returned when settling targets a receipt that
	// does not exist or is no longer UNPAID.
	ErrReceiptFinalized = errors.New("receipt not found or already finalized")

	// ErrCounterExhausted: the per-day receipt counter reached 9999.
	ErrCounterExhausted = errors.New("daily receipt counter exhausted")

	// ErrSchemaUnusable indicates the live database lacks a recognizable
	// link or key column; a deployment/migration mismatch, fatal for writes.
	ErrSchemaUnusable = errors.New("receipt schema unusable")
)

type Repository interface {
	HoldSale(ctx context.Context, req domain.HoldSaleRequest) (string, error)
	CommitPaidSale(ctx context.Context, req domain.PaidSaleRequest) (string, error)
	ListUnpaidReceipts(ctx context.Context, limit int) ([]domain.Receipt, error)
	SearchUnpaidReceipts(ctx context.Context, customer string, limit int) ([]domain.Receipt, error)
	VoidReceipt(ctx context.Context, receiptID int64, receiptNo string, note string) (bool, error)
	GetReceipt(ctx context.Context, receiptNo string) (*domain.Receipt, error)

	CreateCashOutflow(ctx context.Context, outflow domain.CashOutflow) (*domain.CashOutflow, error)
	ListCashOutflows(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.CashOutflow, error)

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByCode(ctx context.Context, code string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, code string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
