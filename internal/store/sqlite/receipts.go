package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"merlionpos/internal/domain"
	"merlionpos/internal/store"
)

// maxDailyReceipts caps the per-day sequence; the number format reserves four
// digits and there is no rollover scheme beyond it.
const maxDailyReceipts = 9999

// nextReceiptNo issues the next number for the given day, formatted
// YYYYMMDD-NNNN. It must run inside the caller's transaction so the
// read-increment-write is atomic with the receipt insert that follows.
// Numbers are never reused: a cancelled receipt keeps its number, and a
// rolled-back commit returns the increment along with everything else.
func (s *Store) nextReceiptNo(ctx context.Context, q querier, day time.Time) (string, error) {
	date := day.UTC().Format("20060102")

	var counter int
	err := q.QueryRowContext(ctx, `SELECT counter FROM receipt_counters WHERE date = ?`, date).Scan(&counter)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		counter = 1
		if _, err := q.ExecContext(ctx, `INSERT INTO receipt_counters (date, counter) VALUES (?, ?)`, date, counter); err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	default:
		counter++
		if counter > maxDailyReceipts {
			return "", fmt.Errorf("%w: %s", store.ErrCounterExhausted, date)
		}
		if _, err := q.ExecContext(ctx, `UPDATE receipt_counters SET counter = ? WHERE date = ?`, counter, date); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%s-%04d", date, counter), nil
}

func lineTotal(item domain.SaleItem) decimal.Decimal {
	if !item.LineTotal.IsZero() {
		return item.LineTotal
	}
	return item.Qty.Mul(item.UnitPrice)
}

func grandTotal(items []domain.SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(lineTotal(item))
	}
	return total
}

// HoldSale commits the cart as an UNPAID receipt: header plus line items, no
// payment rows. Everything happens in one transaction; a failure part-way
// leaves no trace of the receipt, including the counter increment.
func (s *Store) HoldSale(ctx context.Context, req domain.HoldSaleRequest) (string, error) {
	if len(req.Items) == 0 {
		return "", store.ErrEmptyCart
	}

	var receiptNo string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		no, err := s.nextReceiptNo(ctx, tx, now)
		if err != nil {
			return err
		}

		rowID, err := s.insertReceiptHeader(ctx, tx, headerRow{
			no:        no,
			customer:  req.CustomerName,
			cashier:   req.CashierName,
			status:    domain.ReceiptStatusUnpaid,
			total:     grandTotal(req.Items),
			createdAt: now,
			note:      req.Note,
		})
		if err != nil {
			return err
		}
		if err := s.insertReceiptItems(ctx, tx, no, rowID, req.Items); err != nil {
			return err
		}

		receiptNo = no
		return nil
	})
	if err != nil {
		return "", err
	}
	return receiptNo, nil
}

// CommitPaidSale commits a direct sale as PAID in one step, or settles a
// previously held UNPAID receipt. Payment rows are written in both cases.
func (s *Store) CommitPaidSale(ctx context.Context, req domain.PaidSaleRequest) (string, error) {
	if len(req.Payments) == 0 {
		return "", store.ErrEmptyPayments
	}
	directSale := req.ReceiptID == 0 && strings.TrimSpace(req.ReceiptNo) == ""
	if directSale && len(req.Items) == 0 {
		return "", store.ErrEmptyCart
	}

	var receiptNo string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		paidAt := now
		if req.PaidAt != nil {
			paidAt = req.PaidAt.UTC()
		}

		var rowID int64
		if directSale {
			no, err := s.nextReceiptNo(ctx, tx, now)
			if err != nil {
				return err
			}
			total := req.Total
			if total.IsZero() {
				total = grandTotal(req.Items)
			}
			rowID, err = s.insertReceiptHeader(ctx, tx, headerRow{
				no:        no,
				customer:  req.CustomerName,
				cashier:   req.CashierName,
				status:    domain.ReceiptStatusPaid,
				total:     total,
				createdAt: now,
				paidAt:    &paidAt,
			})
			if err != nil {
				return err
			}
			if err := s.insertReceiptItems(ctx, tx, no, rowID, req.Items); err != nil {
				return err
			}
			receiptNo = no
		} else {
			id, no, err := s.lookupReceipt(ctx, tx, req.ReceiptID, req.ReceiptNo)
			if err != nil {
				return err
			}
			// Line items were written at hold time; only the status flips.
			if err := s.markReceiptPaid(ctx, tx, id, paidAt); err != nil {
				return err
			}
			rowID = id
			receiptNo = no
		}

		return s.insertReceiptPayments(ctx, tx, receiptNo, rowID, req.Payments, paidAt)
	})
	if err != nil {
		return "", err
	}
	return receiptNo, nil
}

type headerRow struct {
	no        string
	customer  string
	cashier   string
	status    string
	total     decimal.Decimal
	createdAt time.Time
	paidAt    *time.Time
	note      string
}

func (s *Store) insertReceiptHeader(ctx context.Context, q querier, h headerRow) (int64, error) {
	sch := s.schema.receipts
	values := map[string]any{
		sch.no:     h.no,
		sch.status: h.status,
	}
	if sch.total != "" {
		values[sch.total] = h.total
	}
	if sch.createdAt != "" {
		values[sch.createdAt] = fmtTime(h.createdAt)
	}
	if sch.customer != "" {
		values[sch.customer] = nullIfEmpty(h.customer)
	}
	if sch.cashier != "" {
		values[sch.cashier] = nullIfEmpty(h.cashier)
	}
	if sch.note != "" {
		values[sch.note] = nullIfEmpty(h.note)
	}
	if h.paidAt != nil && sch.paidAt != "" {
		values[sch.paidAt] = fmtTime(*h.paidAt)
	}
	return insertRow(ctx, q, sch.table, values)
}

// insertReceiptItems writes the cart lines in order, assigning 1-based line
// numbers. When the live table links by integer key and the caller has no row
// id, the id is resolved from the receipt number; refusing to write under a
// sentinel value beats writing orphaned rows.
func (s *Store) insertReceiptItems(ctx context.Context, q querier, receiptNo string, receiptRowID int64, items []domain.SaleItem) error {
	sch := s.schema.items

	var link any
	if sch.linkByRowID {
		if receiptRowID == 0 {
			var err error
			receiptRowID, err = s.resolveReceiptID(ctx, q, receiptNo)
			if err != nil {
				return err
			}
		}
		if receiptRowID == 0 {
			return fmt.Errorf("%w: no row id for receipt %s", store.ErrSchemaUnusable, receiptNo)
		}
		link = receiptRowID
	} else {
		link = receiptNo
	}

	for i, item := range items {
		values := map[string]any{sch.link: link}
		if sch.lineNo != "" {
			values[sch.lineNo] = i + 1
		}
		if sch.code != "" {
			values[sch.code] = item.ProductCode
		}
		if sch.name != "" {
			values[sch.name] = item.ProductName
		}
		if sch.category != "" {
			values[sch.category] = nullIfEmpty(item.Category)
		}
		if sch.qty != "" {
			values[sch.qty] = item.Qty
		}
		if sch.unit != "" {
			values[sch.unit] = nullIfEmpty(item.Unit)
		}
		if sch.price != "" {
			values[sch.price] = item.UnitPrice
		}
		if sch.lineTotal != "" {
			values[sch.lineTotal] = lineTotal(item)
		}
		if _, err := insertRow(ctx, q, sch.table, values); err != nil {
			return fmt.Errorf("insert receipt item %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) insertReceiptPayments(ctx context.Context, q querier, receiptNo string, receiptRowID int64, payments []domain.PaymentRow, at time.Time) error {
	sch := s.schema.payments

	var link any
	if sch.linkByRowID {
		if receiptRowID == 0 {
			var err error
			receiptRowID, err = s.resolveReceiptID(ctx, q, receiptNo)
			if err != nil {
				return err
			}
		}
		if receiptRowID == 0 {
			return fmt.Errorf("%w: no row id for receipt %s", store.ErrSchemaUnusable, receiptNo)
		}
		link = receiptRowID
	} else {
		link = receiptNo
	}

	for i, payment := range payments {
		tendered := payment.Tendered
		if tendered.IsZero() {
			tendered = payment.Amount
		}
		values := map[string]any{
			sch.link:   link,
			sch.ptype:  payment.Type,
			sch.amount: payment.Amount,
		}
		if sch.tendered != "" {
			values[sch.tendered] = tendered
		}
		if sch.createdAt != "" {
			values[sch.createdAt] = fmtTime(at)
		}
		if _, err := insertRow(ctx, q, sch.table, values); err != nil {
			return fmt.Errorf("insert receipt payment %d: %w", i+1, err)
		}
	}
	return nil
}

// resolveReceiptID maps a receipt number to its integer key, 0 when the
// number does not resolve.
func (s *Store) resolveReceiptID(ctx context.Context, q querier, receiptNo string) (int64, error) {
	sch := s.schema.receipts
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE UPPER(%s) = UPPER(?)`,
		sch.idColumn(), sch.table, sch.no,
	)
	var id int64
	err := q.QueryRowContext(ctx, query, receiptNo).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) lookupReceipt(ctx context.Context, q querier, receiptID int64, receiptNo string) (int64, string, error) {
	sch := s.schema.receipts

	var (
		query string
		arg   any
	)
	if receiptID != 0 {
		query = fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = ?`, sch.idColumn(), sch.no, sch.table, sch.idColumn())
		arg = receiptID
	} else {
		query = fmt.Sprintf(`SELECT %s, %s FROM %s WHERE UPPER(%s) = UPPER(?)`, sch.idColumn(), sch.no, sch.table, sch.no)
		arg = strings.TrimSpace(receiptNo)
	}

	var (
		id int64
		no string
	)
	err := q.QueryRowContext(ctx, query, arg).Scan(&id, &no)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", store.ErrReceiptFinalized
	}
	if err != nil {
		return 0, "", err
	}
	return id, no, nil
}

// markReceiptPaid flips UNPAID to PAID and stamps paid_at. The status guard
// in the WHERE clause doubles as the optimistic check: zero rows affected
// means the receipt was already settled or voided.
func (s *Store) markReceiptPaid(ctx context.Context, q querier, receiptID int64, paidAt time.Time) error {
	sch := s.schema.receipts

	sets := []string{fmt.Sprintf("%s = ?", sch.status)}
	args := []any{domain.ReceiptStatusPaid}
	if sch.paidAt != "" {
		sets = append(sets, fmt.Sprintf("%s = ?", sch.paidAt))
		args = append(args, fmtTime(paidAt))
	}

	query := fmt.Sprintf(
		`UPDATE %s SET %s WHERE %s = ? AND %s = ?`,
		sch.table, strings.Join(sets, ", "), sch.idColumn(), sch.status,
	)
	args = append(args, receiptID, domain.ReceiptStatusUnpaid)

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrReceiptFinalized
	}
	return nil
}

// VoidReceipt cancels a held receipt. Only UNPAID receipts are voidable
// through this path; a PAID receipt is immutable and must go through the
// refund flow instead. Returns whether a row was actually updated.
func (s *Store) VoidReceipt(ctx context.Context, receiptID int64, receiptNo string, note string) (bool, error) {
	receiptNo = strings.TrimSpace(receiptNo)
	if receiptID == 0 && receiptNo == "" {
		return false, fmt.Errorf("%w: receipt id or number required", store.ErrInvalidInput)
	}
	sch := s.schema.receipts

	voided := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sets := []string{fmt.Sprintf("%s = ?", sch.status)}
		args := []any{domain.ReceiptStatusCancelled}
		if sch.cancelledAt != "" {
			sets = append(sets, fmt.Sprintf("%s = ?", sch.cancelledAt))
			args = append(args, fmtTime(time.Now().UTC()))
		}
		if note != "" && sch.note != "" {
			sets = append(sets, fmt.Sprintf("%s = ?", sch.note))
			args = append(args, note)
		}

		var where string
		if receiptID != 0 {
			where = fmt.Sprintf("%s = ?", sch.idColumn())
			args = append(args, receiptID)
		} else {
			where = fmt.Sprintf("UPPER(%s) = UPPER(?)", sch.no)
			args = append(args, receiptNo)
		}
		query := fmt.Sprintf(
			`UPDATE %s SET %s WHERE %s AND %s = ?`,
			sch.table, strings.Join(sets, ", "), where, sch.status,
		)
		args = append(args, domain.ReceiptStatusUnpaid)

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		voided = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return voided, nil
}

// receiptSelect builds the header projection with display aliases resolved
// against the live schema; absent optional columns read as empty/zero.
func (s *Store) receiptSelect() string {
	sch := s.schema.receipts
	text := func(col string) string {
		if col == "" {
			return "''"
		}
		return fmt.Sprintf("COALESCE(%s, '')", col)
	}
	num := func(col string) string {
		if col == "" {
			return "0"
		}
		return fmt.Sprintf("COALESCE(%s, 0)", col)
	}
	return strings.Join([]string{
		sch.idColumn(),
		sch.no,
		text(sch.customer),
		text(sch.cashier),
		sch.status,
		num(sch.total),
		text(sch.createdAt),
		text(sch.paidAt),
		text(sch.cancelledAt),
		text(sch.note),
	}, ", ")
}

func scanReceiptHeader(scan func(dest ...any) error) (domain.Receipt, error) {
	var (
		r                              domain.Receipt
		createdAt, paidAt, cancelledAt string
	)
	err := scan(
		&r.ID,
		&r.ReceiptNo,
		&r.CustomerName,
		&r.CashierName,
		&r.Status,
		&r.GrandTotal,
		&createdAt,
		&paidAt,
		&cancelledAt,
		&r.Note,
	)
	if err != nil {
		return domain.Receipt{}, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.PaidAt = parseTimePtr(paidAt)
	r.CancelledAt = parseTimePtr(cancelledAt)
	return r, nil
}

func (s *Store) ListUnpaidReceipts(ctx context.Context, limit int) ([]domain.Receipt, error) {
	return s.queryUnpaidReceipts(ctx, "", limit)
}

func (s *Store) SearchUnpaidReceipts(ctx context.Context, customer string, limit int) ([]domain.Receipt, error) {
	return s.queryUnpaidReceipts(ctx, strings.TrimSpace(customer), limit)
}

func (s *Store) queryUnpaidReceipts(ctx context.Context, customer string, limit int) ([]domain.Receipt, error) {
	if limit < 1 {
		limit = 100
	}
	sch := s.schema.receipts

	order := sch.no
	if sch.createdAt != "" {
		order = sch.createdAt + " DESC, " + sch.no
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = ?`,
		s.receiptSelect(), sch.table, sch.status,
	)
	args := []any{domain.ReceiptStatusUnpaid}
	if customer != "" && sch.customer != "" {
		query += fmt.Sprintf(` AND LOWER(COALESCE(%s, '')) LIKE ?`, sch.customer)
		args = append(args, "%"+strings.ToLower(customer)+"%")
	}
	query += fmt.Sprintf(` ORDER BY %s DESC LIMIT ?`, order)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := make([]domain.Receipt, 0, limit)
	for rows.Next() {
		r, err := scanReceiptHeader(rows.Scan)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return receipts, nil
}

// GetReceipt reconstructs a full receipt (header, items in line order,
// payments) for display and printing.
func (s *Store) GetReceipt(ctx context.Context, receiptNo string) (*domain.Receipt, error) {
	receiptNo = strings.TrimSpace(receiptNo)
	if receiptNo == "" {
		return nil, fmt.Errorf("%w: receipt number required", store.ErrInvalidInput)
	}
	sch := s.schema.receipts

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE UPPER(%s) = UPPER(?)`,
		s.receiptSelect(), sch.table, sch.no,
	)
	r, err := scanReceiptHeader(s.db.QueryRowContext(ctx, query, receiptNo).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.receiptItems(ctx, r.ID, r.ReceiptNo)
	if err != nil {
		return nil, err
	}
	r.Items = items

	payments, err := s.receiptPayments(ctx, r.ID, r.ReceiptNo)
	if err != nil {
		return nil, err
	}
	r.Payments = payments

	return &r, nil
}

func (s *Store) receiptItems(ctx context.Context, receiptID int64, receiptNo string) ([]domain.ReceiptItem, error) {
	sch := s.schema.items
	text := func(col string) string {
		if col == "" {
			return "''"
		}
		return fmt.Sprintf("COALESCE(%s, '')", col)
	}
	num := func(col string) string {
		if col == "" {
			return "0"
		}
		return fmt.Sprintf("COALESCE(%s, 0)", col)
	}

	order := "rowid"
	if sch.lineNo != "" {
		order = sch.lineNo
	}
	query := fmt.Sprintf(
		`SELECT %s, %s, %s, %s, %s, %s, %s, %s FROM %s WHERE %s = ? ORDER BY %s ASC`,
		num(sch.lineNo), text(sch.code), text(sch.name), text(sch.category),
		num(sch.qty), text(sch.unit), num(sch.price), num(sch.lineTotal),
		sch.table, sch.link, order,
	)

	var link any = receiptNo
	if sch.linkByRowID {
		link = receiptID
	}

	rows, err := s.db.QueryContext(ctx, query, link)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReceiptItem, 0, 8)
	for rows.Next() {
		var item domain.ReceiptItem
		if err := rows.Scan(
			&item.LineNo,
			&item.ProductCode,
			&item.ProductName,
			&item.Category,
			&item.Qty,
			&item.Unit,
			&item.UnitPrice,
			&item.LineTotal,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) receiptPayments(ctx context.Context, receiptID int64, receiptNo string) ([]domain.ReceiptPayment, error) {
	sch := s.schema.payments
	text := func(col string) string {
		if col == "" {
			return "''"
		}
		return fmt.Sprintf("COALESCE(%s, '')", col)
	}
	num := func(col string) string {
		if col == "" {
			return "0"
		}
		return fmt.Sprintf("COALESCE(%s, 0)", col)
	}

	query := fmt.Sprintf(
		`SELECT %s, %s, %s, %s FROM %s WHERE %s = ? ORDER BY rowid ASC`,
		sch.ptype, num(sch.amount), num(sch.tendered), text(sch.createdAt),
		sch.table, sch.link,
	)

	var link any = receiptNo
	if sch.linkByRowID {
		link = receiptID
	}

	rows, err := s.db.QueryContext(ctx, query, link)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.ReceiptPayment, 0, 2)
	for rows.Next() {
		var (
			p         domain.ReceiptPayment
			createdAt string
		)
		if err := rows.Scan(&p.Type, &p.Amount, &p.Tendered, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}
