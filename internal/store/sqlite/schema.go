package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"merlionpos/internal/store"
)

// The receipts family of tables has gone through several column-name
// generations (receipt_id vs receipt_no as the child link, qty vs quantity,
// price vs unit_price). Instead of re-introspecting on every write, the
// schema is probed once at Open and frozen into a schemaProfile: an immutable
// mapping of logical field to physical column per table. An empty string
// means the live table has no column for that field and the writer skips it.
type schemaProfile struct {
	receipts receiptSchema
	items    itemSchema
	payments paymentSchema
}

type receiptSchema struct {
	table       string
	id          string // explicit integer key column; "" falls back to rowid
	no          string
	customer    string
	cashier     string
	status      string
	total       string
	createdAt   string
	paidAt      string
	cancelledAt string
	note        string
}

// idColumn names the integer key usable in WHERE clauses. SQLite always
// exposes rowid even when the table declares no INTEGER PRIMARY KEY alias.
func (r receiptSchema) idColumn() string {
	if r.id != "" {
		return r.id
	}
	return "rowid"
}

type itemSchema struct {
	table       string
	link        string
	linkByRowID bool // true: link holds the parent's integer key; false: the textual receipt_no
	lineNo      string
	code        string
	name        string
	category    string
	qty         string
	unit        string
	price       string
	lineTotal   string
}

type paymentSchema struct {
	table       string
	link        string
	linkByRowID bool
	ptype       string
	amount      string
	tendered    string
	createdAt   string
}

func probeSchema(ctx context.Context, db *sql.DB) (*schemaProfile, error) {
	rcols, err := tableColumns(ctx, db, "receipts")
	if err != nil {
		return nil, err
	}
	icols, err := tableColumns(ctx, db, "receipt_items")
	if err != nil {
		return nil, err
	}
	pcols, err := tableColumns(ctx, db, "receipt_payments")
	if err != nil {
		return nil, err
	}

	p := &schemaProfile{}

	p.receipts = receiptSchema{
		table:       "receipts",
		id:          firstExisting(rcols, "receipt_id", "id"),
		no:          firstExisting(rcols, "receipt_no", "receipt_number"),
		customer:    firstExisting(rcols, "customer_name", "customer"),
		cashier:     firstExisting(rcols, "cashier_name", "cashier"),
		status:      firstExisting(rcols, "status"),
		total:       firstExisting(rcols, "grand_total", "total_amount", "total"),
		createdAt:   firstExisting(rcols, "created_at", "sale_time"),
		paidAt:      firstExisting(rcols, "paid_at", "paid_time"),
		cancelledAt: firstExisting(rcols, "cancelled_at", "canceled_at", "void_time"),
		note:        firstExisting(rcols, "note", "remarks"),
	}
	if p.receipts.no == "" || p.receipts.status == "" {
		return nil, fmt.Errorf("%w: receipts table lacks receipt_no or status", store.ErrSchemaUnusable)
	}

	itemLink, itemByRowID, err := resolveLink(icols, "receipt_items")
	if err != nil {
		return nil, err
	}
	p.items = itemSchema{
		table:       "receipt_items",
		link:        itemLink,
		linkByRowID: itemByRowID,
		lineNo:      firstExisting(icols, "line_no", "line", "seq"),
		code:        firstExisting(icols, "product_code", "code", "sku"),
		name:        firstExisting(icols, "product_name", "name"),
		category:    firstExisting(icols, "category"),
		qty:         firstExisting(icols, "qty", "quantity"),
		unit:        firstExisting(icols, "unit", "uom"),
		price:       firstExisting(icols, "unit_price", "price"),
		lineTotal:   firstExisting(icols, "line_total", "total", "amount"),
	}

	payLink, payByRowID, err := resolveLink(pcols, "receipt_payments")
	if err != nil {
		return nil, err
	}
	p.payments = paymentSchema{
		table:       "receipt_payments",
		link:        payLink,
		linkByRowID: payByRowID,
		ptype:       firstExisting(pcols, "payment_type", "type", "method"),
		amount:      firstExisting(pcols, "amount", "paid_amount"),
		tendered:    firstExisting(pcols, "tendered", "tender_amount"),
		createdAt:   firstExisting(pcols, "created_at", "paid_at"),
	}
	if p.payments.ptype == "" || p.payments.amount == "" {
		return nil, fmt.Errorf("%w: receipt_payments table lacks payment_type or amount", store.ErrSchemaUnusable)
	}

	return p, nil
}

// resolveLink picks the child table's link to its receipt: an integer
// receipt_id foreign key is preferred, the textual receipt_no is the
// fallback. Neither present means the schema cannot be written safely.
func resolveLink(cols map[string]struct{}, table string) (string, bool, error) {
	if link := firstExisting(cols, "receipt_id"); link != "" {
		return link, true, nil
	}
	if link := firstExisting(cols, "receipt_no", "receipt_number"); link != "" {
		return link, false, nil
	}
	return "", false, fmt.Errorf("%w: %s has no receipt link column", store.ErrSchemaUnusable, table)
}

// ensureLinkIndexes indexes the child tables on whichever link column the
// probe found, so held-receipt listings and receipt reads stay fast on legacy
// databases too.
func ensureLinkIndexes(ctx context.Context, db *sql.DB, p *schemaProfile) error {
	stmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_receipt_items_link ON %s (%s)", p.items.table, p.items.link),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_receipt_payments_link ON %s (%s)", p.payments.table, p.payments.link),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]struct{}, 12)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[strings.ToLower(name)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cols, nil
}

func firstExisting(cols map[string]struct{}, candidates ...string) string {
	for _, candidate := range candidates {
		if _, ok := cols[candidate]; ok {
			return candidate
		}
	}
	return ""
}

// insertRow builds and executes a parameterized insert for exactly the
// supplied columns and returns the new row's id. Column order is sorted so
// the generated SQL is stable.
func insertRow(ctx context.Context, q querier, table string, values map[string]any) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("insert into %s: no columns", table)
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, 0, len(cols))
	marks := make([]string, 0, len(cols))
	for _, col := range cols {
		args = append(args, values[col])
		marks = append(marks, "?")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "),
	)
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
