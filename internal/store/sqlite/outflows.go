package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"merlionpos/internal/domain"
	"merlionpos/internal/store"
	"merlionpos/internal/xid"
)

var outflowTypes = map[string]bool{
	domain.OutflowRefund:      true,
	domain.OutflowVendor:      true,
	domain.OutflowCashInOther: true,
}

// CreateCashOutflow records a cash drawer movement outside of sales. Amounts
// are signed and must be nonzero; a zero movement is always an entry mistake.
func (s *Store) CreateCashOutflow(ctx context.Context, outflow domain.CashOutflow) (*domain.CashOutflow, error) {
	outflow.Type = strings.ToUpper(strings.TrimSpace(outflow.Type))
	if !outflowTypes[outflow.Type] {
		return nil, fmt.Errorf("%w: unknown outflow type %q", store.ErrInvalidInput, outflow.Type)
	}
	if outflow.Amount.IsZero() {
		return nil, fmt.Errorf("%w: outflow amount must be nonzero", store.ErrInvalidInput)
	}

	outflow.ID = xid.New("out")
	outflow.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cash_outflows (outflows_id, outflows_type, amount, created_at, actor_user_id, note)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		outflow.ID, outflow.Type, outflow.Amount, fmtTime(outflow.CreatedAt),
		nullIfEmpty(outflow.ActorName), nullIfEmpty(outflow.Note),
	)
	if err != nil {
		return nil, err
	}
	return &outflow, nil
}

// ListCashOutflows returns movements within [from, to), newest first. Zero
// bounds are open.
func (s *Store) ListCashOutflows(ctx context.Context, from, to time.Time, limit int) ([]domain.CashOutflow, error) {
	if limit < 1 {
		limit = 200
	}

	query := `SELECT outflows_id, outflows_type, COALESCE(amount, 0), COALESCE(created_at, ''),
	                 COALESCE(actor_user_id, ''), COALESCE(note, '')
	          FROM cash_outflows`
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, fmtTime(from.UTC()))
	}
	if !to.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, fmtTime(to.UTC()))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, outflows_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outflows := make([]domain.CashOutflow, 0, limit)
	for rows.Next() {
		var (
			o         domain.CashOutflow
			createdAt string
		)
		if err := rows.Scan(&o.ID, &o.Type, &o.Amount, &createdAt, &o.ActorName, &o.Note); err != nil {
			return nil, err
		}
		o.CreatedAt = parseTime(createdAt)
		outflows = append(outflows, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outflows, nil
}
