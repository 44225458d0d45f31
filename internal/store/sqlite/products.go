package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"merlionpos/internal/domain"
	"merlionpos/internal/store"
)

const productColumns = `code, name, COALESCE(category, ''), COALESCE(supplier, ''),
	COALESCE(selling_price, 0), COALESCE(cost_price, 0), COALESCE(unit, ''), COALESCE(updated_at, '')`

func scanProduct(scan func(dest ...any) error) (domain.Product, error) {
	var (
		p         domain.Product
		updatedAt string
	)
	err := scan(&p.Code, &p.Name, &p.Category, &p.Supplier,
		&p.SellingPrice, &p.CostPrice, &p.Unit, &updatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM products ORDER BY name ASC`, productColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: product code required", store.ErrInvalidInput)
	}
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM products WHERE code = ?`, productColumns), code).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Code = strings.TrimSpace(product.Code)
	if product.Code == "" || strings.TrimSpace(product.Name) == "" {
		return nil, fmt.Errorf("%w: product code and name required", store.ErrInvalidInput)
	}
	product.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (code, name, category, supplier, selling_price, cost_price, unit, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		product.Code, product.Name, nullIfEmpty(product.Category), nullIfEmpty(product.Supplier),
		product.SellingPrice, product.CostPrice, nullIfEmpty(product.Unit), fmtTime(product.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product %s already exists", store.ErrInvalidInput, product.Code)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Code = strings.TrimSpace(product.Code)
	if product.Code == "" {
		return nil, fmt.Errorf("%w: product code required", store.ErrInvalidInput)
	}
	product.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET name = ?, category = ?, supplier = ?, selling_price = ?, cost_price = ?, unit = ?, updated_at = ?
		 WHERE code = ?`,
		product.Name, nullIfEmpty(product.Category), nullIfEmpty(product.Supplier),
		product.SellingPrice, product.CostPrice, nullIfEmpty(product.Unit), fmtTime(product.UpdatedAt),
		product.Code,
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

// DeleteProduct removes a catalog entry. Receipt lines keep their snapshot of
// the product, so history survives the delete.
func (s *Store) DeleteProduct(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: product code required", store.ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE code = ?`, code)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
