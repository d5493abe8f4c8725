package storage

import (
	"context"
	"fmt"

	"umkm/internal/core"
)

// ListProducts implements ports.ProductStore.
func (r *SQLiteRepository) ListProducts(ctx context.Context, p core.Principal) ([]core.Product, error) {
	owner, err := scope(p)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, price FROM products WHERE umkm_id = ? ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []core.Product{}
	for rows.Next() {
		var (
			pr        core.Product
			id, price string
		)
		if err := rows.Scan(&id, &pr.Name, &pr.Description, &price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if pr.Price, err = parseStoredAmount(price); err != nil {
			return nil, err
		}
		pr.ID = core.ID(id)
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// CreateProduct implements ports.ProductStore.
func (r *SQLiteRepository) CreateProduct(ctx context.Context, p core.Principal, pr core.Product) (core.Product, error) {
	owner, err := scope(p)
	if err != nil {
		return core.Product{}, err
	}
	if err := pr.Validate(); err != nil {
		return core.Product{}, err
	}
	pr.ID = r.newID()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, umkm_id, name, description, price) VALUES (?, ?, ?, ?, ?)`,
		string(pr.ID), owner, pr.Name, pr.Description, pr.Price.String()); err != nil {
		return core.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return pr, nil
}

// UpdateProduct implements ports.ProductStore.
func (r *SQLiteRepository) UpdateProduct(ctx context.Context, p core.Principal, pr core.Product) (core.Product, error) {
	owner, err := scope(p)
	if err != nil {
		return core.Product{}, err
	}
	if err := pr.Validate(); err != nil {
		return core.Product{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price = ? WHERE id = ? AND umkm_id = ?`,
		pr.Name, pr.Description, pr.Price.String(), string(pr.ID), owner)
	if err != nil {
		return core.Product{}, fmt.Errorf("update product: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.Product{}, err
	}
	return pr, nil
}

// DeleteProduct implements ports.ProductStore.
func (r *SQLiteRepository) DeleteProduct(ctx context.Context, p core.Principal, id core.ID) error {
	owner, err := scope(p)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ? AND umkm_id = ?`, string(id), owner)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectOne(res)
}
