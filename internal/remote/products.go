package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"umkm/internal/core"
)

func (c *Client) ListProducts(ctx context.Context, p core.Principal) ([]core.Product, error) {
	out := []core.Product{}
	if err := c.doJSON(ctx, http.MethodGet, "/products", p.Token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateProduct(ctx context.Context, p core.Principal, pr core.Product) (core.Product, error) {
	if err := pr.Validate(); err != nil {
		return core.Product{}, err
	}
	return c.writeProduct(ctx, http.MethodPost, "/products", p.Token, pr)
}

func (c *Client) UpdateProduct(ctx context.Context, p core.Principal, pr core.Product) (core.Product, error) {
	if pr.ID.IsZero() {
		return core.Product{}, core.ErrNotFound
	}
	if err := pr.Validate(); err != nil {
		return core.Product{}, err
	}
	return c.writeProduct(ctx, http.MethodPut, "/products/"+escape(pr.ID), p.Token, pr)
}

func (c *Client) DeleteProduct(ctx context.Context, p core.Principal, id core.ID) error {
	return c.doJSON(ctx, http.MethodDelete, "/products/"+escape(id), p.Token, nil, nil)
}

func (c *Client) writeProduct(ctx context.Context, method, path, token string, pr core.Product) (core.Product, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, method, path, token, pr, &raw); err != nil {
		return core.Product{}, err
	}
	var saved core.Product
	if err := unwrap(raw, "product", &saved); err != nil {
		return core.Product{}, fmt.Errorf("remote: decode product: %w", err)
	}
	if saved.ID.IsZero() {
		saved.ID = pr.ID
	}
	return saved, nil
}
