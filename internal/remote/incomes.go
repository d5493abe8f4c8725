package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"umkm/internal/core"
)

// incomeBody is the write payload; the id travels in the path.
type incomeBody struct {
	Amount    core.Amount    `json:"amount"`
	Source    string         `json:"source"`
	Date      string         `json:"date"`
	Notes     string         `json:"notes,omitempty"`
	Frequency core.Frequency `json:"frequency,omitempty"`
}

func newIncomeBody(in core.Income) incomeBody {
	return incomeBody{Amount: in.Amount, Source: in.Source, Date: in.Date, Notes: in.Notes, Frequency: in.Frequency}
}

func (c *Client) ListIncomes(ctx context.Context, p core.Principal) ([]core.Income, error) {
	out := []core.Income{}
	if err := c.doJSON(ctx, http.MethodGet, "/incomes", p.Token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateIncome(ctx context.Context, p core.Principal, in core.Income) (core.Income, error) {
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	return c.writeIncome(ctx, http.MethodPost, "/incomes", p.Token, in)
}

func (c *Client) UpdateIncome(ctx context.Context, p core.Principal, in core.Income) (core.Income, error) {
	if in.ID.IsZero() {
		return core.Income{}, core.ErrNotFound
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	return c.writeIncome(ctx, http.MethodPut, "/incomes/"+escape(in.ID), p.Token, in)
}

func (c *Client) DeleteIncome(ctx context.Context, p core.Principal, id core.ID) error {
	return c.doJSON(ctx, http.MethodDelete, "/incomes/"+escape(id), p.Token, nil, nil)
}

func (c *Client) writeIncome(ctx context.Context, method, path, token string, in core.Income) (core.Income, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, method, path, token, newIncomeBody(in), &raw); err != nil {
		return core.Income{}, err
	}
	var saved core.Income
	if err := unwrap(raw, "income", &saved); err != nil {
		return core.Income{}, fmt.Errorf("remote: decode income: %w", err)
	}
	if saved.ID.IsZero() {
		saved.ID = in.ID
	}
	return saved, nil
}
