package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"umkm/internal/core"
)

func (c *Client) Login(ctx context.Context, cr core.Credentials) (core.LoginResult, error) {
	if err := cr.Validate(); err != nil {
		return core.LoginResult{}, err
	}
	var res core.LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/umkm/login", "", cr, &res); err != nil {
		return core.LoginResult{}, err
	}
	if res.Token == "" {
		return core.LoginResult{}, fmt.Errorf("remote: login response without token")
	}
	return res, nil
}

// Register posts the registration as multipart form data so the optional
// document can ride along.
func (c *Client) Register(ctx context.Context, r core.Registration) (core.Profile, error) {
	if err := r.Validate(); err != nil {
		return core.Profile{}, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"name", r.Name},
		{"type", r.Type},
		{"address", r.Address},
		{"location_url", r.LocationURL},
		{"email", core.NormalizeEmail(r.Email)},
		{"password", r.Password},
		{"password_confirmation", r.PasswordConfirmation},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return core.Profile{}, err
		}
	}
	if r.Document != nil {
		part, err := w.CreateFormFile("document", r.Document.Filename)
		if err != nil {
			return core.Profile{}, err
		}
		if _, err := part.Write(r.Document.Content); err != nil {
			return core.Profile{}, err
		}
	}
	if err := w.Close(); err != nil {
		return core.Profile{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/umkm/register", &buf)
	if err != nil {
		return core.Profile{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var raw json.RawMessage
	if err := c.do(req, "", &raw); err != nil {
		return core.Profile{}, err
	}
	var p core.Profile
	if err := unwrap(raw, "umkm", &p); err != nil {
		return core.Profile{}, fmt.Errorf("remote: decode registration: %w", err)
	}
	if p.Status == "" {
		p.Status = core.StatusPending
	}
	return p, nil
}

func (c *Client) Me(ctx context.Context, token string) (core.Profile, error) {
	if token == "" {
		return core.Profile{}, core.ErrUnauthorized
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/umkm/me", token, nil, &raw); err != nil {
		return core.Profile{}, err
	}
	var p core.Profile
	if err := unwrap(raw, "umkm", &p); err != nil {
		return core.Profile{}, fmt.Errorf("remote: decode profile: %w", err)
	}
	if p.ID.IsZero() {
		return core.Profile{}, core.ErrUnauthorized
	}
	return p, nil
}

func (c *Client) GetProfile(ctx context.Context, p core.Principal) (core.Profile, error) {
	return c.Me(ctx, p.Token)
}

func (c *Client) UpdateProfile(ctx context.Context, p core.Principal, prof core.Profile) (core.Profile, error) {
	if err := prof.Validate(); err != nil {
		return core.Profile{}, err
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPut, "/umkm/me", p.Token, prof, &raw); err != nil {
		return core.Profile{}, err
	}
	var saved core.Profile
	if err := unwrap(raw, "umkm", &saved); err != nil {
		return core.Profile{}, fmt.Errorf("remote: decode profile: %w", err)
	}
	if saved.ID.IsZero() {
		return prof, nil
	}
	return saved, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	out := []core.Category{}
	if err := c.doJSON(ctx, http.MethodGet, "/categories", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
