package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"umkm/internal/core"
)

const profileColumns = `id, name, type, description, address, location, map_url, phone_number,
	opening_hours, closing_hours, images, email, status`

func scanProfile(row interface{ Scan(...any) error }, extra ...any) (core.Profile, error) {
	var (
		p      core.Profile
		id     string
		images string
		status string
	)
	dest := []any{&id, &p.Name, &p.Type, &p.Description, &p.Address, &p.Location, &p.MapURL,
		&p.PhoneNumber, &p.OpeningHours, &p.ClosingHours, &images, &p.Email, &status}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return core.Profile{}, err
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
			return core.Profile{}, fmt.Errorf("decode images: %w", err)
		}
	}
	p.ID = core.ID(id)
	p.Status = core.AccountStatus(status)
	return p, nil
}

// Register implements ports.Authenticator. The document, if any, is
// recorded by filename only.
func (r *SQLiteRepository) Register(ctx context.Context, reg core.Registration) (core.Profile, error) {
	if err := reg.Validate(); err != nil {
		return core.Profile{}, err
	}
	email := core.NormalizeEmail(reg.Email)

	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE email = ?`, email).Scan(&exists)
	if err != nil {
		return core.Profile{}, fmt.Errorf("check email: %w", err)
	}
	if exists > 0 {
		return core.Profile{}, core.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return core.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	status := core.StatusPending
	if r.autoApprove {
		status = core.StatusApproved
	}
	p := core.ProfileFromRegistration(r.newID(), reg, status)
	docName := ""
	if reg.Document != nil {
		docName = reg.Document.Filename
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, name, type, address, map_url, document_name, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), p.Email, string(hash), p.Name, p.Type, p.Address, p.MapURL, docName, string(p.Status)); err != nil {
		return core.Profile{}, fmt.Errorf("insert account: %w", err)
	}

	slog.InfoContext(ctx, "Account registered", "umkm_id", p.ID, "status", p.Status)
	return p, nil
}

// Login implements ports.Authenticator.
func (r *SQLiteRepository) Login(ctx context.Context, c core.Credentials) (core.LoginResult, error) {
	if err := c.Validate(); err != nil {
		return core.LoginResult{}, err
	}
	if r.tokens == nil {
		return core.LoginResult{}, fmt.Errorf("login: no token issuer configured")
	}

	var hash string
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+`, password_hash FROM accounts WHERE email = ?`, core.NormalizeEmail(c.Email))
	p, err := scanProfile(row, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LoginResult{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.LoginResult{}, fmt.Errorf("load account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(c.Password)) != nil {
		return core.LoginResult{}, core.ErrInvalidCredentials
	}
	if p.Status != core.StatusApproved {
		return core.LoginResult{}, core.ErrPendingApproval
	}

	token, err := r.tokens.Issue(p.ID, p.Email)
	if err != nil {
		return core.LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return core.LoginResult{Token: token, Profile: p}, nil
}

// Me implements ports.Authenticator.
func (r *SQLiteRepository) Me(ctx context.Context, token string) (core.Profile, error) {
	if r.tokens == nil {
		return core.Profile{}, core.ErrUnauthorized
	}
	id, err := r.tokens.Parse(token)
	if err != nil {
		return core.Profile{}, core.ErrUnauthorized
	}
	p, err := r.GetProfile(ctx, core.Principal{UMKMID: id, Token: token})
	if errors.Is(err, core.ErrNotFound) {
		return core.Profile{}, core.ErrUnauthorized
	}
	return p, err
}

// ApproveAccount moves a pending account to approved.
func (r *SQLiteRepository) ApproveAccount(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET status = ? WHERE email = ?`, string(core.StatusApproved), core.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("approve account: %w", err)
	}
	return expectOne(res)
}

// GetProfile implements ports.ProfileStore.
func (r *SQLiteRepository) GetProfile(ctx context.Context, p core.Principal) (core.Profile, error) {
	owner, err := scope(p)
	if err != nil {
		return core.Profile{}, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM accounts WHERE id = ?`, owner)
	prof, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, core.ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return prof, nil
}

// UpdateProfile implements ports.ProfileStore. Email and status are not
// editable here.
func (r *SQLiteRepository) UpdateProfile(ctx context.Context, p core.Principal, prof core.Profile) (core.Profile, error) {
	owner, err := scope(p)
	if err != nil {
		return core.Profile{}, err
	}
	if err := prof.Validate(); err != nil {
		return core.Profile{}, err
	}
	images := prof.Images
	if images == nil {
		images = []string{}
	}
	encoded, err := json.Marshal(images)
	if err != nil {
		return core.Profile{}, fmt.Errorf("encode images: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, description = ?, address = ?, location = ?, map_url = ?,
		        phone_number = ?, opening_hours = ?, closing_hours = ?, images = ?
		  WHERE id = ?`,
		prof.Name, prof.Type, prof.Description, prof.Address, prof.Location, prof.MapURL,
		prof.PhoneNumber, prof.OpeningHours, prof.ClosingHours, string(encoded), owner)
	if err != nil {
		return core.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.Profile{}, err
	}
	return r.GetProfile(ctx, p)
}

// ListCategories implements ports.CategoryReader.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, core.Category{ID: core.ID(id), Name: name})
	}
	return out, rows.Err()
}
