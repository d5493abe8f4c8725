package ports

import (
	"context"

	"umkm/internal/core"
)

// Ports for outbound adapters. Every store call is scoped by the principal
// of the session that issued it.
type (
	IncomeStore interface {
		ListIncomes(ctx context.Context, p core.Principal) ([]core.Income, error)
		// CreateIncome returns the canonical record as stored, id included.
		CreateIncome(ctx context.Context, p core.Principal, in core.Income) (core.Income, error)
		UpdateIncome(ctx context.Context, p core.Principal, in core.Income) (core.Income, error)
		DeleteIncome(ctx context.Context, p core.Principal, id core.ID) error
	}

	ProductStore interface {
		ListProducts(ctx context.Context, p core.Principal) ([]core.Product, error)
		CreateProduct(ctx context.Context, p core.Principal, pr core.Product) (core.Product, error)
		UpdateProduct(ctx context.Context, p core.Principal, pr core.Product) (core.Product, error)
		DeleteProduct(ctx context.Context, p core.Principal, id core.ID) error
	}

	ProfileStore interface {
		GetProfile(ctx context.Context, p core.Principal) (core.Profile, error)
		UpdateProfile(ctx context.Context, p core.Principal, pr core.Profile) (core.Profile, error)
	}

	CategoryReader interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	// Authenticator owns account credentials. Login fails with
	// core.ErrPendingApproval for accounts not yet approved.
	Authenticator interface {
		Register(ctx context.Context, r core.Registration) (core.Profile, error)
		Login(ctx context.Context, c core.Credentials) (core.LoginResult, error)
		// Me resolves the profile behind a token.
		Me(ctx context.Context, token string) (core.Profile, error)
	}

	// TokenIssuer signs and verifies the session tokens local backends
	// hand out at login.
	TokenIssuer interface {
		Issue(umkmID core.ID, email string) (string, error)
		Parse(token string) (core.ID, error)
	}

	// IncomeExporter mirrors income records into an external ledger.
	IncomeExporter interface {
		Upsert(ctx context.Context, umkmID core.ID, in core.Income) error
		Remove(ctx context.Context, id core.ID) error
	}
)
