package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umkm/internal/backend"
	"umkm/internal/core"
	"umkm/internal/memory"
	"umkm/internal/session"
)

const (
	testEmail    = "warung@example.com"
	testPassword = "rahasia123"
)

func newTestApp(t *testing.T, autoApprove bool) (*app, *memory.Store) {
	t.Helper()
	issuer, err := session.NewIssuer("report-test-secret-0123", time.Hour)
	require.NoError(t, err)
	store := memory.New([]string{"Kuliner"}, issuer, autoApprove)

	_, err = store.Register(context.Background(), core.Registration{
		Name:                 "Warung Bu Sari",
		Type:                 "Kuliner",
		Email:                testEmail,
		Password:             testPassword,
		PasswordConfirmation: testPassword,
	})
	require.NoError(t, err)

	a := &app{
		open: func(context.Context) (*backend.Backend, error) {
			return &backend.Backend{
				Type:       backend.MemoryBackend,
				Incomes:    store,
				Products:   store,
				Profiles:   store,
				Categories: store,
				Auth:       store,
				Memory:     store,
			}, nil
		},
		now: func() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC) },
	}
	return a, store
}

func seedIncomes(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	res, err := store.Login(ctx, core.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	p := core.Principal{UMKMID: res.Profile.ID, Token: res.Token}

	for _, in := range []struct{ amount, date string }{
		{"1000", "2024-01-10"},
		{"1500", "2024-02-12"},
	} {
		amount, err := core.ParseAmount(in.amount)
		require.NoError(t, err)
		_, err = store.CreateIncome(ctx, p, core.Income{Amount: amount, Source: "Penjualan", Date: in.date})
		require.NoError(t, err)
	}
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(a)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestOverviewCommand(t *testing.T) {
	a, store := newTestApp(t, true)
	seedIncomes(t, store)

	out, err := run(t, a, "overview", "--email", testEmail, "--password", testPassword)
	require.NoError(t, err)

	assert.Contains(t, out, "Warung Bu Sari")
	assert.Contains(t, out, "Jan 2024")
	assert.Contains(t, out, "Feb 2024")
	assert.Contains(t, out, "Rp 2.500,00")
	assert.Contains(t, out, "+50.0%")
}

func TestOverviewCommandJSON(t *testing.T) {
	a, store := newTestApp(t, true)
	seedIncomes(t, store)

	out, err := run(t, a, "overview", "--email", testEmail, "--password", testPassword, "--json")
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Contains(t, body, "totalIncome")
	assert.Contains(t, body, "monthlySeries")
}

func TestOverviewCommandRejectsBadPassword(t *testing.T) {
	a, _ := newTestApp(t, true)

	_, err := run(t, a, "overview", "--email", testEmail, "--password", "salah-sandi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidCredentials))
}

func TestOverviewCommandRequiresEmail(t *testing.T) {
	a, _ := newTestApp(t, true)

	_, err := run(t, a, "overview")
	require.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	tests := []struct {
		format string
		magic  string
	}{
		{"xlsx", "PK"},
		{"pdf", "%PDF"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			a, store := newTestApp(t, true)
			seedIncomes(t, store)
			path := filepath.Join(t.TempDir(), "laporan."+tt.format)

			out, err := run(t, a, "export", "--email", testEmail, "--password", testPassword,
				"--format", tt.format, "-o", path)
			require.NoError(t, err)
			assert.Contains(t, out, "Wrote 2 records")

			b, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(b, []byte(tt.magic)), "%s report starts with %q", tt.format, b[:min(len(b), 8)])
		})
	}
}

func TestExportCommandUnknownFormat(t *testing.T) {
	a, _ := newTestApp(t, true)

	_, err := run(t, a, "export", "--email", testEmail, "--password", testPassword, "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")
}

func TestApproveCommand(t *testing.T) {
	a, store := newTestApp(t, false)
	ctx := context.Background()

	_, err := store.Login(ctx, core.Credentials{Email: testEmail, Password: testPassword})
	require.ErrorIs(t, err, core.ErrPendingApproval)

	out, err := run(t, a, "approve", "Warung@Example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Approved warung@example.com")

	_, err = store.Login(ctx, core.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	_, err = run(t, a, "approve", "nobody@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no account registered")
}

func TestSheetsAuthRequiresClientFile(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")
	a, _ := newTestApp(t, true)

	_, err := run(t, a, "sheets-auth")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client-file")
}
