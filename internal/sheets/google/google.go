// Package google mirrors income records into a Google Sheets ledger. Each
// income occupies one row keyed by its id in column A.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"umkm/internal/core"
	"umkm/internal/ports"
)

const DefaultSheetName = "Pendapatan"

// Header is the first row of the ledger sheet.
var Header = []any{"id", "umkm_id", "date", "source", "amount", "notes", "frequency", "exported_at"}

// Config selects the spreadsheet and the credentials used to reach it.
// Service account credentials win over an OAuth client/token pair.
type Config struct {
	SpreadsheetID string
	SheetName     string

	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientFile string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	now           func() time.Time
}

var _ ports.IncomeExporter = (*Client)(nil)

// New creates a ledger client. When opts are given they replace the
// credentials derived from cfg.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}

	if len(opts) == 0 {
		ts, err := tokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{goption.WithHTTPClient(authorizedClient(ts))}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets ledger ready", "sheet", sheet)

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet, now: time.Now}, nil
}

func tokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	saJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	saFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if saJSON == "" && saFile == "" {
		saFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case saJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(saJSON)
	case saFile != "":
		b, err := os.ReadFile(saFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Using service account credentials file", "path", saFile)
		credentialsJSON = b
	case cfg.OAuthClientFile != "":
		slog.InfoContext(ctx, "Using OAuth user credentials")
		return oauthTokenSource(ctx, cfg.OAuthClientFile, cfg.OAuthTokenFile)
	default:
		return nil, errors.New("missing sheets credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_OAUTH_CLIENT_FILE)")
	}

	creds, err := goauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("service account credentials: %w", err)
	}
	return creds.TokenSource, nil
}

// OAuthConfig reads an installed-app OAuth client for the Sheets scope.
func OAuthConfig(clientFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(clientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	cfg, err := goauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

func oauthTokenSource(ctx context.Context, clientFile, tokenFile string) (oauth2.TokenSource, error) {
	cfg, err := OAuthConfig(clientFile)
	if err != nil {
		return nil, err
	}
	if tokenFile == "" {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_FILE)")
	}
	b, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	return cfg.TokenSource(ctx, &tok), nil
}

// authorizedClient signs requests with ts over a pooled transport.
func authorizedClient(ts oauth2.TokenSource) *http.Client {
	pooled := newPooledHTTPClient()
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: pooled.Transport},
		Timeout:   pooled.Timeout,
	}
}

func newPooledHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// EnsureHeader writes the header row when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheet+"!A1:H1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", c.sheet, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{Header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.sheet+"!A1:H1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header of %s: %w", c.sheet, err)
	}
	return nil
}

// Upsert rewrites the row of in, or appends one if the id is not present.
func (c *Client) Upsert(ctx context.Context, umkmID core.ID, in core.Income) error {
	if in.ID.IsZero() {
		return errors.New("income without id cannot be exported")
	}
	row, err := c.findRow(ctx, in.ID)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{c.toRow(umkmID, in)}}

	if row > 0 {
		rng := fmt.Sprintf("%s!A%d:H%d", c.sheet, row, row)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		slog.DebugContext(ctx, "Updated ledger row", "income_id", in.ID, "range", rng)
		return nil
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.sheet+"!A:H", vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	slog.DebugContext(ctx, "Appended ledger row", "income_id", in.ID, "range", ref)
	return nil
}

// Remove clears the row of id. It returns core.ErrNotFound when no row
// carries the id.
func (c *Client) Remove(ctx context.Context, id core.ID) error {
	row, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if row == 0 {
		return core.ErrNotFound
	}
	rng := fmt.Sprintf("%s!A%d:H%d", c.sheet, row, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	slog.DebugContext(ctx, "Cleared ledger row", "income_id", id, "range", rng)
	return nil
}

// findRow returns the 1-based row holding id, or 0.
func (c *Client) findRow(ctx context.Context, id core.ID) (int, error) {
	rng := c.sheet + "!A:A"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	return rowOf(resp.Values, string(id)), nil
}

func rowOf(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func (c *Client) toRow(umkmID core.ID, in core.Income) []any {
	return []any{
		string(in.ID),
		string(umkmID),
		in.Date,
		in.Source,
		in.Amount.String(),
		in.Notes,
		string(in.Frequency),
		c.now().UTC().Format(time.RFC3339),
	}
}
