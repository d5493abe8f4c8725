package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"umkm/internal/core"
)

// fakeSheets serves the subset of the values API the ledger uses, over a
// single sheet held in memory.
type fakeSheets struct {
	mu   sync.Mutex
	rows [][]any
}

var cellRange = strings.NewReplacer("A", "", "H", "")

// rowBounds parses "Sheet!A3:H3" into 3.
func rowBounds(rng string) int {
	_, cells, _ := strings.Cut(rng, "!")
	first, _, _ := strings.Cut(cells, ":")
	n, _ := strconv.Atoi(cellRange.Replace(first))
	return n
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rest, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		out := make([][]any, 0, len(f.rows))
		for _, row := range f.rows {
			if len(row) == 0 {
				out = append(out, []any{})
				continue
			}
			out = append(out, row[:1])
		}
		if strings.HasSuffix(rest, "A1:H1") {
			out = nil
			if len(f.rows) > 0 && len(f.rows[0]) > 0 {
				out = [][]any{f.rows[0]}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rest, "values": out})
	case strings.HasSuffix(rest, ":append"):
		var body struct{ Values [][]any }
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.rows = append(f.rows, body.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Pendapatan!A" + strconv.Itoa(len(f.rows))},
		})
	case strings.HasSuffix(rest, ":clear"):
		n := rowBounds(strings.TrimSuffix(rest, ":clear"))
		f.rows[n-1] = []any{}
		_ = json.NewEncoder(w).Encode(map[string]any{"clearedRange": rest})
	case r.Method == http.MethodPut:
		var body struct{ Values [][]any }
		_ = json.NewDecoder(r.Body).Decode(&body)
		n := rowBounds(rest)
		for len(f.rows) < n {
			f.rows = append(f.rows, []any{})
		}
		f.rows[n-1] = body.Values[0]
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": 1})
	default:
		http.Error(w, "unsupported", http.StatusBadRequest)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return c, fake
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("expected missing spreadsheet error, got %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing sheets credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNew_OAuthWithoutToken(t *testing.T) {
	dir := t.TempDir()
	client := filepath.Join(dir, "client.json")
	body := `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`
	if err := os.WriteFile(client, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "x", OAuthClientFile: client})
	if err == nil || !strings.Contains(err.Error(), "missing oauth token") {
		t.Fatalf("expected missing oauth token error, got %v", err)
	}
}

func TestUpsertAppendsThenUpdates(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("EnsureHeader: %v", err)
	}
	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("EnsureHeader again: %v", err)
	}

	in := core.Income{ID: "42", Amount: core.NewAmount(150000), Source: "Pasar", Date: "2024-02-10"}
	if err := c.Upsert(ctx, "u1", in); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	in.Source = "Pasar Pagi"
	if err := c.Upsert(ctx, "u1", in); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if len(fake.rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows: %v", len(fake.rows), fake.rows)
	}
	row := fake.rows[1]
	if row[0] != "42" || row[1] != "u1" || row[3] != "Pasar Pagi" || row[4] != "150000" {
		t.Fatalf("unexpected row %v", row)
	}
	if row[7] != "2024-03-01T08:00:00Z" {
		t.Fatalf("unexpected export timestamp %v", row[7])
	}
}

func TestRemove(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if err := c.Remove(ctx, "7"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent row, got %v", err)
	}

	if err := c.Upsert(ctx, "u1", core.Income{ID: "7", Amount: core.NewAmount(1), Source: "x", Date: "2024-01-01"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := c.Remove(ctx, "7"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(fake.rows[0]) != 0 {
		t.Fatalf("expected cleared row, got %v", fake.rows[0])
	}
}

func TestUpsertRequiresID(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.Upsert(context.Background(), "u1", core.Income{}); err == nil {
		t.Fatal("expected error for income without id")
	}
}

func TestRowOf(t *testing.T) {
	values := [][]any{{"id"}, {}, {" 12 "}, {"13"}}
	if got := rowOf(values, "12"); got != 3 {
		t.Errorf("expected row 3, got %d", got)
	}
	if got := rowOf(values, "99"); got != 0 {
		t.Errorf("expected 0 for absent id, got %d", got)
	}
}
