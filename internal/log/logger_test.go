package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umkm/internal/core"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Component: component, Output: buf})
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m))
	return m
}

func TestNewTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, ComponentHTTP)
	l.Info("hello", "k", "v")

	m := lastLine(t, &buf)
	assert.Equal(t, "hello", m["msg"])
	assert.Equal(t, ComponentHTTP, m[FieldComponent])
	assert.Equal(t, "v", m["k"])
	assert.Equal(t, ComponentHTTP, l.Component())
}

func TestNewDefaultsComponent(t *testing.T) {
	l := New(Config{Output: &bytes.Buffer{}})
	assert.Equal(t, ComponentApp, l.Component())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, ComponentApp, l.Component())
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	base := jsonLogger(&buf, ComponentApp)

	h := Middleware(base)(ComponentMiddleware(ComponentIncome)(
		RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				FromContext(r.Context()).Info("inside")
			}))))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/incomes", nil))

	m := lastLine(t, &buf)
	assert.Equal(t, "inside", m["msg"])
	assert.Equal(t, "req_1", m[FieldRequestID])
	assert.Contains(t, buf.String(), `"component":"income"`)
}

func TestLogHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, ComponentHTTP))
	r := httptest.NewRequest(http.MethodGet, "/api/incomes?range=thisMonth", nil)

	sl.LogHTTPEnd(context.Background(), r, "/api/incomes", "req_1", http.StatusOK, 3, "10.0.0.1")
	m := lastLine(t, &buf)
	assert.Equal(t, "INFO", m["level"])
	assert.Equal(t, "/api/incomes", m[FieldRoute])
	assert.Equal(t, true, m[FieldSuccess])

	sl.LogHTTPEnd(context.Background(), r, "", "", http.StatusNotFound, 1, "10.0.0.1")
	assert.Equal(t, "WARN", lastLine(t, &buf)["level"])

	sl.LogHTTPEnd(context.Background(), r, "", "", http.StatusBadGateway, 1, "10.0.0.1")
	assert.Equal(t, "ERROR", lastLine(t, &buf)["level"])
}

func TestLogIncomeMutationOmitsNotes(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, ComponentIncome))
	in := core.Income{ID: "7", Amount: core.NewAmount(2500), Source: "Pasar", Date: "2024-03-01", Notes: "secret"}

	sl.LogIncomeMutation(context.Background(), OpCreate, "u1", in)

	m := lastLine(t, &buf)
	assert.Equal(t, "Income created", m["msg"])
	assert.Equal(t, "7", m[FieldIncomeID])
	assert.Equal(t, "u1", m[FieldUMKMID])
	assert.NotContains(t, buf.String(), "secret")
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, ComponentHTTP))

	sl.LogError(context.Background(), "export failed", errors.New("boom"), ComponentExport, OpExport, nil)

	m := lastLine(t, &buf)
	assert.Equal(t, "boom", m[FieldError])
	assert.Equal(t, OpExport, m[FieldOperation])
	assert.Contains(t, buf.String(), `"component":"export"`)
}
