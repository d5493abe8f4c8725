package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	gsheet "umkm/internal/sheets/google"
)

const authTimeout = 5 * time.Minute

type sheetsAuthCmd struct {
	clientFile string
	tokenFile  string
	port       string
}

// newSheetsAuthCmd runs the one-off OAuth consent that lets the worker
// write to the ledger spreadsheet as a user instead of a service account.
func newSheetsAuthCmd() *cobra.Command {
	sc := &sheetsAuthCmd{}
	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize ledger access with an OAuth client and save the token",
		RunE:  sc.run,
	}
	cmd.Flags().StringVar(&sc.clientFile, "client-file", os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"), "OAuth client JSON downloaded from the Google console")
	cmd.Flags().StringVar(&sc.tokenFile, "token-file", envOr("GOOGLE_OAUTH_TOKEN_FILE", "token.json"), "Where to write the token")
	cmd.Flags().StringVar(&sc.port, "port", envOr("OAUTH_REDIRECT_PORT", "8085"), "Local port for the redirect callback")
	return cmd
}

func (sc *sheetsAuthCmd) run(cmd *cobra.Command, _ []string) error {
	if sc.clientFile == "" {
		return errors.New("set --client-file or GOOGLE_OAUTH_CLIENT_FILE")
	}
	cfg, err := gsheet.OAuthConfig(sc.clientFile)
	if err != nil {
		return err
	}
	// The redirect URI must be listed on the OAuth client.
	cfg.RedirectURL = "http://localhost:" + sc.port + "/callback"

	state, err := randomState()
	if err != nil {
		return err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			notify(errCh, fmt.Errorf("authorization denied: %s", e))
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Otorisasi berhasil. Jendela ini boleh ditutup.")
		notify(codeCh, q.Get("code"))
	})
	srv := &http.Server{Addr: ":" + sc.port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			notify(errCh, err)
		}
	}()
	defer srv.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("authorization not completed: %w", ctx.Err())
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	if err := writeToken(sc.tokenFile, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved token to %s\n", sc.tokenFile)
	return nil
}

func writeToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// notify delivers v unless the channel already holds a value.
func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
