package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"umkm/internal/backend"
	"umkm/internal/cli"
	applog "umkm/internal/log"
)

func main() {
	cli.LoadEnvFile()

	a := &app{
		open: openBackend,
		now:  time.Now,
	}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openBackend validates the configuration lazily so sheets-auth runs
// without backend settings.
func openBackend(ctx context.Context) (*backend.Backend, error) {
	logger := applog.New(applog.Config{Level: applog.ParseLevel("warn"), Component: applog.ComponentBackend, Output: os.Stderr})
	cfg := cli.LoadAndValidateConfig(logger)
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.Logger).Create(ctx, bcfg)
}
