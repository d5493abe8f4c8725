package backend

import (
	"fmt"
	"time"

	"umkm/internal/config"
)

// Config is the subset of the application config a backend needs.
type Config struct {
	Type Type

	// Remote
	APIBaseURL string
	APITimeout time.Duration

	// SQLite
	SQLiteDBPath string

	// Memory
	DataDirectory string

	// Local backends
	SessionSecret string
	SessionTTL    time.Duration
	AutoApprove   bool
}

func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          t,
		APIBaseURL:    appConfig.APIBaseURL,
		APITimeout:    appConfig.APITimeout,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: appConfig.DataDirectory,
		SessionSecret: appConfig.SessionSecret,
		SessionTTL:    appConfig.SessionTTL,
		AutoApprove:   appConfig.AutoApprove,
	}, nil
}

func (c Config) Validate() error {
	switch c.Type {
	case RemoteBackend:
		if c.APIBaseURL == "" {
			return fmt.Errorf("API base URL is required for remote backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("session secret is required for sqlite backend")
		}
	case MemoryBackend:
		if c.SessionSecret == "" {
			return fmt.Errorf("session secret is required for memory backend")
		}
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}
