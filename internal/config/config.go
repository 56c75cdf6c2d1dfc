// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ericfisherdev/vaultdesk/internal/envelope"
)

// Supported values for VAULTDESK_STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	Store      string
	LogLevel   slog.Level

	// EncryptionKey is the 32-byte vault key, or nil when none is configured.
	EncryptionKey []byte
}

// HasEncryptionKey reports whether a vault key was provided. Without one the
// vault starts in list-only mode.
func (c *Config) HasEncryptionKey() bool {
	return len(c.EncryptionKey) > 0
}

// Load reads configuration from environment variables and returns a validated Config.
// VAULTDESK_ENCRYPTION_KEY is optional; if absent the vault can list secrets but
// not store or reveal them. A key that is present but not 64 hex characters is an error.
// Optional variables with defaults: VAULTDESK_LISTEN_ADDR (127.0.0.1:8080),
// VAULTDESK_DB_PATH (vaultdesk.db), VAULTDESK_STORE (sqlite), VAULTDESK_LOG_LEVEL (info).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("VAULTDESK_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "vaultdesk.db"
	if v, ok := os.LookupEnv("VAULTDESK_DB_PATH"); ok {
		dbPath = v
	}

	store := StoreSQLite
	if v, ok := os.LookupEnv("VAULTDESK_STORE"); ok && v != "" {
		switch s := strings.ToLower(strings.TrimSpace(v)); s {
		case StoreSQLite, StoreMemory:
			store = s
		default:
			return nil, fmt.Errorf("VAULTDESK_STORE must be %q or %q, got %q", StoreSQLite, StoreMemory, v)
		}
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("VAULTDESK_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("VAULTDESK_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	var key []byte
	if v, ok := os.LookupEnv("VAULTDESK_ENCRYPTION_KEY"); ok && v != "" {
		parsed, err := envelope.ParseKey(v)
		if err != nil {
			// Never echo the value back.
			return nil, fmt.Errorf("VAULTDESK_ENCRYPTION_KEY must be %d hex characters: %w", envelope.KeySize*2, err)
		}
		key = parsed
	}

	return &Config{
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		Store:         store,
		LogLevel:      logLevel,
		EncryptionKey: key,
	}, nil
}
