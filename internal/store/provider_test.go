package store_test

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/jensholdgaard/trinity/internal/config"
	"github.com/jensholdgaard/trinity/internal/store"

	// Import drivers so their init() functions register them.
	_ "github.com/jensholdgaard/trinity/internal/store/postgres"
	_ "github.com/jensholdgaard/trinity/internal/store/sqlite"
)

// fakeDriver is a store.Driver that always succeeds without connecting to a DB.
func fakeDriver(_ context.Context, _ config.DatabaseConfig) (*store.Repositories, error) {
	return &store.Repositories{}, nil
}

func TestOpen(t *testing.T) {
	store.Register("test-driver", fakeDriver)

	tests := []struct {
		name    string
		driver  string
		wantErr bool
	}{
		{
			name:    "registered driver succeeds",
			driver:  "test-driver",
			wantErr: false,
		},
		{
			name:    "unknown driver fails",
			driver:  "nonexistent",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DatabaseConfig{Driver: tt.driver}
			_, err := store.Open(context.Background(), cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Open(driver=%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	names := store.Drivers()
	for _, want := range []string{"postgres", "sqlite"} {
		if !slices.Contains(names, want) {
			t.Errorf("driver %q not registered (have %v)", want, names)
		}
	}
}

func TestOpen_PostgresUnreachable(t *testing.T) {
	// Nothing listens on this port, so the error must come from the driver.
	cfg := config.DatabaseConfig{Driver: "postgres", Host: "127.0.0.1", Port: 1, SSLMode: "disable"}
	_, err := store.Open(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error (no DB running), got nil")
	}
	if strings.Contains(err.Error(), "unknown store driver") {
		t.Errorf("expected connection error, got unknown driver error: %v", err)
	}
}

func TestOpen_SQLite(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "journal.db")}
	repos, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open(sqlite) error: %v", err)
	}
	defer repos.Closer.Close()

	if err := repos.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
	if repos.Events == nil {
		t.Error("expected event store")
	}
}
