package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jensholdgaard/trinity/internal/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
discord:
  token: "test-token"
  guild_id: "123456"
state:
  path: "/data/config.json"
  backup_dir: "/data/backups"
  seed: 7
database:
  host: "db.example.com"
  port: 5433
  user: "trinity"
  password: "secret"
  dbname: "ledger"
  sslmode: "require"
  driver: "postgres"
server:
  port: 9090
telemetry:
  service_name: "my-bot"
  otlp_endpoint: "localhost:4318"
logging:
  level: debug
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Discord.Token != "test-token" {
					t.Errorf("got token %q, want %q", cfg.Discord.Token, "test-token")
				}
				if cfg.State.Path != "/data/config.json" {
					t.Errorf("got state path %q", cfg.State.Path)
				}
				if cfg.State.Seed != 7 {
					t.Errorf("got seed %d, want 7", cfg.State.Seed)
				}
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if cfg.Telemetry.ServiceName != "my-bot" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "my-bot")
				}
				if cfg.Logging.SlogLevel() != slog.LevelDebug {
					t.Errorf("got level %v, want debug", cfg.Logging.SlogLevel())
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
discord:
  token: "tok"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "sqlite" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "sqlite")
				}
				if cfg.Database.Path != "journal.db" {
					t.Errorf("got db path %q, want %q", cfg.Database.Path, "journal.db")
				}
				if cfg.State.Path != "config.json" {
					t.Errorf("got state path %q, want %q", cfg.State.Path, "config.json")
				}
				if cfg.State.BackupDir != "backups" {
					t.Errorf("got backup dir %q, want %q", cfg.State.BackupDir, "backups")
				}
				if cfg.Server.Port != 8080 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 8080)
				}
				if cfg.Telemetry.ServiceName != "trinity" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "trinity")
				}
				if cfg.Logging.SlogLevel() != slog.LevelInfo {
					t.Errorf("got level %v, want info", cfg.Logging.SlogLevel())
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "invalid driver rejected",
			yaml: `
database:
  driver: "mongodb"
`,
			wantErr: true,
		},
		{
			name: "sqlite without path rejected",
			yaml: `
database:
  driver: "sqlite"
  path: ""
`,
			wantErr: true,
		},
		{
			name: "empty state path rejected",
			yaml: `
state:
  path: ""
`,
			wantErr: true,
		},
		{
			name: "invalid log level rejected",
			yaml: `
logging:
  level: "verbose"
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_EnvOverridesToken(t *testing.T) {
	t.Setenv("TRINITY", "env-token")
	t.Setenv("TRINITY_STATE_PATH", "/tmp/state.json")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("discord:\n  token: yaml-token\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Errorf("got token %q, want %q", cfg.Discord.Token, "env-token")
	}
	if cfg.State.Path != "/tmp/state.json" {
		t.Errorf("got state path %q, want %q", cfg.State.Path, "/tmp/state.json")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
