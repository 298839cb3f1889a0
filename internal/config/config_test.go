package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_DRIVER", "DATABASE_DSN", "POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"STORAGE_ENDPOINT", "MINIO_ENDPOINT", "BROADCAST_WRITE_TIMEOUT", "CHECKIN_API_URL", "CHECKIN_HUB_URL",
		"POLL_INTERVAL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDriverInference(t *testing.T) {
	cases := []struct {
		name       string
		env        map[string]string
		wantDriver string
		wantDSN    string
	}{
		{"default memory", nil, DriverMemory, ""},
		{"explicit sqlite default dsn", map[string]string{"DB_DRIVER": "sqlite"}, DriverSQLite, "file:checkin.db"},
		{"sqlite from dsn", map[string]string{"DATABASE_DSN": "file:/tmp/x.db"}, DriverSQLite, "file:/tmp/x.db"},
		{"postgres from dsn", map[string]string{"DATABASE_DSN": "postgres://u@h/db"}, DriverPostgres, "postgres://u@h/db"},
		{"postgres from host", map[string]string{"POSTGRES_HOST": "db", "POSTGRES_USER": "app", "POSTGRES_DB": "checkin"}, DriverPostgres, "postgres://app@db:5432/checkin?sslmode=disable"},
		{"alias", map[string]string{"DB_DRIVER": "postgresql", "DATABASE_DSN": "host=x"}, DriverPostgres, "host=x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg := Load()
			if cfg.DBDriver != tc.wantDriver {
				t.Fatalf("driver: want %s, got %s", tc.wantDriver, cfg.DBDriver)
			}
			if cfg.DatabaseDSN != tc.wantDSN {
				t.Fatalf("dsn: want %q, got %q", tc.wantDSN, cfg.DatabaseDSN)
			}
		})
	}
}

func TestLoadStorageFallsBackToMinioVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_ACCESS_KEY", "ak")
	t.Setenv("MINIO_SECRET_KEY", "sk")
	t.Setenv("MINIO_BUCKET", "reports")
	cfg := Load()
	if !cfg.Storage.Enabled() || cfg.Storage.Endpoint != "minio:9000" {
		t.Fatalf("expected storage from MINIO_* vars, got %+v", cfg.Storage)
	}
}

func TestLoadBroadcastTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("BROADCAST_WRITE_TIMEOUT", "250ms")
	if got := Load().BroadcastWriteTimeout; got != 250*time.Millisecond {
		t.Fatalf("unexpected timeout %s", got)
	}
	t.Setenv("BROADCAST_WRITE_TIMEOUT", "garbage")
	if got := Load().BroadcastWriteTimeout; got != 5*time.Second {
		t.Fatalf("expected default on invalid value, got %s", got)
	}
}

func TestLoadViewerDerivesHubURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHECKIN_API_URL", "https://checkin.example.com/")
	cfg := LoadViewer()
	if cfg.APIURL != "https://checkin.example.com" {
		t.Fatalf("unexpected api url %q", cfg.APIURL)
	}
	if cfg.HubURL != "wss://checkin.example.com/eventHub" {
		t.Fatalf("unexpected hub url %q", cfg.HubURL)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("unexpected poll interval %s", cfg.PollInterval)
	}
}
