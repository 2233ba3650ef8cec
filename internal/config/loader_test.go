package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Importer.Target != "default" {
		t.Fatalf("unexpected default target %q", cfg.Importer.Target)
	}
	if cfg.Importer.Timeout != 30*time.Minute {
		t.Fatalf("unexpected default timeout %s", cfg.Importer.Timeout)
	}
	if cfg.Importer.LockName != "stockfeed.daily_import" {
		t.Fatalf("unexpected default lock name %q", cfg.Importer.LockName)
	}
	if cfg.Database.Host == "" {
		t.Fatalf("database defaults missing")
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `database:
  host: db.internal
  port: 5433
importer:
  inbox_dir: /srv/inbox
  target: acme-drinks
  timeout: 45m
  running_grace: 3h
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5433 {
		t.Fatalf("database settings not applied: %+v", cfg.Database)
	}
	if cfg.Importer.InboxDir != "/srv/inbox" {
		t.Fatalf("inbox_dir not applied: %q", cfg.Importer.InboxDir)
	}
	if cfg.Importer.Target != "acme-drinks" {
		t.Fatalf("target not applied: %q", cfg.Importer.Target)
	}
	if cfg.Importer.Timeout != 45*time.Minute {
		t.Fatalf("timeout not applied: %s", cfg.Importer.Timeout)
	}
	if cfg.Importer.RunningGrace != 3*time.Hour {
		t.Fatalf("running_grace not applied: %s", cfg.Importer.RunningGrace)
	}
	// Unset keys keep their defaults.
	if cfg.Importer.PendingGrace != 15*time.Minute {
		t.Fatalf("pending_grace default lost: %s", cfg.Importer.PendingGrace)
	}
}
