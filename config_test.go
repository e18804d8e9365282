package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := LoadConfig()
	if cfg.DBPath != "./episync.db" {
		t.Fatalf("unexpected default db path: %q", cfg.DBPath)
	}
	if cfg.ArchiveAPIBase != "https://api.data.gov.hk/v1/historical-archive" {
		t.Fatalf("unexpected default archive base: %q", cfg.ArchiveAPIBase)
	}
	if cfg.SyncSchedule != "30 * * * *" {
		t.Fatalf("unexpected default schedule: %q", cfg.SyncSchedule)
	}
	if cfg.Timezone != "Asia/Hong_Kong" || cfg.Location == nil {
		t.Fatalf("unexpected default timezone: %q", cfg.Timezone)
	}
	if !cfg.SeedStart.Equal(time.Date(2020, 3, 1, 0, 0, 0, 0, cfg.Location)) {
		t.Fatalf("unexpected seed start: %v", cfg.SeedStart)
	}
	if !cfg.TolerateSet()[1882] {
		t.Fatalf("expected default tolerate list to include 1882, got %v", cfg.TolerateCaseIDs)
	}
}

func TestLoadConfigFromYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
db_path: /tmp/custom.db
sync_schedule: "0 */2 * * *"
timezone: UTC
tolerate_case_ids: [7, 8]
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DB_PATH", "/tmp/env-wins.db")

	cfg := LoadConfig()
	if cfg.DBPath != "/tmp/env-wins.db" {
		t.Fatalf("env must override yaml, got %q", cfg.DBPath)
	}
	if cfg.SyncSchedule != "0 */2 * * *" {
		t.Fatalf("unexpected schedule: %q", cfg.SyncSchedule)
	}
	set := cfg.TolerateSet()
	if !set[7] || !set[8] || set[1882] {
		t.Fatalf("unexpected tolerate set: %v", cfg.TolerateCaseIDs)
	}
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	n.PostSummary("nothing to see") // must not panic
}
