package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestArchiveRoundTrip(t *testing.T) {
	src := t.TempDir()
	cfg := testConfig(t)
	cfg.Store.DBPath = filepath.Join(src, "ledger.db")
	cfg.Documents.OutputDir = filepath.Join(src, "itineraries")
	cfgPath := filepath.Join(src, "config.yaml")

	if err := os.MkdirAll(cfg.Documents.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		cfg.Store.DBPath: "db",
		cfgPath:          "general: {}\n",
		filepath.Join(cfg.Documents.OutputDir, "itinerary_20260101_000000_1_1_abcd1234.pdf"): "%PDF-1.4",
	}
	for p, body := range files {
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	entries := collectBackup(cfgPath, cfg, false)
	if len(entries) != 2 {
		t.Fatalf("entries without documents = %d, want 2", len(entries))
	}
	entries = collectBackup(cfgPath, cfg, true)
	if len(entries) != 3 {
		t.Fatalf("entries with documents = %d, want 3", len(entries))
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := createTarGz(archive, entries); err != nil {
		t.Fatalf("createTarGz: %v", err)
	}

	dst := t.TempDir()
	targets := restoreTargets{
		dbPath:    filepath.Join(dst, "ledger.db"),
		cfgPath:   filepath.Join(dst, "config.yaml"),
		outputDir: filepath.Join(dst, "out"),
	}
	restored, err := extractTarGz(archive, targets)
	if err != nil {
		t.Fatalf("extractTarGz: %v", err)
	}
	if len(restored) != 3 {
		t.Fatalf("restored %d files, want 3: %v", len(restored), restored)
	}

	got, err := os.ReadFile(filepath.Join(targets.outputDir, "itinerary_20260101_000000_1_1_abcd1234.pdf"))
	if err != nil || string(got) != "%PDF-1.4" {
		t.Errorf("itinerary = %q, %v", got, err)
	}
	got, err = os.ReadFile(targets.dbPath)
	if err != nil || string(got) != "db" {
		t.Errorf("ledger = %q, %v", got, err)
	}
}

func TestRestoreTargetsStayInConfiguredLocations(t *testing.T) {
	targets := restoreTargets{
		dbPath:    "/data/ledger.db",
		cfgPath:   "/etc/tripkit/config.yaml",
		outputDir: "/data/out",
	}
	cases := map[string]string{
		"ledger.db":                      "/data/ledger.db",
		"ledger.db-wal":                  "/data/ledger.db-wal",
		"config.json":                    "/etc/tripkit/config.yaml",
		"itineraries/itinerary_a.pdf":    "/data/out/itinerary_a.pdf",
		"itineraries/../../etc/passwd":   "/etc/tripkit/passwd",
		"../../../../tmp/evil.sh":        "/etc/tripkit/evil.sh",
		"itineraries/../itinerary_b.pdf": "/etc/tripkit/itinerary_b.pdf",
	}
	for member, want := range cases {
		if got := targets.targetFor(member); got != filepath.FromSlash(want) {
			t.Errorf("targetFor(%q) = %q, want %q", member, got, want)
		}
	}
}

func TestHumanSize(t *testing.T) {
	if got := humanSize(512); got != "512 B" {
		t.Errorf("humanSize(512) = %q", got)
	}
	if got := humanSize(2048); got != "2.0 KiB" {
		t.Errorf("humanSize(2048) = %q", got)
	}
}
