package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Gap.MinCount != 1 || cfg.Gap.MinShare != 0.10 {
		t.Errorf("Gap = %+v, want {1 0.10}", cfg.Gap)
	}
	if len(cfg.StageVocabulary) == 0 {
		t.Error("StageVocabulary is empty")
	}
	if cfg.StageVocabulary[0] != "Seed" {
		t.Errorf("StageVocabulary[0] = %q, want Seed", cfg.StageVocabulary[0])
	}

	band := cfg.Band("Grid Infrastructure & Transmission")
	if band.Min != 95 || band.Max != 100 {
		t.Errorf("grid band = %+v, want [95,100]", band)
	}
	if got := cfg.Band("Quantum Teleportation"); got != cfg.Band("Other") {
		t.Errorf("unmatched tag band = %+v, want the Other band", got)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	body := "concurrency: 9\nretry:\n  max_attempts: 5\nclassifier:\n  endpoint: \"${TEST_CLASSIFIER_URL}\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_CLASSIFIER_URL", "http://classifier.test:11434")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency != 9 {
		t.Errorf("Concurrency = %d, want 9 from overlay", cfg.Concurrency)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5 from overlay", cfg.Retry.MaxAttempts)
	}
	if cfg.Classifier.Endpoint != "http://classifier.test:11434" {
		t.Errorf("Classifier.Endpoint = %q, env expansion failed", cfg.Classifier.Endpoint)
	}
	// Fields absent from the overlay keep the embedded defaults.
	if len(cfg.FundingKeywords) == 0 {
		t.Error("overlay wiped FundingKeywords")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestProfileLookup(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	p, ok := cfg.Profile("utility-strategy-desk")
	if !ok {
		t.Fatal("utility-strategy-desk profile not found")
	}
	if !p.PinCategory || p.DefaultCategory != "utility_strategic" {
		t.Errorf("profile = %+v, want pinned utility_strategic", p)
	}
	if _, ok := cfg.Profile("unknown-source"); ok {
		t.Error("unknown source unexpectedly resolved")
	}
}

func TestScoreBandMidpoint(t *testing.T) {
	b := ScoreBand{Min: 70, Max: 75}
	if got := b.Midpoint(); got != 72 {
		t.Errorf("Midpoint = %d, want 72", got)
	}
}
