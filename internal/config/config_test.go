package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Bind != ":8080" {
		t.Errorf("expected default bind, got %q", cfg.Server.Bind)
	}
	if cfg.Matcher.PokemonWeight != 0.30 {
		t.Errorf("expected default pokemon weight 0.30, got %f", cfg.Matcher.PokemonWeight)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardvault.toml")
	doc := `
log_level = "debug"

[server]
bind = ":9090"

[matcher]
min_confidence = 0.55
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Bind != ":9090" {
		t.Errorf("expected bind override, got %q", cfg.Server.Bind)
	}
	if cfg.Matcher.MinConfidence != 0.55 {
		t.Errorf("expected min_confidence override, got %f", cfg.Matcher.MinConfidence)
	}
	// Untouched sections keep defaults.
	if cfg.Pipeline.MaxConcurrency != 4 {
		t.Errorf("expected default max_concurrency, got %d", cfg.Pipeline.MaxConcurrency)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CARDVAULT_OCR_API_KEY", "secret-ocr")
	t.Setenv("CARDVAULT_DB_PATH", "/tmp/override.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OCR.APIKey != "secret-ocr" {
		t.Errorf("expected OCR key from env, got %q", cfg.OCR.APIKey)
	}
	if cfg.Storage.DBPath != "/tmp/override.db" {
		t.Errorf("expected db path from env, got %q", cfg.Storage.DBPath)
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := Default()
	cfg.Matcher.PokemonWeight = 0.9
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for weights summing past 1.0")
	}

	cfg = Default()
	cfg.Matcher.MinConfidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for min_confidence out of range")
	}

	cfg = Default()
	cfg.Pipeline.MaxConcurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero concurrency")
	}
}
