package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NEON_CONNECTION_STRING", "NEON_TABLE", "RETRO_API_URL", "AUTH_API_URL",
		"RETRO_USERNAME", "RETRO_PASSWORD", "SEND_DELAY", "REQUEST_TIMEOUT",
		"DEFAULT_LIMIT", "REFERENCE_PREFIX", "TOTAL_AMOUNT_MODE", "RETRO_REFERENCES_FILE",
		"RETRO_HEADER_CURRENCY", "RETRO_HEADER_COST_CENTER", "RETRO_HEADER_CARGO_TYPE",
	} {
		if old, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.NeonTable != "invoices" || cfg.SendDelay != 500*time.Millisecond || cfg.DefaultLimit != 10 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ReferencePrefix != "NEON" || cfg.RequestTimeout != time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.References.CharterType != "tc" || cfg.References.GSTTag != "22" || cfg.References.CostTag != "1" {
		t.Errorf("unexpected reference defaults: %+v", cfg.References)
	}
}

func TestRequire(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	for _, part := range []Part{PartSource, PartDestination, PartReferences} {
		if err := cfg.Require(part); err == nil {
			t.Errorf("Require(%d) should fail without configuration", part)
		}
	}

	t.Setenv("NEON_CONNECTION_STRING", "postgres://u:p@localhost/db")
	t.Setenv("RETRO_API_URL", "https://retro.example.com/api/")
	t.Setenv("RETRO_USERNAME", "alice")
	t.Setenv("RETRO_PASSWORD", "secret")
	t.Setenv("RETRO_HEADER_CURRENCY", "17!G!inr")
	t.Setenv("RETRO_HEADER_COST_CENTER", "14!G!cc")
	t.Setenv("RETRO_HEADER_CARGO_TYPE", "9!G!cargo")

	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Require(PartSource, PartDestination, PartReferences); err != nil {
		t.Errorf("Require() error = %v", err)
	}
	if cfg.RetroAPIURL != "https://retro.example.com/api" || cfg.AuthAPIURL != cfg.RetroAPIURL {
		t.Errorf("URLs = %q / %q", cfg.RetroAPIURL, cfg.AuthAPIURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"SEND_DELAY":        "soon",
		"DEFAULT_LIMIT":     "ten",
		"TOTAL_AMOUNT_MODE": "guess",
		"REQUEST_TIMEOUT":   "0s",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", key, value)
			}
		})
	}
}

func TestSendDelayMilliseconds(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEND_DELAY", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SendDelay != 250*time.Millisecond {
		t.Errorf("SendDelay = %v, want 250ms", cfg.SendDelay)
	}
}

func TestEmptyReferencePrefix(t *testing.T) {
	clearEnv(t)
	t.Setenv("REFERENCE_PREFIX", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ReferencePrefix != "" {
		t.Errorf("ReferencePrefix = %q, want empty", cfg.ReferencePrefix)
	}
}

func TestLoadReferencesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "references.yaml")
	content := `header:
  currency: "17!G!inr"
  cost_center: "14!G!cc"
  cargo_type: "9!G!cargo"
gst_rates:
  "18": "22!G!pinned-18"
cost_categories:
  Courier Charge: "1!G!courier"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RETRO_HEADER_CURRENCY", "17!G!override")

	refs, err := LoadReferences(path)
	if err != nil {
		t.Fatalf("LoadReferences() error = %v", err)
	}
	if refs.Currency != "17!G!override" {
		t.Errorf("Currency = %q, want env override", refs.Currency)
	}
	if refs.CostCenter != "14!G!cc" || refs.CargoType != "9!G!cargo" {
		t.Errorf("header = %+v", refs)
	}
	if refs.GSTTokens[18] != "22!G!pinned-18" {
		t.Errorf("GSTTokens = %v", refs.GSTTokens)
	}
	if refs.CostTokens["courier charge"] != "1!G!courier" {
		t.Errorf("CostTokens = %v", refs.CostTokens)
	}
	if err := refs.validate(); err != nil {
		t.Errorf("validate() error = %v", err)
	}
}

func TestLoadReferencesMissingFile(t *testing.T) {
	if _, err := LoadReferences(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing references file")
	}
}
