package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/waabox/circledeck/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CIRCLECI_TOKEN", "")
	t.Setenv("CIRCLE_TOKEN", "")
	t.Setenv("CIRCLECI_PROJECT", "")
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
refresh = "@every 30s"
refresh_jitter = "500ms"
concurrency = 4
log_file = "/tmp/circledeck.log"

[circleci]
token = "cci_testtoken"
project_slug = "gh/acme/api"
only_mine = true
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CircleCI.Token != "cci_testtoken" {
		t.Errorf("expected token 'cci_testtoken', got '%s'", cfg.CircleCI.Token)
	}
	if cfg.CircleCI.ProjectSlug != "gh/acme/api" {
		t.Errorf("expected slug 'gh/acme/api', got '%s'", cfg.CircleCI.ProjectSlug)
	}
	if !cfg.CircleCI.OnlyMine {
		t.Error("expected only_mine to be true")
	}
	if cfg.RefreshOrDefault() != "@every 30s" {
		t.Errorf("expected refresh '@every 30s', got '%s'", cfg.RefreshOrDefault())
	}
	jitter, err := cfg.JitterOrDefault()
	if err != nil || jitter != 500*time.Millisecond {
		t.Errorf("expected jitter 500ms, got %s (err %v)", jitter, err)
	}
	if cfg.ConcurrencyOrDefault() != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.ConcurrencyOrDefault())
	}
	if cfg.LogFile != "/tmp/circledeck.log" {
		t.Errorf("unexpected log file %q", cfg.LogFile)
	}
}

func TestLoad_EnvVarsTakePrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[circleci]
token = "cci_fromfile"
project_slug = "gh/acme/api"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CIRCLECI_TOKEN", "cci_fromenv")
	t.Setenv("CIRCLECI_PROJECT", "bb/acme/web")

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CircleCI.Token != "cci_fromenv" {
		t.Errorf("expected env token 'cci_fromenv', got '%s'", cfg.CircleCI.Token)
	}
	if cfg.CircleCI.ProjectSlug != "bb/acme/web" {
		t.Errorf("expected env slug 'bb/acme/web', got '%s'", cfg.CircleCI.ProjectSlug)
	}
}

func TestLoad_CircleTokenFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("CIRCLE_TOKEN", "legacy")

	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CircleCI.Token != "legacy" {
		t.Errorf("expected CIRCLE_TOKEN to be used, got '%s'", cfg.CircleCI.Token)
	}

	t.Setenv("CIRCLECI_TOKEN", "preferred")
	cfg, _ = config.LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	if cfg.CircleCI.Token != "preferred" {
		t.Errorf("expected CIRCLECI_TOKEN to win, got '%s'", cfg.CircleCI.Token)
	}
}

func TestLoad_MissingFileIsNotError(t *testing.T) {
	clearEnv(t)
	t.Setenv("CIRCLECI_TOKEN", "cci_onlyenv")
	cfg, err := config.LoadFrom("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("missing file should not be an error, got: %v", err)
	}
	if cfg.CircleCI.Token != "cci_onlyenv" {
		t.Errorf("expected token from env, got '%s'", cfg.CircleCI.Token)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[circleci\ntoken ="), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.LoadFrom(configPath); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestDefaults(t *testing.T) {
	var cfg config.Config
	if cfg.RefreshOrDefault() != "@every 10s" {
		t.Errorf("unexpected default refresh %q", cfg.RefreshOrDefault())
	}
	jitter, err := cfg.JitterOrDefault()
	if err != nil || jitter != 2*time.Second {
		t.Errorf("expected default jitter 2s, got %s (err %v)", jitter, err)
	}
	if cfg.ConcurrencyOrDefault() != 1 {
		t.Errorf("expected default concurrency 1, got %d", cfg.ConcurrencyOrDefault())
	}
}

func TestJitterOrDefault_Invalid(t *testing.T) {
	for _, v := range []string{"soon", "-1s"} {
		cfg := config.Config{RefreshJitter: v}
		if _, err := cfg.JitterOrDefault(); err == nil {
			t.Errorf("expected error for %q", v)
		}
	}
}

func TestSave_RoundTripAndPermissions(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "nested", "config.toml")
	in := config.Config{
		CircleCI: config.CircleCIConfig{Token: "cci_saved", ProjectSlug: "gh/acme/api", OnlyMine: true},
		Refresh:  "@every 1m",
	}
	if err := config.Save(configPath, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %o", info.Mode().Perm())
	}

	out, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestSaveOnlyMine_KeepsOtherValuesAndSkipsEnv(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := config.Save(configPath, config.Config{
		CircleCI: config.CircleCIConfig{ProjectSlug: "gh/acme/api"},
	}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CIRCLECI_TOKEN", "from-env")
	if err := config.SaveOnlyMine(configPath, true); err != nil {
		t.Fatalf("save only mine: %v", err)
	}

	clearEnv(t)
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.CircleCI.OnlyMine {
		t.Error("expected only_mine to be persisted")
	}
	if cfg.CircleCI.ProjectSlug != "gh/acme/api" {
		t.Errorf("slug lost: %q", cfg.CircleCI.ProjectSlug)
	}
	if cfg.CircleCI.Token != "" {
		t.Errorf("env token must not be written, got %q", cfg.CircleCI.Token)
	}
}
