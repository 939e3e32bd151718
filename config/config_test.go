package config

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateCreatesAndReloadsConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CLINIC_SYNC_DATA_DIR", tempDir)

	firstCfg, firstPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("first LoadOrCreate failed: %v", err)
	}
	if firstCfg.ClientID == "" {
		t.Fatalf("expected non-empty client ID")
	}
	if firstCfg.APIBaseURL != DefaultAPIBaseURL {
		t.Fatalf("expected default API base URL %q, got %q", DefaultAPIBaseURL, firstCfg.APIBaseURL)
	}
	if firstCfg.ForegroundPollSeconds != DefaultForegroundPollSeconds {
		t.Fatalf("expected default foreground cadence %d, got %d", DefaultForegroundPollSeconds, firstCfg.ForegroundPollSeconds)
	}
	if firstCfg.BackgroundPollSeconds != DefaultBackgroundPollSeconds {
		t.Fatalf("expected default background cadence %d, got %d", DefaultBackgroundPollSeconds, firstCfg.BackgroundPollSeconds)
	}
	if firstCfg.BranchID != DefaultBranchID {
		t.Fatalf("expected default branch %d, got %d", DefaultBranchID, firstCfg.BranchID)
	}

	expectedConfigPath := filepath.Join(tempDir, "config.json")
	if firstPath != expectedConfigPath {
		t.Fatalf("expected config path %q, got %q", expectedConfigPath, firstPath)
	}

	secondCfg, secondPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}

	if secondPath != firstPath {
		t.Fatalf("expected config path to be stable, got %q then %q", firstPath, secondPath)
	}
	if secondCfg.ClientID != firstCfg.ClientID {
		t.Fatalf("expected stable client ID, got %q then %q", firstCfg.ClientID, secondCfg.ClientID)
	}
}

func TestLoadOrCreateNormalizesPartialConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CLINIC_SYNC_DATA_DIR", tempDir)

	cfgPath := filepath.Join(tempDir, "config.json")
	if err := EnsureDataDirectories(tempDir); err != nil {
		t.Fatalf("EnsureDataDirectories failed: %v", err)
	}

	partial := &ClientConfig{
		EmployeeID: 7,
	}
	if err := Save(cfgPath, partial); err != nil {
		t.Fatalf("Save partial config failed: %v", err)
	}

	cfg, _, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.EmployeeID != 7 {
		t.Fatalf("expected employee ID to be retained, got %d", cfg.EmployeeID)
	}
	if cfg.ClientID == "" {
		t.Fatalf("expected generated client ID for partial config")
	}
	if cfg.BranchID != DefaultBranchID {
		t.Fatalf("expected normalized branch %d, got %d", DefaultBranchID, cfg.BranchID)
	}
	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Fatalf("expected normalized API base URL, got %q", cfg.APIBaseURL)
	}

	reloaded, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load after normalize failed: %v", err)
	}
	if reloaded.ClientID != cfg.ClientID {
		t.Fatalf("expected normalized config to be persisted")
	}
}

func TestEnvironmentOverridesWinOverFile(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CLINIC_SYNC_DATA_DIR", tempDir)
	t.Setenv("CLINIC_SYNC_API_BASE_URL", "http://localhost:8081")
	t.Setenv("CLINIC_SYNC_EMPLOYEE_ID", "42")
	t.Setenv("CLINIC_SYNC_BRANCH_ID", "3")
	t.Setenv("CLINIC_SYNC_ADMIN_MODE", "true")

	cfg, _, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8081" {
		t.Fatalf("expected API base URL override, got %q", cfg.APIBaseURL)
	}
	if cfg.EmployeeID != 42 {
		t.Fatalf("expected employee ID override 42, got %d", cfg.EmployeeID)
	}
	if cfg.BranchID != 3 {
		t.Fatalf("expected branch ID override 3, got %d", cfg.BranchID)
	}
	if !cfg.AdminMode {
		t.Fatalf("expected admin mode override")
	}
}
