package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "clinic-sync"
	// DefaultAPIBaseURL is the backend API root used when no override exists.
	DefaultAPIBaseURL = "https://prospine.in/admin/mobile/api"
	// DefaultFileBaseURL is the root that attachment paths are joined onto.
	DefaultFileBaseURL = "https://prospine.in/"
	// DefaultBranchID is assumed when the stored identity carries no branch.
	DefaultBranchID = 1
	// DefaultForegroundPollSeconds is the cadence for the open conversation.
	DefaultForegroundPollSeconds = 3
	// DefaultBackgroundPollSeconds is the cadence for unread counts and
	// notification badges.
	DefaultBackgroundPollSeconds = 30
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
	// envFileName is an optional dotenv file loaded from the data directory.
	envFileName = ".env"
)

// ClientConfig contains persistent local client settings and the identity
// that scopes every backend request.
type ClientConfig struct {
	ClientID              string `json:"client_id"`
	APIBaseURL            string `json:"api_base_url"`
	FileBaseURL           string `json:"file_base_url"`
	EmployeeID            int64  `json:"employee_id"`
	BranchID              int64  `json:"branch_id"`
	AdminMode             bool   `json:"admin_mode"`
	ForegroundPollSeconds int    `json:"foreground_poll_seconds"`
	BackgroundPollSeconds int    `json:"background_poll_seconds"`
}

// ForegroundPollInterval returns the open-conversation polling cadence.
func (c *ClientConfig) ForegroundPollInterval() time.Duration {
	return time.Duration(c.ForegroundPollSeconds) * time.Second
}

// BackgroundPollInterval returns the badge and notification polling cadence.
func (c *ClientConfig) BackgroundPollInterval() time.Duration {
	return time.Duration(c.BackgroundPollSeconds) * time.Second
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If CLINIC_SYNC_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("CLINIC_SYNC_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory if needed.
func EnsureDataDirectories(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create directory %q: %w", dataDir, err)
	}
	return nil
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*ClientConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ClientConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *ClientConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures the data directory and config exist, loads an optional
// .env file from the data directory, applies environment overrides, and
// returns the effective configuration plus its path.
func LoadOrCreate() (*ClientConfig, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", err
	}

	// A missing .env is the normal case.
	_ = godotenv.Load(filepath.Join(dataDir, envFileName))

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = defaultConfig()
		applyEnvOverrides(cfg)
		normalizeDefaults(cfg)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}

		return cfg, cfgPath, nil
	}

	applyEnvOverrides(cfg)
	if normalizeDefaults(cfg) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	return cfg, cfgPath, nil
}

func defaultConfig() *ClientConfig {
	return &ClientConfig{
		ClientID:              uuid.NewString(),
		APIBaseURL:            DefaultAPIBaseURL,
		FileBaseURL:           DefaultFileBaseURL,
		BranchID:              DefaultBranchID,
		ForegroundPollSeconds: DefaultForegroundPollSeconds,
		BackgroundPollSeconds: DefaultBackgroundPollSeconds,
	}
}

func applyEnvOverrides(cfg *ClientConfig) {
	if v := os.Getenv("CLINIC_SYNC_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("CLINIC_SYNC_FILE_BASE_URL"); v != "" {
		cfg.FileBaseURL = v
	}
	if v := os.Getenv("CLINIC_SYNC_EMPLOYEE_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			cfg.EmployeeID = id
		}
	}
	if v := os.Getenv("CLINIC_SYNC_BRANCH_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			cfg.BranchID = id
		}
	}
	if v := os.Getenv("CLINIC_SYNC_ADMIN_MODE"); v != "" {
		if admin, err := strconv.ParseBool(v); err == nil {
			cfg.AdminMode = admin
		}
	}
}

func normalizeDefaults(cfg *ClientConfig) bool {
	updated := false

	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
		updated = true
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
		updated = true
	}
	if cfg.FileBaseURL == "" {
		cfg.FileBaseURL = DefaultFileBaseURL
		updated = true
	}
	if cfg.BranchID <= 0 {
		cfg.BranchID = DefaultBranchID
		updated = true
	}
	if cfg.ForegroundPollSeconds <= 0 {
		cfg.ForegroundPollSeconds = DefaultForegroundPollSeconds
		updated = true
	}
	if cfg.BackgroundPollSeconds <= 0 {
		cfg.BackgroundPollSeconds = DefaultBackgroundPollSeconds
		updated = true
	}

	return updated
}
