/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Storage       StorageConfig `yaml:"storage"`
	Images        ImagesConfig  `yaml:"images"`
	Logging       LoggingConfig `yaml:"logging"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

// StorageConfig selects the key/value backend that holds panels and the saved project.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "file" | "sqlite" | "memory"
	DataDir string `yaml:"data_dir"`
}

// ImagesConfig drives the placeholder image lookup.
type ImagesConfig struct {
	BaseURL        string `yaml:"base_url"`
	Online         bool   `yaml:"online"` // resolve URLs over HTTP instead of building them locally
	TimeoutMs      int    `yaml:"timeout_ms"`
	RateIntervalMs int    `yaml:"rate_interval_ms"`
	CacheTTLSec    int    `yaml:"cache_ttl_sec"`
	// The access key is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Storage:       StorageConfig{Backend: "file", DataDir: ""},
		Images: ImagesConfig{
			BaseURL:        "https://source.unsplash.com",
			Online:         false,
			TimeoutMs:      10000,
			RateIntervalMs: 500,
			CacheTTLSec:    600,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvStorageBackend  = "GNV_STORAGE_BACKEND"
	EnvDataDir         = "GNV_DATA_DIR"
	EnvImagesBaseURL   = "GNV_IMAGES_BASE_URL"
	EnvImagesOnline    = "GNV_IMAGES_ONLINE"
	EnvImagesTimeoutMs = "GNV_IMAGES_TIMEOUT_MS"
	EnvTelemetryOptIn  = "GNV_TELEMETRY_OPT_IN"
	EnvLogLevel        = "GNV_LOG_LEVEL"
	EnvLogFormat       = "GNV_LOG_FORMAT"
	EnvLogSource       = "GNV_LOG_SOURCE"
	EnvLogFile         = "GNV_LOG_FILE"
	// EnvConfigPath points at an alternative config file (tests, portable installs).
	EnvConfigPath = "GNV_CONFIG"
)

const (
	keyringService   = "GraphicNovel"
	keyringAccessKey = "images_access_key"
)

// configDir resolves the per-user application directory.
func configDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GraphicNovel")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GraphicNovel")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "graphicnovel")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "graphicnovel")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir returns the directory used by the file and sqlite storage backends.
func (c AppConfig) DataDir() (string, error) {
	if d := strings.TrimSpace(c.Storage.DataDir); d != "" {
		return d, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// Load reads the user config file (if present), applies defaults and environment
// overrides, and fetches the image service access key from the keyring.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	key, _ := tokenStore.Get(keyringService, keyringAccessKey)
	return cfg, key, nil
}

// Save writes the config YAML and stores the access key in the OS keyring (if non-empty).
func Save(cfg AppConfig, accessKey string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if accessKey != "" {
		if err := tokenStore.Set(keyringService, keyringAccessKey, accessKey); err != nil {
			return err
		}
	}
	return nil
}

// ForgetAccessKey removes the stored image service key.
func ForgetAccessKey() error {
	return tokenStore.Delete(keyringService, keyringAccessKey)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if v := strings.ToLower(strings.TrimSpace(src.Storage.Backend)); v != "" {
		dst.Storage.Backend = v
	}
	if v := strings.TrimSpace(src.Storage.DataDir); v != "" {
		dst.Storage.DataDir = v
	}
	if v := strings.TrimSpace(src.Images.BaseURL); v != "" {
		dst.Images.BaseURL = v
	}
	dst.Images.Online = src.Images.Online
	if src.Images.TimeoutMs > 0 {
		dst.Images.TimeoutMs = src.Images.TimeoutMs
	}
	if src.Images.RateIntervalMs > 0 {
		dst.Images.RateIntervalMs = src.Images.RateIntervalMs
	}
	if src.Images.CacheTTLSec > 0 {
		dst.Images.CacheTTLSec = src.Images.CacheTTLSec
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvStorageBackend)); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvImagesBaseURL)); v != "" {
		cfg.Images.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvImagesOnline)); v != "" {
		cfg.Images.Online = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvImagesTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Images.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// Timeout returns the image request timeout, falling back to the default.
func (i ImagesConfig) Timeout() time.Duration {
	if i.TimeoutMs <= 0 {
		return time.Duration(Defaults().Images.TimeoutMs) * time.Millisecond
	}
	return time.Duration(i.TimeoutMs) * time.Millisecond
}

// RateInterval returns the minimum spacing between image lookups.
func (i ImagesConfig) RateInterval() time.Duration {
	if i.RateIntervalMs <= 0 {
		return time.Duration(Defaults().Images.RateIntervalMs) * time.Millisecond
	}
	return time.Duration(i.RateIntervalMs) * time.Millisecond
}

// CacheTTL returns how long resolved image URLs are reused.
func (i ImagesConfig) CacheTTL() time.Duration {
	if i.CacheTTLSec <= 0 {
		return time.Duration(Defaults().Images.CacheTTLSec) * time.Second
	}
	return time.Duration(i.CacheTTLSec) * time.Second
}
