/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: YAML in the user scope, a
// working-directory .env file, DKW_* environment overrides and secrets kept in
// the OS keychain.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	DeckDir        string `yaml:"deck_dir"`
}

// GenerationConfig selects the content provider.
type GenerationConfig struct {
	Provider       string `yaml:"provider"` // "gemini" | "ollama" | "offline"
	Model          string `yaml:"model"`
	ImageModel     string `yaml:"image_model"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	// API keys are not stored on disk; they live in the OS keychain.
}

// RepositoryConfig selects where named projects are saved.
type RepositoryConfig struct {
	Driver      string `yaml:"driver"` // "files" | "sqlite" | "postgres" | "remote"
	Path        string `yaml:"path"`
	DSN         string `yaml:"dsn"`
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

// ServerConfig configures "deckwriter serve".
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	TokenTTL string `yaml:"token_ttl"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	Preset       string `yaml:"preset"` // "web" | "print"
	OutDir       string `yaml:"out_dir"`
	SpeakerNotes bool   `yaml:"speaker_notes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	General       GeneralConfig    `yaml:"general"`
	Generation    GenerationConfig `yaml:"generation"`
	Repository    RepositoryConfig `yaml:"repository"`
	Server        ServerConfig     `yaml:"server"`
	Export        ExportConfig     `yaml:"export"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Secrets are kept out of the YAML file.
type Secrets struct {
	GeminiAPIKey string
	BackendToken string
	AuthSecret   string
	// AdminKey must accompany token requests to the server.
	AdminKey string
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Generation: GenerationConfig{
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			ImageModel:     "gemini-2.5-flash-image",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "llama3.1",
			TimeoutMs:      60000,
		},
		Repository: RepositoryConfig{Driver: "files", BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Server:     ServerConfig{Addr: ":8080", TokenTTL: "24h"},
		Export:     ExportConfig{Preset: "print", OutDir: "exports"},
		Logging:    LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "DKW_CONFIG"
	EnvTelemetryOptIn   = "DKW_TELEMETRY_OPT_IN"
	EnvDeckDir          = "DKW_DECK_DIR"
	EnvGenProvider      = "DKW_GEN_PROVIDER"
	EnvGenModel         = "DKW_GEN_MODEL"
	EnvOllamaEndpoint   = "DKW_OLLAMA_ENDPOINT"
	EnvRepoDriver       = "DKW_REPO_DRIVER"
	EnvRepoPath         = "DKW_REPO_PATH"
	EnvPGDSN            = "DKW_PG_DSN"
	EnvBackendURL       = "DKW_BACKEND_URL"
	EnvBackendTimeoutMs = "DKW_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "DKW_TLS_INSECURE"
	EnvServerAddr       = "DKW_SERVER_ADDR"
	EnvExportPreset     = "DKW_EXPORT_PRESET"
	EnvExportDir        = "DKW_EXPORT_DIR"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "DKW_LOG_LEVEL"
	EnvLogFormat = "DKW_LOG_FORMAT"
	EnvLogSource = "DKW_LOG_SOURCE"
	EnvLogFile   = "DKW_LOG_FILE"
	// secrets
	EnvGeminiAPIKey = "DKW_GEMINI_API_KEY"
	EnvBackendToken = "DKW_BACKEND_TOKEN"
	EnvAuthSecret   = "DKW_AUTH_SECRET"
	EnvAdminKey     = "DKW_ADMIN_KEY"
)

// ConfigPath returns the per-user config file path. DKW_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "DeckWriter")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "DeckWriter")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "deckwriter")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "deckwriter")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// LoadDotEnv reads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the user config file (if present), applies defaults and merges environment overrides.
// Secrets come from the keychain with env vars taking precedence.
func Load() (AppConfig, Secrets, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, Secrets{}, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, Secrets{}, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, loadSecrets(), nil
}

// Save writes the user config YAML and persists non-empty secrets into the OS keyring.
func Save(cfg AppConfig, sec Secrets) error {
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
	return saveSecrets(sec)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	setStr(&dst.General.DeckDir, src.General.DeckDir)

	if v := strings.TrimSpace(src.Generation.Provider); v != "" {
		dst.Generation.Provider = strings.ToLower(v)
	}
	setStr(&dst.Generation.Model, src.Generation.Model)
	setStr(&dst.Generation.ImageModel, src.Generation.ImageModel)
	setStr(&dst.Generation.OllamaEndpoint, src.Generation.OllamaEndpoint)
	setStr(&dst.Generation.OllamaModel, src.Generation.OllamaModel)
	if src.Generation.TimeoutMs != 0 {
		dst.Generation.TimeoutMs = src.Generation.TimeoutMs
	}

	if v := strings.TrimSpace(src.Repository.Driver); v != "" {
		dst.Repository.Driver = strings.ToLower(v)
	}
	setStr(&dst.Repository.Path, src.Repository.Path)
	setStr(&dst.Repository.DSN, src.Repository.DSN)
	setStr(&dst.Repository.BaseURL, src.Repository.BaseURL)
	if src.Repository.TimeoutMs != 0 {
		dst.Repository.TimeoutMs = src.Repository.TimeoutMs
	}
	dst.Repository.TLSInsecure = src.Repository.TLSInsecure

	setStr(&dst.Server.Addr, src.Server.Addr)
	setStr(&dst.Server.TokenTTL, src.Server.TokenTTL)

	if v := strings.TrimSpace(src.Export.Preset); v != "" {
		dst.Export.Preset = strings.ToLower(v)
	}
	setStr(&dst.Export.OutDir, src.Export.OutDir)
	dst.Export.SpeakerNotes = src.Export.SpeakerNotes

	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	str := func(key string, dst *string, lower bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if lower {
				v = strings.ToLower(v)
			}
			*dst = v
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	str(EnvDeckDir, &cfg.General.DeckDir, false)
	str(EnvGenProvider, &cfg.Generation.Provider, true)
	str(EnvGenModel, &cfg.Generation.Model, false)
	str(EnvOllamaEndpoint, &cfg.Generation.OllamaEndpoint, false)
	str(EnvRepoDriver, &cfg.Repository.Driver, true)
	str(EnvRepoPath, &cfg.Repository.Path, false)
	str(EnvPGDSN, &cfg.Repository.DSN, false)
	str(EnvBackendURL, &cfg.Repository.BaseURL, false)
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Repository.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Repository.TLSInsecure = envBool(v)
	}
	str(EnvServerAddr, &cfg.Server.Addr, false)
	str(EnvExportPreset, &cfg.Export.Preset, true)
	str(EnvExportDir, &cfg.Export.OutDir, false)
	// logging overrides
	str(EnvLogLevel, &cfg.Logging.Level, true)
	str(EnvLogFormat, &cfg.Logging.Format, true)
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	str(EnvLogFile, &cfg.Logging.File, false)
}

var overrideKeys = map[string]string{
	"general.telemetry_opt_in":   EnvTelemetryOptIn,
	"general.deck_dir":           EnvDeckDir,
	"generation.provider":        EnvGenProvider,
	"generation.model":           EnvGenModel,
	"generation.ollama_endpoint": EnvOllamaEndpoint,
	"repository.driver":          EnvRepoDriver,
	"repository.path":            EnvRepoPath,
	"repository.dsn":             EnvPGDSN,
	"repository.base_url":        EnvBackendURL,
	"repository.timeout_ms":      EnvBackendTimeoutMs,
	"repository.tls_insecure":    EnvBackendTLSInsec,
	"server.addr":                EnvServerAddr,
	"export.preset":              EnvExportPreset,
	"export.out_dir":             EnvExportDir,
	"logging.level":              EnvLogLevel,
	"logging.format":             EnvLogFormat,
	"logging.source":             EnvLogSource,
	"logging.file":               EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout converts a millisecond setting into a duration, falling back to def.
func Timeout(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// TTL parses the server token lifetime, defaulting to 24h.
func (s ServerConfig) TTL() time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s.TokenTTL)); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}
