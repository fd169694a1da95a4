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
	"os"
	"path/filepath"
	"testing"
	"time"
)

type memStore map[string]string

func (m memStore) Get(service, key string) (string, error) { return m[service+"/"+key], nil }
func (m memStore) Set(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}
func (m memStore) Delete(service, key string) error {
	delete(m, service+"/"+key)
	return nil
}

// isolate points the config path into a temp dir and stubs the keychain.
func isolate(t *testing.T) (string, memStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	ms := memStore{}
	t.Cleanup(SetTokenStore(ms))
	return path, ms
}

func TestEnvOverridesBackendURL(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Repository.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Repository.BaseURL = %q, want %q", got, want)
	}
	if env, ok := EnvOverrideFor("repository.base_url"); !ok || env != EnvBackendURL {
		t.Fatalf("EnvOverrideFor = %q %v", env, ok)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestMergeIncludesGenerationAndRepository(t *testing.T) {
	dst := Defaults()
	src := AppConfig{}
	src.Generation.Provider = " Ollama "
	src.Generation.OllamaEndpoint = "http://gpu:11434"
	src.Repository.Driver = "sqlite"
	src.Repository.Path = "/tmp/decks.db"
	mergeInto(&dst, &src)
	if dst.Generation.Provider != "ollama" || dst.Generation.OllamaEndpoint != "http://gpu:11434" {
		t.Fatalf("generation not merged: %#v", dst.Generation)
	}
	if dst.Generation.Model != Defaults().Generation.Model {
		t.Fatalf("empty field overwrote default: %q", dst.Generation.Model)
	}
	if dst.Repository.Driver != "sqlite" || dst.Repository.Path != "/tmp/decks.db" {
		t.Fatalf("repository not merged: %#v", dst.Repository)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/dkw.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/dkw.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "ERROR")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/dkw.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/dkw.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSaveLoadRoundTripAndSecrets(t *testing.T) {
	path, ms := isolate(t)
	cfg := Defaults()
	cfg.Export.Preset = "web"
	cfg.Server.Addr = ":9090"
	t.Setenv(EnvAdminKey, "")
	if err := Save(cfg, Secrets{GeminiAPIKey: "g-key", BackendToken: "tok", AdminKey: "adm"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if ms["DeckWriter/gemini_api_key"] != "g-key" {
		t.Fatalf("secret not stored in keychain: %v", ms)
	}
	got, sec, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Export.Preset != "web" || got.Server.Addr != ":9090" {
		t.Fatalf("round trip lost fields: %#v", got)
	}
	if sec.GeminiAPIKey != "g-key" || sec.BackendToken != "tok" || sec.AdminKey != "adm" {
		t.Fatalf("secrets = %#v", sec)
	}
	t.Setenv(EnvGeminiAPIKey, "from-env")
	if _, sec, _ = Load(); sec.GeminiAPIKey != "from-env" {
		t.Fatalf("env should win over keychain, got %q", sec.GeminiAPIKey)
	}
	if err := ForgetSecrets(); err != nil {
		t.Fatalf("ForgetSecrets: %v", err)
	}
	if len(ms) != 0 {
		t.Fatalf("keychain not cleared: %v", ms)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path, _ := isolate(t)
	if err := os.WriteFile(path, []byte("general: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("DKW_TEST_A=from-file\nDKW_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DKW_TEST_A", "from-env")
	t.Setenv("DKW_TEST_B", "")
	_ = os.Unsetenv("DKW_TEST_B")
	if err := LoadDotEnv(p); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if os.Getenv("DKW_TEST_A") != "from-env" {
		t.Fatalf("existing env overridden")
	}
	if os.Getenv("DKW_TEST_B") != "from-file" {
		t.Fatalf("missing env not loaded from file")
	}
	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}

func TestTimeoutsAndTTL(t *testing.T) {
	if Timeout(0, time.Second) != time.Second || Timeout(250, time.Second) != 250*time.Millisecond {
		t.Fatalf("Timeout conversion wrong")
	}
	if (ServerConfig{TokenTTL: "bogus"}).TTL() != 24*time.Hour {
		t.Fatalf("TTL fallback wrong")
	}
	if (ServerConfig{TokenTTL: "90m"}).TTL() != 90*time.Minute {
		t.Fatalf("TTL parse wrong")
	}
}
