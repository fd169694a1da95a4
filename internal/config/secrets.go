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
	"strings"

	"github.com/zalando/go-keyring"
)

// Service/keys for OS keyring.
const (
	keyringService   = "DeckWriter"
	keyringGeminiKey = "gemini_api_key"
	keyringToken     = "backend_token"
	keyringAuth      = "auth_secret"
	keyringAdmin     = "admin_key"
)

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) {
	v, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return v, err
}
func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error {
	if err := keyring.Delete(service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

var tokenStore TokenStore = osKeyring{}

// SetTokenStore swaps the keyring backend and returns a restore func.
func SetTokenStore(ts TokenStore) (restore func()) {
	prev := tokenStore
	tokenStore = ts
	return func() { tokenStore = prev }
}

func secret(env, key string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	// keychain may be unavailable (headless CI); treat as unset
	v, _ := tokenStore.Get(keyringService, key)
	return v
}

func loadSecrets() Secrets {
	return Secrets{
		GeminiAPIKey: secret(EnvGeminiAPIKey, keyringGeminiKey),
		BackendToken: secret(EnvBackendToken, keyringToken),
		AuthSecret:   secret(EnvAuthSecret, keyringAuth),
		AdminKey:     secret(EnvAdminKey, keyringAdmin),
	}
}

func saveSecrets(s Secrets) error {
	pairs := []struct{ key, val string }{
		{keyringGeminiKey, s.GeminiAPIKey},
		{keyringToken, s.BackendToken},
		{keyringAuth, s.AuthSecret},
		{keyringAdmin, s.AdminKey},
	}
	for _, p := range pairs {
		if p.val == "" {
			continue
		}
		if err := tokenStore.Set(keyringService, p.key, p.val); err != nil {
			return err
		}
	}
	return nil
}

// ForgetSecrets removes every stored secret from the keychain.
func ForgetSecrets() error {
	for _, k := range []string{keyringGeminiKey, keyringToken, keyringAuth, keyringAdmin} {
		if err := tokenStore.Delete(keyringService, k); err != nil {
			return err
		}
	}
	return nil
}
