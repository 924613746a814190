// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from the environment, a .env file, or a
// directory of plain-text files. In the directory each file is one secret:
// the filename is the key name and the trimmed contents are the value.
//
// Supported key files: anthropic-api-key.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// AnthropicAPIKey is the secrets-directory file holding the Claude API key.
	AnthropicAPIKey = "anthropic-api-key"

	// AnthropicAPIKeyEnv is the environment variable checked before the directory.
	AnthropicAPIKeyEnv = "ANTHROPIC_API_KEY"

	// DefaultDir is the secrets directory relative to the working directory.
	DefaultDir = ".secrets"
)

// ErrMissing is returned when a required secret is found nowhere.
var ErrMissing = errors.New("secret not found")

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("secrets.unreadable", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadDotenv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotenv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// AnthropicKey returns the Claude API key from ANTHROPIC_API_KEY, falling
// back to dir/anthropic-api-key. It returns ErrMissing when neither is set.
func AnthropicKey(dir string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(AnthropicAPIKeyEnv)); v != "" {
		return v, nil
	}
	secrets, err := Load(dir)
	if err != nil {
		return "", err
	}
	if v, ok := secrets[AnthropicAPIKey]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%s (set %s or write %s): %w",
		AnthropicAPIKey, AnthropicAPIKeyEnv, filepath.Join(dir, AnthropicAPIKey), ErrMissing)
}
