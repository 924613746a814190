// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "anthropic-api-key", "  sk-ant-abc123  \n")
				writeFile(t, dir, "registry-token", "tok_xyz789")
				return dir
			},
			want: map[string]string{
				"anthropic-api-key": "sk-ant-abc123",
				"registry-token":    "tok_xyz789",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "anthropic-api-key", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				"anthropic-api-key": "valid-key",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "anthropic-api-key", "sk-ant-real")
				return dir
			},
			want: map[string]string{
				"anthropic-api-key": "sk-ant-real",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "anthropic-api-key", "ak_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				"anthropic-api-key": "ak_123",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not apply to root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	// Create a file then remove read permission.
	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir)
	require.NoError(t, err)
	// The good file should still be returned; the bad file is skipped with a warning.
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, dir, ".env", "PRESCREEN_TEST_DOTENV=from-file\nPRESCREEN_TEST_PRESET=from-file\n")

	t.Setenv("PRESCREEN_TEST_PRESET", "from-env")
	t.Setenv("PRESCREEN_TEST_DOTENV", "")
	os.Unsetenv("PRESCREEN_TEST_DOTENV")

	require.NoError(t, LoadDotenv(path))
	assert.Equal(t, "from-file", os.Getenv("PRESCREEN_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("PRESCREEN_TEST_PRESET"), "existing variables are not overridden")

	assert.NoError(t, LoadDotenv(filepath.Join(dir, "missing.env")))
}

func TestAnthropicKey(t *testing.T) {
	t.Run("environment wins", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, AnthropicAPIKey, "from-dir")
		t.Setenv(AnthropicAPIKeyEnv, "from-env")

		key, err := AnthropicKey(dir)
		require.NoError(t, err)
		assert.Equal(t, "from-env", key)
	})

	t.Run("directory fallback", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, AnthropicAPIKey, "from-dir\n")
		t.Setenv(AnthropicAPIKeyEnv, "")

		key, err := AnthropicKey(dir)
		require.NoError(t, err)
		assert.Equal(t, "from-dir", key)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(AnthropicAPIKeyEnv, "")
		_, err := AnthropicKey(filepath.Join(t.TempDir(), "none"))
		assert.ErrorIs(t, err, ErrMissing)
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
