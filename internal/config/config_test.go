package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
store:
  driver: sqlite3
  dsn: data/users.db
completion:
  backend: ollama
  base_url: http://localhost:11434
vision:
  timeout: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))

	c, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", c.Store.Driver)
	assert.Equal(t, "data/users.db", c.Store.DSN)
	assert.Equal(t, "ollama", c.Completion.Backend)
	assert.Equal(t, 15*time.Second, c.Vision.Timeout)
	// untouched sections keep their defaults
	assert.Equal(t, "gpt-4o", c.Completion.PremiumModel)
	assert.Equal(t, 50, c.Session.HistoryCapacity)
	require.NoError(t, c.Validate())
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0600))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c := Default()
	c.Completion.FreeModel = "llama3"

	require.NoError(t, c.SaveToFile(path))
	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/key.json")
	t.Setenv("IMAGE_ASSISTANT_SESSION_SECRET", "s3cret")
	t.Setenv("PORT", "9000")

	c := Default()
	require.NoError(t, c.ApplyEnv())
	assert.Equal(t, "sk-test", c.Completion.APIKey)
	assert.Equal(t, "/etc/key.json", c.Vision.CredentialsFile)
	assert.Equal(t, "s3cret", c.Session.Secret)
	assert.Equal(t, ":9000", c.Server.Addr)

	t.Setenv("PORT", "http")
	assert.Error(t, Default().ApplyEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"store driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"bcrypt cost", func(c *Config) { c.Store.BcryptCost = 2 }},
		{"history capacity", func(c *Config) { c.Session.HistoryCapacity = 0 }},
		{"jpeg quality", func(c *Config) { c.Vision.JPEGQuality = 101 }},
		{"backend", func(c *Config) { c.Completion.Backend = "llamacpp" }},
		{"model", func(c *Config) { c.Completion.FreeModel = "" }},
		{"upload size", func(c *Config) { c.Upload.MaxBytes = 0 }},
		{"formats", func(c *Config) { c.Upload.SupportedFormats = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	t.Setenv("IMAGE_ASSISTANT_SESSION_SECRET", "")
	require.NoError(t, os.Unsetenv("IMAGE_ASSISTANT_SESSION_SECRET"))

	dir := t.TempDir()
	t.Chdir(dir)

	c, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, c.Session.Secret)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("IMAGE_ASSISTANT_SESSION_SECRET=from-dotenv\n"), 0600))
	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", c.Session.Secret)
}
