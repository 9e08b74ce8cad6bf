package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func validConfig() *Config {
	c := DefaultConfig()
	c.Auth.Secret = "0123456789abcdef"
	return c
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, ":5000", c.Server.Addr)
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, "token", c.Auth.CookieName)
	assert.Equal(t, 72*time.Hour, c.Auth.TokenTTL)

	// No secret by default
	assert.Error(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"short secret", func(c *Config) { c.Auth.Secret = "short" }, true},
		{"bad driver", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"mysql needs dsn", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"mysql with dsn", func(c *Config) {
			c.Database.Driver = "mysql"
			c.Database.DSN = "root@tcp(localhost:3306)/tasks"
		}, false},
		{"negative ttl", func(c *Config) { c.Auth.TokenTTL = -time.Second }, true},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, false},
		{"no cookie name", func(c *Config) { c.Auth.CookieName = "" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskboard.yaml")
	content := `
server:
  addr: ":8080"
auth:
  secret: "a-long-enough-secret"
  token_ttl: 1h
database:
  dsn: /tmp/x.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, time.Hour, c.Auth.TokenTTL)
	assert.Equal(t, "/tmp/x.db", c.Database.DSN)
	// Defaults survive for keys the file omits
	assert.Equal(t, "token", c.Auth.CookieName)
	assert.NoError(t, c.Validate())
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "taskboard.yaml")
	c := validConfig()
	c.Server.Addr = ":9999"
	c.Server.CORSOrigins = []string{"http://localhost:3000"}
	require.NoError(t, c.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestApplyEnv(t *testing.T) {
	c := DefaultConfig()
	c.ApplyEnv(envMap(map[string]string{
		"PORT":                "7000",
		"TASKBOARD_SECRET":    "from-the-environment",
		"TASKBOARD_DB_DRIVER": "mysql",
		"TASKBOARD_DB_DSN":    "u:p@tcp(db:3306)/tasks",
		"TASKBOARD_LOG_LEVEL": "debug",
	}))

	assert.Equal(t, ":7000", c.Server.Addr)
	assert.Equal(t, "from-the-environment", c.Auth.Secret)
	assert.Equal(t, "mysql", c.Database.Driver)
	assert.Equal(t, "u:p@tcp(db:3306)/tasks", c.Database.DSN)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	c := DefaultConfig()
	c.ApplyEnv(envMap(map[string]string{"PORT": "", "TASKBOARD_SECRET": ""}))
	assert.Equal(t, ":5000", c.Server.Addr)
	assert.Empty(t, c.Auth.Secret)
}

func TestDatabaseDSN(t *testing.T) {
	c := validConfig()
	dsn, err := c.DatabaseDSN()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dsn))

	c.Database.DSN = "/data/tb.db"
	dsn, err = c.DatabaseDSN()
	require.NoError(t, err)
	assert.Equal(t, "/data/tb.db", dsn)
}
