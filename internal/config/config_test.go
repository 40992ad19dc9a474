package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/invoices.db", cfg.Database.Path)
	assert.Equal(t, "ABC Supplies Co.", cfg.Extractor.PlaceholderVendor)
	assert.Equal(t, "USD", cfg.Extractor.DefaultCurrency)
	assert.Equal(t, 50, cfg.Extractor.MinTextLength)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Empty(t, cfg.ERPNext.BaseURL)
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
database:
  path: /tmp/custom.db
extractor:
  placeholder_vendor: Fallback Vendor Ltd.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	assert.Equal(t, "Fallback Vendor Ltd.", cfg.Extractor.PlaceholderVendor)
	// Untouched sections keep their defaults.
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("DATABASE_PATH", "/tmp/env.db")
	t.Setenv("ERPNEXT_BASE_URL", "https://erp.example.com")
	t.Setenv("ERPNEXT_API_KEY", "key")
	t.Setenv("ERPNEXT_API_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "https://erp.example.com", cfg.ERPNext.BaseURL)
}

func TestLoadRejectsIncompleteERPNextCredentials(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ERPNEXT_BASE_URL", "https://erp.example.com")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "erpnext.api_key")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "data/invoices.db"},
	}
	assert.NoError(t, valid.Validate())

	badPort := valid
	badPort.Server.Port = 0
	assert.Error(t, badPort.Validate())

	noPath := valid
	noPath.Database.Path = ""
	assert.Error(t, noPath.Validate())
}
