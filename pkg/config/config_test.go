package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "discrip.yaml")
	require.NoError(t, os.WriteFile(file, []byte("code_page: cp437\nworkers: 2\nwad_pattern: \"*.pak\"\n"), 0o600))
	t.Setenv("DISCRIP_WORKERS", "8")

	cfg, err := Load(New(), file)
	require.NoError(t, err)
	assert.Equal(t, "cp437", cfg.CodePage)
	assert.Equal(t, "*.pak", cfg.WADPattern)
	assert.Equal(t, 8, cfg.Workers, "environment wins over the file")
	assert.Equal(t, "*.ini", cfg.ConfigPattern)

	cp, err := cfg.CodePageTable()
	require.NoError(t, err)
	assert.Equal(t, "cp437", cp.Name())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"code page", func(c *Config) { c.CodePage = "ebcdic" }},
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"threshold", func(c *Config) { c.ZeroCopyThreshold = -1 }},
		{"pattern", func(c *Config) { c.WADPattern = "[" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
