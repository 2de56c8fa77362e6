package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vperrors "github.com/systmms/vaultops/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigLoad(t *testing.T) {
	content := `version: 0

vault:
  address: https://vault.company.com:8200
  authMethod: approle
  roleId: ops-deployer
  namespace: platform

maxConcurrent: 4

manifests:
  - manifests/engines.yaml
  - manifests/pki/
`
	cfg := &Config{Path: writeConfig(t, content)}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, "https://vault.company.com:8200", def.Vault.Address)
	assert.Equal(t, "approle", def.Vault.AuthMethod)
	assert.Equal(t, "platform", def.Vault.Namespace)
	assert.Equal(t, 4, def.MaxConcurrent)
	assert.Equal(t, []string{"manifests/engines.yaml", "manifests/pki/"}, def.Manifests)
}

func TestConfigLoadMissingFile(t *testing.T) {
	cfg := &Config{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	err := cfg.Load()

	var cfgErr vperrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "path", cfgErr.Field)
}

func TestConfigLoadRejectsBadVersion(t *testing.T) {
	cfg := &Config{Path: writeConfig(t, "version: 3\n")}
	err := cfg.Load()

	var cfgErr vperrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "version", cfgErr.Field)
}

func TestConfigLoadRejectsInvalidYAML(t *testing.T) {
	cfg := &Config{Path: writeConfig(t, "version: [unclosed\n")}
	err := cfg.Load()
	assert.Error(t, err)
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("VAULT_ADDR", "https://env.company.com:8200")
	t.Setenv("VAULTOPS_MAX_CONCURRENT", "16")

	cfg := &Config{Path: writeConfig(t, "version: 0\nvault:\n  address: https://file.company.com:8200\n")}
	require.NoError(t, cfg.Load())

	assert.Equal(t, "https://env.company.com:8200", cfg.Definition.Vault.Address)
	assert.Equal(t, 16, cfg.Definition.MaxConcurrent)
}

func TestManifestPaths(t *testing.T) {
	cfg := &Config{Definition: &Definition{Manifests: []string{"manifests/"}}}

	paths, err := cfg.ManifestPaths([]string{"cli.yaml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cli.yaml"}, paths)

	paths, err = cfg.ManifestPaths(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"manifests/"}, paths)

	empty := &Config{Definition: &Definition{}}
	_, err = empty.ManifestPaths(nil)
	var cfgErr vperrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "manifests", cfgErr.Field)
}
