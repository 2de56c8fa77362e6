package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultops/internal/config"
	"github.com/systmms/vaultops/internal/logging"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func testConfig(t *testing.T, out *bytes.Buffer) (*config.Config, string) {
	t.Helper()
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "vaultops.yaml")
	writeFile(t, configPath, "version: 0\nvault:\n  address: https://vault.example.com:8200\n")
	return &config.Config{
		Path:   configPath,
		Logger: logging.NewWithWriter(out, false, true),
	}, tempDir
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	cfg, tempDir := testConfig(t, &out)

	manifestPath := filepath.Join(tempDir, "stack.yaml")
	writeFile(t, manifestPath, `kind: SecretsEngine
spec:
  path: kv
  engine:
    type: kv-v2
---
kind: PasswordPolicy
spec:
  path: example
  policy:
    length: 24
---
kind: Password
spec:
  secretsEnginePath: kv
  path: db/postgres
  secretKey: password
  policyPath: example
  version: 1
`)

	cmd := NewValidateCommand(cfg)
	cmd.SetArgs([]string{manifestPath})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "3 resources valid, 2 ready to start immediately")
}

func TestValidateCommandReportsUnresolvedReference(t *testing.T) {
	var out bytes.Buffer
	cfg, tempDir := testConfig(t, &out)

	manifestPath := filepath.Join(tempDir, "dangling.yaml")
	writeFile(t, manifestPath, `kind: Password
spec:
  secretsEnginePath: kv
  path: db/postgres
  secretKey: password
  policyPath: example
  version: 1
`)

	cmd := NewValidateCommand(cfg)
	cmd.SetArgs([]string{manifestPath})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved-reference")
}

func TestValidateCommandRequiresManifests(t *testing.T) {
	var out bytes.Buffer
	cfg, _ := testConfig(t, &out)

	cmd := NewValidateCommand(cfg)
	cmd.SetArgs([]string{})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no manifests to apply")
}
