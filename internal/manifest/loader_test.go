package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/resource"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const multiDocManifest = `kind: SecretsEngine
spec:
  path: kv
  engine:
    type: kv-v2
    maxVersions: 10
---
kind: PasswordPolicy
spec:
  path: example
  policy:
    length: 32
    rules:
      - charset: "0123456789"
        minChars: 2
---
kind: Password
spec:
  secretsEnginePath: kv
  path: db/postgres
  secretKey: password
  policyPath: example
  version: 1
  encoding: base64
`

func TestLoadMultiDocumentFile(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, t.TempDir(), "all.yaml", multiDocManifest)
	resources, err := Load([]string{path})
	require.NoError(t, err)
	require.Len(t, resources, 3)

	assert.Equal(t, resource.KindSecretsEngine, resources[0].Kind)
	assert.Equal(t, 10, resources[0].SecretsEngine.Engine.MaxVersions)

	assert.Equal(t, resource.KindPasswordPolicy, resources[1].Kind)
	require.Len(t, resources[1].PasswordPolicy.Policy.Rules, 1)
	assert.Equal(t, 2, resources[1].PasswordPolicy.Policy.Rules[0].MinChars)

	assert.Equal(t, resource.KindPassword, resources[2].Kind)
	assert.Equal(t, "base64", resources[2].Password.Encoding)
	assert.Equal(t, "Password:kv/db/postgres", resources[2].Identity().String())
}

func TestLoadDirectoryWalksYAMLFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "10-engine.yaml", "kind: SecretsEngine\nspec:\n  path: kv\n  engine:\n    type: kv-v2\n")
	writeManifest(t, dir, "20-policy.yml", "kind: PasswordPolicy\nspec:\n  path: example\n  policy:\n    length: 16\n")
	writeManifest(t, dir, "README.md", "not a manifest")
	writeManifest(t, dir, "nested/30-engine.yaml", "kind: SecretsEngine\nspec:\n  path: pki\n  engine:\n    type: pki\n")

	resources, err := Load([]string{dir})
	require.NoError(t, err)
	require.Len(t, resources, 3)
	// Files load in sorted path order.
	assert.Equal(t, resource.KindSecretsEngine, resources[0].Kind)
	assert.Equal(t, "kv", resources[0].SecretsEngine.Path)
	assert.Equal(t, "pki", resources[2].SecretsEngine.Path)
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, t.TempDir(), "bad.yaml", "kind: Gadget\nspec:\n  path: x\n")
	_, err := Load([]string{path})

	var me vperrors.ManifestError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, vperrors.ManifestUnsupportedKind, me.Kind)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "engine with bad type",
			content: "kind: SecretsEngine\nspec:\n  path: kv\n  engine:\n    type: transit\n",
		},
		{
			name:    "password without version",
			content: "kind: Password\nspec:\n  secretsEnginePath: kv\n  path: p\n  secretKey: k\n  policyPath: pol\n",
		},
		{
			name:    "ssh key with zero version",
			content: "kind: SSHKey\nspec:\n  secretsEnginePath: kv\n  path: p\n  version: 0\n  keyOptions:\n    type: ed25519\n  publicKey:\n    secretKey: pub\n  privateKey:\n    secretKey: priv\n",
		},
		{
			name:    "document without kind",
			content: "spec:\n  path: kv\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeManifest(t, t.TempDir(), "bad.yaml", tt.content)
			_, err := Load([]string{path})

			var me vperrors.ManifestError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, vperrors.ManifestInvalidDocument, me.Kind)
		})
	}
}

func TestLoadSkipsEmptyDocuments(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, t.TempDir(), "sparse.yaml",
		"---\n---\nkind: PasswordPolicy\nspec:\n  path: example\n  policy:\n    length: 16\n---\n")
	resources, err := Load([]string{path})
	require.NoError(t, err)
	assert.Len(t, resources, 1)
}

func TestLoadFailsOnEmptyResult(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, t.TempDir(), "empty.yaml", "")
	_, err := Load([]string{path})
	var ue vperrors.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "No resources")
}

func TestLoadMissingPath(t *testing.T) {
	t.Parallel()

	_, err := Load([]string{filepath.Join(t.TempDir(), "nope.yaml")})
	var ue vperrors.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "Cannot read manifest path")
}
