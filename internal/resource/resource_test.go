package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kvEngine(path string) *Resource {
	return &Resource{
		Kind:          KindSecretsEngine,
		SecretsEngine: &SecretsEngineSpec{Path: path, Engine: EngineOptions{Type: "kv-v2"}},
	}
}

func TestIdentityPerKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		res      *Resource
		expected Identity
	}{
		{
			name:     "secrets engine",
			res:      kvEngine("kv"),
			expected: Identity{Kind: KindSecretsEngine, Path: "kv"},
		},
		{
			name: "issuer",
			res: &Resource{Kind: KindIssuer, Issuer: &IssuerSpec{
				SecretsEnginePath: "pki",
				Name:              "root-2024",
				CertParams:        CertParams{CommonName: "example.com"},
			}},
			expected: Identity{Kind: KindIssuer, Path: "pki/root-2024"},
		},
		{
			name: "password",
			res: &Resource{Kind: KindPassword, Password: &PasswordSpec{
				SecretsEnginePath: "kv",
				Path:              "hello",
				SecretKey:         "foo",
				PolicyPath:        "example",
				Version:           1,
			}},
			expected: Identity{Kind: KindPassword, Path: "kv/hello"},
		},
		{
			name: "ssh key",
			res: &Resource{Kind: KindSSHKey, SSHKey: &SSHKeySpec{
				SecretsEnginePath: "kv",
				Path:              "deploy",
				Version:           1,
				KeyOptions:        KeyOptions{Type: "ed25519"},
				PublicKey:         KeyTarget{SecretKey: "pub"},
				PrivateKey:        KeyTarget{SecretKey: "priv"},
			}},
			expected: Identity{Kind: KindSSHKey, Path: "kv/deploy"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.res.Identity())
			assert.NoError(t, tt.res.Validate())
		})
	}
}

func TestReferences(t *testing.T) {
	t.Parallel()

	root := &Resource{Kind: KindIssuer, Issuer: &IssuerSpec{
		SecretsEnginePath: "pki",
		Name:              "root",
		CertParams:        CertParams{CommonName: "ca.example.com"},
	}}
	assert.Equal(t, []Identity{{Kind: KindSecretsEngine, Path: "pki"}}, root.References())

	intermediate := &Resource{Kind: KindIssuer, Issuer: &IssuerSpec{
		SecretsEnginePath: "pki-int",
		Name:              "int",
		CertParams:        CertParams{CommonName: "int.example.com"},
		Chaining:          &ChainingOptions{UpstreamIssuerRef: "pki/root"},
	}}
	assert.Equal(t, []Identity{
		{Kind: KindSecretsEngine, Path: "pki-int"},
		{Kind: KindIssuer, Path: "pki/root"},
	}, intermediate.References())

	pwd := &Resource{Kind: KindPassword, Password: &PasswordSpec{
		SecretsEnginePath: "kv",
		Path:              "hello",
		SecretKey:         "foo",
		PolicyPath:        "example",
		Version:           1,
	}}
	assert.Equal(t, []Identity{
		{Kind: KindSecretsEngine, Path: "kv"},
		{Kind: KindPasswordPolicy, Path: "example"},
	}, pwd.References())

	assert.Empty(t, kvEngine("kv").References())
}

func TestValidateRejectsBadSpecs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  *Resource
	}{
		{
			name: "engine with unsupported type",
			res: &Resource{Kind: KindSecretsEngine, SecretsEngine: &SecretsEngineSpec{
				Path: "db", Engine: EngineOptions{Type: "database"},
			}},
		},
		{
			name: "password with version zero",
			res: &Resource{Kind: KindPassword, Password: &PasswordSpec{
				SecretsEnginePath: "kv", Path: "x", SecretKey: "k", PolicyPath: "p", Version: 0,
			}},
		},
		{
			name: "password with bad encoding",
			res: &Resource{Kind: KindPassword, Password: &PasswordSpec{
				SecretsEnginePath: "kv", Path: "x", SecretKey: "k", PolicyPath: "p", Version: 1,
				Encoding: "hex",
			}},
		},
		{
			name: "ssh key with unknown algorithm",
			res: &Resource{Kind: KindSSHKey, SSHKey: &SSHKeySpec{
				SecretsEnginePath: "kv", Path: "x", Version: 1,
				KeyOptions: KeyOptions{Type: "dsa"},
				PublicKey:  KeyTarget{SecretKey: "pub"},
				PrivateKey: KeyTarget{SecretKey: "priv"},
			}},
		},
		{
			name: "issuer without common name",
			res: &Resource{Kind: KindIssuer, Issuer: &IssuerSpec{
				SecretsEnginePath: "pki", Name: "root",
			}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, tt.res.Validate())
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	pwd := &Resource{Kind: KindPassword, Password: &PasswordSpec{
		SecretsEnginePath: "kv",
		Path:              "hello",
		SecretKey:         "foo",
		PolicyPath:        "example",
		Version:           2,
	}}

	snap, err := NewSnapshot(pwd)
	require.NoError(t, err)
	assert.Equal(t, KindPassword, snap.Kind)
	assert.Equal(t, "kv/hello", snap.Identity)
	assert.Equal(t, 2, snap.Version)

	encoded, err := snap.Encode()
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(encoded)
	require.NoError(t, err)
	assert.True(t, snap.SpecEquals(decoded))

	// A changed spec no longer compares equal.
	pwd.Password.PolicyPath = "other"
	changed, err := NewSnapshot(pwd)
	require.NoError(t, err)
	assert.False(t, snap.SpecEquals(changed))
}
