package keygen

import (
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateSupportedTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       Options
		pubPrefix  string
	}{
		{name: "rsa default bits", opts: Options{Type: "rsa"}, pubPrefix: "ssh-rsa "},
		{name: "ec default curve", opts: Options{Type: "ec"}, pubPrefix: "ecdsa-sha2-nistp256 "},
		{name: "ec p384", opts: Options{Type: "ec", Curve: "p384"}, pubPrefix: "ecdsa-sha2-nistp384 "},
		{name: "ed25519", opts: Options{Type: "ed25519"}, pubPrefix: "ssh-ed25519 "},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pair, err := Generate(tt.opts)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(pair.PublicKey, tt.pubPrefix),
				"public key %q should start with %q", pair.PublicKey, tt.pubPrefix)
			assert.False(t, strings.HasSuffix(pair.PublicKey, "\n"))

			block, rest := pem.Decode([]byte(pair.PrivateKey))
			require.NotNil(t, block)
			assert.Equal(t, "PRIVATE KEY", block.Type)
			assert.Empty(t, rest)

			_, _, _, _, err = ssh.ParseAuthorizedKey([]byte(pair.PublicKey))
			assert.NoError(t, err)
		})
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	t.Parallel()

	_, err := Generate(Options{Type: "dsa"})
	assert.ErrorContains(t, err, "unsupported key type")

	_, err = Generate(Options{Type: "rsa", Bits: 1024})
	assert.ErrorContains(t, err, "below the 2048-bit minimum")

	_, err = Generate(Options{Type: "ec", Curve: "secp256k1"})
	assert.ErrorContains(t, err, "unsupported curve")
}

func TestGeneratedKeysAreUnique(t *testing.T) {
	t.Parallel()

	a, err := Generate(Options{Type: "ed25519"})
	require.NoError(t, err)
	b, err := Generate(Options{Type: "ed25519"})
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}
