package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vperrors "github.com/systmms/vaultops/internal/errors"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{
			name:      "missing address",
			cfg:       Config{AuthMethod: "token", Token: "s.abc"},
			wantField: "vault.address",
		},
		{
			name:      "token auth without token",
			cfg:       Config{Address: "https://vault.example.com:8200"},
			wantField: "vault.token",
		},
		{
			name:      "userpass without username",
			cfg:       Config{Address: "https://vault.example.com:8200", AuthMethod: "userpass"},
			wantField: "vault.username",
		},
		{
			name:      "approle without role id",
			cfg:       Config{Address: "https://vault.example.com:8200", AuthMethod: "approle"},
			wantField: "vault.roleId",
		},
		{
			name:      "unknown auth method",
			cfg:       Config{Address: "https://vault.example.com:8200", AuthMethod: "ldap"},
			wantField: "vault.authMethod",
		},
		{
			name: "valid token config",
			cfg:  Config{Address: "https://vault.example.com:8200", AuthMethod: "token", Token: "s.abc"},
		},
		{
			name: "valid userpass config",
			cfg:  Config{Address: "https://vault.example.com:8200", AuthMethod: "userpass", Username: "ops"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr vperrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.NotEmpty(t, cfgErr.Suggestion)
		})
	}
}

func TestConfigApplyEnvOverrides(t *testing.T) {
	t.Setenv("VAULT_ADDR", "https://env.example.com:8200")
	t.Setenv("VAULT_TOKEN", "s.from-env")
	t.Setenv("VAULT_SKIP_VERIFY", "true")

	cfg := Config{Address: "https://file.example.com:8200"}
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "https://env.example.com:8200", cfg.Address)
	assert.Equal(t, "s.from-env", cfg.Token)
	assert.True(t, cfg.TLSSkipVerify)
}

func TestNewGatewayDefaults(t *testing.T) {
	t.Parallel()

	c := NewGateway(nil, nil, Config{})
	assert.Equal(t, DefaultSnapshotLabel, c.label)
	assert.Equal(t, DefaultStateMount, c.state)

	c = NewGateway(nil, nil, Config{SnapshotLabel: "example.com/state", StateMount: "ops-state"})
	assert.Equal(t, "example.com/state", c.label)
	assert.Equal(t, "ops-state", c.state)
}
