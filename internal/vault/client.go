package vault

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"

	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/logging"
	"github.com/systmms/vaultops/internal/resource"
)

const (
	// DefaultSnapshotLabel is the vendor-namespaced metadata key the applied
	// spec snapshot is stored under.
	DefaultSnapshotLabel = "vaultops.systmms.io/snapshot"

	// DefaultStateMount is the KV v2 mount holding bookkeeping snapshots for
	// kinds whose Vault objects have no custom-metadata slot of their own.
	DefaultStateMount = "vaultops-state"
)

// Config holds the Vault connection and authentication settings.
type Config struct {
	Address    string `yaml:"address"`
	Namespace  string `yaml:"namespace,omitempty"`
	AuthMethod string `yaml:"authMethod"` // token, userpass, approle

	Token    string `yaml:"token,omitempty"` // discouraged, prefer VAULT_TOKEN
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"` // discouraged, prefer VAULT_USERPASS_PASSWORD
	RoleID   string `yaml:"roleId,omitempty"`
	SecretID string `yaml:"secretId,omitempty"` // discouraged, prefer VAULT_SECRET_ID

	CACert        string `yaml:"caCert,omitempty"`
	TLSSkipVerify bool   `yaml:"tlsSkipVerify,omitempty"`

	SnapshotLabel string `yaml:"snapshotLabel,omitempty"`
	StateMount    string `yaml:"stateMount,omitempty"`
}

// ApplyEnvOverrides merges the standard Vault environment variables over the
// file-provided settings.
func (c *Config) ApplyEnvOverrides() {
	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		c.Address = addr
	}
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		c.Token = token
	}
	if ns := os.Getenv("VAULT_NAMESPACE"); ns != "" {
		c.Namespace = ns
	}
	if caCert := os.Getenv("VAULT_CACERT"); caCert != "" {
		c.CACert = caCert
	}
	if roleID := os.Getenv("VAULT_ROLE_ID"); roleID != "" {
		c.RoleID = roleID
	}
	if secretID := os.Getenv("VAULT_SECRET_ID"); secretID != "" {
		c.SecretID = secretID
	}
	if password := os.Getenv("VAULT_USERPASS_PASSWORD"); password != "" {
		c.Password = password
	}
	if skip := os.Getenv("VAULT_SKIP_VERIFY"); skip == "1" || strings.EqualFold(skip, "true") {
		c.TLSSkipVerify = true
	}
}

// Validate checks that a usable connection can be attempted.
func (c *Config) Validate() error {
	if c.Address == "" {
		return vperrors.ConfigError{
			Field:      "vault.address",
			Message:    "Vault address is required",
			Suggestion: "Set 'vault.address' in vaultops.yaml or the VAULT_ADDR environment variable",
		}
	}
	switch c.AuthMethod {
	case "", "token":
		if c.Token == "" {
			return vperrors.ConfigError{
				Field:      "vault.token",
				Message:    "Vault token is required for token auth",
				Suggestion: "Set VAULT_TOKEN or switch vault.authMethod to userpass/approle",
			}
		}
	case "userpass":
		if c.Username == "" {
			return vperrors.ConfigError{
				Field:      "vault.username",
				Message:    "Username is required for userpass auth",
				Suggestion: "Set 'vault.username' in vaultops.yaml",
			}
		}
	case "approle":
		if c.RoleID == "" {
			return vperrors.ConfigError{
				Field:      "vault.roleId",
				Message:    "Role ID is required for AppRole auth",
				Suggestion: "Set 'vault.roleId' in vaultops.yaml or VAULT_ROLE_ID",
			}
		}
	default:
		return vperrors.ConfigError{
			Field:      "vault.authMethod",
			Value:      c.AuthMethod,
			Message:    "unsupported authentication method",
			Suggestion: "Supported methods: token, userpass, approle",
		}
	}
	return nil
}

// NewAPIClient builds an authenticated Vault API client. Tokens obtained from
// a userpass or AppRole login are cached in the OS keyring so re-runs reuse
// the session instead of re-authenticating.
func NewAPIClient(ctx context.Context, cfg Config, logger *logging.Logger) (*api.Client, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address
	if cfg.CACert != "" || cfg.TLSSkipVerify {
		tlsCfg := &api.TLSConfig{CACert: cfg.CACert, Insecure: cfg.TLSSkipVerify}
		if err := apiCfg.ConfigureTLS(tlsCfg); err != nil {
			return nil, vperrors.UserError{
				Message:    "Failed to configure TLS for Vault",
				Details:    err.Error(),
				Suggestion: "Check 'vault.caCert' points at a readable PEM file",
			}
		}
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, vperrors.UserError{
			Message:    "Failed to create Vault client",
			Details:    err.Error(),
			Suggestion: "Check 'vault.address' is a valid URL",
		}
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	switch cfg.AuthMethod {
	case "", "token":
		client.SetToken(cfg.Token)
		return client, nil
	case "userpass":
		return client, loginWithCache(ctx, client, cfg, logger, func() (string, map[string]interface{}) {
			return "auth/userpass/login/" + cfg.Username, map[string]interface{}{"password": cfg.Password}
		})
	case "approle":
		return client, loginWithCache(ctx, client, cfg, logger, func() (string, map[string]interface{}) {
			return "auth/approle/login", map[string]interface{}{"role_id": cfg.RoleID, "secret_id": cfg.SecretID}
		})
	}
	return nil, fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
}

// loginWithCache tries a keyring-cached token first and falls back to a fresh
// login, caching the resulting session token.
func loginWithCache(
	ctx context.Context,
	client *api.Client,
	cfg Config,
	logger *logging.Logger,
	buildLogin func() (string, map[string]interface{}),
) error {
	store := NewTokenStore(cfg.Address, logger)

	if token, ok := store.Load(); ok {
		client.SetToken(token)
		if _, err := client.Auth().Token().LookupSelfWithContext(ctx); err == nil {
			logger.Debug("Reusing cached Vault session token")
			return nil
		}
		logger.Debug("Cached Vault token is no longer valid, logging in again")
		store.Clear()
		client.ClearToken()
	}

	path, payload := buildLogin()
	secret, err := client.Logical().WriteWithContext(ctx, path, payload)
	if err != nil {
		return vperrors.UserError{
			Message:    "Failed to authenticate with Vault",
			Details:    err.Error(),
			Suggestion: "Check your credentials and 'vault.authMethod' configuration",
		}
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return vperrors.UserError{
			Message:    "Vault login returned no client token",
			Suggestion: "Check the auth method is enabled on the server",
		}
	}

	client.SetToken(secret.Auth.ClientToken)
	store.Save(secret.Auth.ClientToken)
	return nil
}

// Client implements Gateway against a live Vault server.
type Client struct {
	api    *api.Client
	logger *logging.Logger
	label  string
	state  string

	mu              sync.Mutex
	stateMountReady bool
}

// NewGateway wraps an authenticated API client as a remote state gateway.
func NewGateway(apiClient *api.Client, logger *logging.Logger, cfg Config) *Client {
	label := cfg.SnapshotLabel
	if label == "" {
		label = DefaultSnapshotLabel
	}
	state := cfg.StateMount
	if state == "" {
		state = DefaultStateMount
	}
	return &Client{api: apiClient, logger: logger, label: label, state: state}
}

// Fetch reads the current remote representation for the resource's identity.
func (c *Client) Fetch(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	switch res.Kind {
	case resource.KindSecretsEngine:
		return c.fetchSecretsEngine(ctx, res)
	case resource.KindPasswordPolicy:
		return c.fetchPasswordPolicy(ctx, res)
	case resource.KindIssuer:
		return c.fetchIssuer(ctx, res)
	case resource.KindPKIRole:
		return c.fetchPKIRole(ctx, res)
	case resource.KindPassword:
		return c.fetchKVSecret(ctx, res, res.Password.SecretsEnginePath, res.Password.Path)
	case resource.KindSSHKey:
		return c.fetchKVSecret(ctx, res, res.SSHKey.SecretsEnginePath, res.SSHKey.Path)
	}
	return nil, fmt.Errorf("unsupported resource kind %q", res.Kind)
}

// Create materializes the resource remotely and stamps its snapshot.
func (c *Client) Create(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	switch res.Kind {
	case resource.KindSecretsEngine:
		return c.createSecretsEngine(ctx, res)
	case resource.KindPasswordPolicy:
		return c.writePasswordPolicy(ctx, res)
	case resource.KindIssuer:
		return c.createIssuer(ctx, res)
	case resource.KindPKIRole:
		return c.writePKIRole(ctx, res)
	case resource.KindPassword:
		return c.writePassword(ctx, res, nil)
	case resource.KindSSHKey:
		return c.writeSSHKey(ctx, res, nil)
	}
	return nil, fmt.Errorf("unsupported resource kind %q", res.Kind)
}

// Update converges an existing remote object to the declared spec.
func (c *Client) Update(ctx context.Context, res *resource.Resource, prior *RemoteState) (*RemoteState, error) {
	switch res.Kind {
	case resource.KindSecretsEngine:
		return c.updateSecretsEngine(ctx, res)
	case resource.KindPasswordPolicy:
		return c.writePasswordPolicy(ctx, res)
	case resource.KindIssuer:
		return c.updateIssuer(ctx, res, prior)
	case resource.KindPKIRole:
		return c.writePKIRole(ctx, res)
	case resource.KindPassword:
		return c.writePassword(ctx, res, prior)
	case resource.KindSSHKey:
		return c.writeSSHKey(ctx, res, prior)
	}
	return nil, fmt.Errorf("unsupported resource kind %q", res.Kind)
}
