// Package resource defines the typed, immutable model for every entry a
// manifest can declare. A Resource is created once per apply run, is read-only
// for the duration of the run, and is addressed by its kind-scoped identity.
package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind enumerates the supported resource kinds. The set is closed: dispatch
// happens via exhaustive switches, never open-ended runtime typing.
type Kind string

const (
	KindSecretsEngine  Kind = "SecretsEngine"
	KindIssuer         Kind = "Issuer"
	KindPKIRole        Kind = "PKIRole"
	KindSSHKey         Kind = "SSHKey"
	KindPasswordPolicy Kind = "PasswordPolicy"
	KindPassword       Kind = "Password"
)

// Kinds lists every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindSecretsEngine,
		KindIssuer,
		KindPKIRole,
		KindSSHKey,
		KindPasswordPolicy,
		KindPassword,
	}
}

// Identity is the unique (kind, path) key for a resource within one run.
type Identity struct {
	Kind Kind
	Path string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s:%s", id.Kind, id.Path)
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.Kind == "" && id.Path == ""
}

// EngineTuneConfig holds mount tuning options applied after the engine exists.
type EngineTuneConfig struct {
	DefaultLeaseTTL string `yaml:"defaultLeaseTtl,omitempty" json:"defaultLeaseTtl,omitempty"`
	MaxLeaseTTL     string `yaml:"maxLeaseTtl,omitempty" json:"maxLeaseTtl,omitempty"`
}

// EngineOptions describes the secrets engine to mount. Supported types are
// kv-v2 and pki.
type EngineOptions struct {
	Type               string            `yaml:"type" json:"type"`
	Description        string            `yaml:"description,omitempty" json:"description,omitempty"`
	Local              bool              `yaml:"local,omitempty" json:"local,omitempty"`
	SealWrap           bool              `yaml:"sealWrap,omitempty" json:"sealWrap,omitempty"`
	Config             *EngineTuneConfig `yaml:"config,omitempty" json:"config,omitempty"`
	MaxVersions        int               `yaml:"maxVersions,omitempty" json:"maxVersions,omitempty"`
	CASRequired        bool              `yaml:"casRequired,omitempty" json:"casRequired,omitempty"`
	DeleteVersionAfter string            `yaml:"deleteVersionAfter,omitempty" json:"deleteVersionAfter,omitempty"`
}

// SecretsEngineSpec declares a secrets engine mount.
type SecretsEngineSpec struct {
	Path   string        `yaml:"path" json:"path"`
	Engine EngineOptions `yaml:"engine" json:"engine"`
}

// CertParams carries the subject and key parameters for a CA certificate.
type CertParams struct {
	CommonName   string   `yaml:"commonName" json:"commonName"`
	TTL          string   `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	KeyType      string   `yaml:"keyType,omitempty" json:"keyType,omitempty"`
	KeyBits      int      `yaml:"keyBits,omitempty" json:"keyBits,omitempty"`
	Organization []string `yaml:"organization,omitempty" json:"organization,omitempty"`
	OU           []string `yaml:"ou,omitempty" json:"ou,omitempty"`
	Country      []string `yaml:"country,omitempty" json:"country,omitempty"`
}

// ChainingOptions links an intermediate issuer to its signing authority.
// UpstreamIssuerRef uses the issuer identity form "enginePath/issuerName".
type ChainingOptions struct {
	UpstreamIssuerRef string `yaml:"upstreamIssuerRef" json:"upstreamIssuerRef"`
}

// IssuerSpec declares a PKI issuer. Without chaining options the issuer is a
// self-signed root.
type IssuerSpec struct {
	SecretsEnginePath string           `yaml:"secretsEnginePath" json:"secretsEnginePath"`
	Name              string           `yaml:"name" json:"name"`
	CertParams        CertParams       `yaml:"certParams" json:"certParams"`
	Chaining          *ChainingOptions `yaml:"chaining,omitempty" json:"chaining,omitempty"`
}

// PKIRoleOptions mirrors the Vault role fields vaultops manages.
type PKIRoleOptions struct {
	IssuerRef        string   `yaml:"issuerRef" json:"issuerRef"`
	AllowedDomains   []string `yaml:"allowedDomains,omitempty" json:"allowedDomains,omitempty"`
	AllowSubdomains  bool     `yaml:"allowSubdomains,omitempty" json:"allowSubdomains,omitempty"`
	AllowBareDomains bool     `yaml:"allowBareDomains,omitempty" json:"allowBareDomains,omitempty"`
	MaxTTL           string   `yaml:"maxTtl,omitempty" json:"maxTtl,omitempty"`
	TTL              string   `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	KeyType          string   `yaml:"keyType,omitempty" json:"keyType,omitempty"`
	KeyBits          int      `yaml:"keyBits,omitempty" json:"keyBits,omitempty"`
	ServerFlag       bool     `yaml:"serverFlag,omitempty" json:"serverFlag,omitempty"`
	ClientFlag       bool     `yaml:"clientFlag,omitempty" json:"clientFlag,omitempty"`
}

// PKIRoleSpec declares a certificate-issuing role bound to an issuer.
type PKIRoleSpec struct {
	SecretsEnginePath string         `yaml:"secretsEnginePath" json:"secretsEnginePath"`
	Name              string         `yaml:"name" json:"name"`
	Role              PKIRoleOptions `yaml:"role" json:"role"`
}

// KeyOptions selects the SSH key algorithm. Type is one of rsa, ec, ed25519.
type KeyOptions struct {
	Type  string `yaml:"type" json:"type"`
	Bits  int    `yaml:"bits,omitempty" json:"bits,omitempty"`
	Curve string `yaml:"curve,omitempty" json:"curve,omitempty"`
}

// KeyTarget names the secret key a generated key part is written to.
type KeyTarget struct {
	SecretKey string `yaml:"secretKey" json:"secretKey"`
}

// SSHKeySpec declares a generated SSH key pair stored in a KV engine.
type SSHKeySpec struct {
	SecretsEnginePath string     `yaml:"secretsEnginePath" json:"secretsEnginePath"`
	Path              string     `yaml:"path" json:"path"`
	Version           int        `yaml:"version" json:"version"`
	KeyOptions        KeyOptions `yaml:"keyOptions" json:"keyOptions"`
	PublicKey         KeyTarget  `yaml:"publicKey" json:"publicKey"`
	PrivateKey        KeyTarget  `yaml:"privateKey" json:"privateKey"`
}

// CharsetRule requires a minimum number of characters from a charset.
type CharsetRule struct {
	Charset  string `yaml:"charset" json:"charset"`
	MinChars int    `yaml:"minChars,omitempty" json:"minChars,omitempty"`
}

// PasswordPolicyRules mirror Vault's password policy document.
type PasswordPolicyRules struct {
	Length int           `yaml:"length" json:"length"`
	Rules  []CharsetRule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// PasswordPolicySpec declares a named password generation policy.
type PasswordPolicySpec struct {
	Path   string              `yaml:"path" json:"path"`
	Policy PasswordPolicyRules `yaml:"policy" json:"policy"`
}

// PasswordSpec declares a generated password stored in a KV engine. The value
// is derived from the referenced policy, never user-supplied.
type PasswordSpec struct {
	SecretsEnginePath string `yaml:"secretsEnginePath" json:"secretsEnginePath"`
	Path              string `yaml:"path" json:"path"`
	SecretKey         string `yaml:"secretKey" json:"secretKey"`
	PolicyPath        string `yaml:"policyPath" json:"policyPath"`
	Version           int    `yaml:"version" json:"version"`
	Encoding          string `yaml:"encoding,omitempty" json:"encoding,omitempty"`
}

// Resource is the closed tagged variant over the six kinds. Exactly one spec
// pointer is non-nil, matching Kind.
type Resource struct {
	Kind Kind

	SecretsEngine  *SecretsEngineSpec
	Issuer         *IssuerSpec
	PKIRole        *PKIRoleSpec
	SSHKey         *SSHKeySpec
	PasswordPolicy *PasswordPolicySpec
	Password       *PasswordSpec
}

// Identity returns the unique (kind, path) key for this resource.
func (r *Resource) Identity() Identity {
	return Identity{Kind: r.Kind, Path: r.path()}
}

func (r *Resource) path() string {
	switch r.Kind {
	case KindSecretsEngine:
		return r.SecretsEngine.Path
	case KindIssuer:
		return r.Issuer.SecretsEnginePath + "/" + r.Issuer.Name
	case KindPKIRole:
		return r.PKIRole.SecretsEnginePath + "/" + r.PKIRole.Name
	case KindSSHKey:
		return r.SSHKey.SecretsEnginePath + "/" + r.SSHKey.Path
	case KindPasswordPolicy:
		return r.PasswordPolicy.Path
	case KindPassword:
		return r.Password.SecretsEnginePath + "/" + r.Password.Path
	}
	return ""
}

// References returns the identities this resource depends on, derived from its
// reference fields. Order is stable per kind.
func (r *Resource) References() []Identity {
	switch r.Kind {
	case KindSecretsEngine, KindPasswordPolicy:
		return nil
	case KindIssuer:
		refs := []Identity{{Kind: KindSecretsEngine, Path: r.Issuer.SecretsEnginePath}}
		if r.Issuer.Chaining != nil {
			refs = append(refs, Identity{Kind: KindIssuer, Path: r.Issuer.Chaining.UpstreamIssuerRef})
		}
		return refs
	case KindPKIRole:
		return []Identity{
			{Kind: KindSecretsEngine, Path: r.PKIRole.SecretsEnginePath},
			{Kind: KindIssuer, Path: r.PKIRole.Role.IssuerRef},
		}
	case KindSSHKey:
		return []Identity{{Kind: KindSecretsEngine, Path: r.SSHKey.SecretsEnginePath}}
	case KindPassword:
		return []Identity{
			{Kind: KindSecretsEngine, Path: r.Password.SecretsEnginePath},
			{Kind: KindPasswordPolicy, Path: r.Password.PolicyPath},
		}
	}
	return nil
}

// Version returns the declared version counter for secret-bearing kinds.
// ok is false for kinds without versioned regeneration semantics.
func (r *Resource) Version() (version int, ok bool) {
	switch r.Kind {
	case KindSSHKey:
		return r.SSHKey.Version, true
	case KindPassword:
		return r.Password.Version, true
	}
	return 0, false
}

// Spec returns the kind-specific spec as an untyped value for serialization.
func (r *Resource) Spec() interface{} {
	switch r.Kind {
	case KindSecretsEngine:
		return r.SecretsEngine
	case KindIssuer:
		return r.Issuer
	case KindPKIRole:
		return r.PKIRole
	case KindSSHKey:
		return r.SSHKey
	case KindPasswordPolicy:
		return r.PasswordPolicy
	case KindPassword:
		return r.Password
	}
	return nil
}

// Validate checks the internal consistency of the resource: the spec matching
// its kind is set and mandatory fields are present.
func (r *Resource) Validate() error {
	switch r.Kind {
	case KindSecretsEngine:
		if r.SecretsEngine == nil || r.SecretsEngine.Path == "" {
			return fmt.Errorf("secrets engine requires a path")
		}
		if t := r.SecretsEngine.Engine.Type; t != "kv-v2" && t != "pki" {
			return fmt.Errorf("unsupported engine type %q (want kv-v2 or pki)", t)
		}
	case KindIssuer:
		if r.Issuer == nil || r.Issuer.Name == "" || r.Issuer.SecretsEnginePath == "" {
			return fmt.Errorf("issuer requires a name and secretsEnginePath")
		}
		if r.Issuer.CertParams.CommonName == "" {
			return fmt.Errorf("issuer %q requires certParams.commonName", r.Issuer.Name)
		}
	case KindPKIRole:
		if r.PKIRole == nil || r.PKIRole.Name == "" || r.PKIRole.SecretsEnginePath == "" {
			return fmt.Errorf("pki role requires a name and secretsEnginePath")
		}
		if r.PKIRole.Role.IssuerRef == "" {
			return fmt.Errorf("pki role %q requires role.issuerRef", r.PKIRole.Name)
		}
	case KindSSHKey:
		if r.SSHKey == nil || r.SSHKey.Path == "" || r.SSHKey.SecretsEnginePath == "" {
			return fmt.Errorf("ssh key requires a path and secretsEnginePath")
		}
		if r.SSHKey.Version < 1 {
			return fmt.Errorf("ssh key %q requires version >= 1", r.SSHKey.Path)
		}
		switch r.SSHKey.KeyOptions.Type {
		case "rsa", "ec", "ed25519":
		default:
			return fmt.Errorf("ssh key %q has unsupported key type %q", r.SSHKey.Path, r.SSHKey.KeyOptions.Type)
		}
		if r.SSHKey.PublicKey.SecretKey == "" || r.SSHKey.PrivateKey.SecretKey == "" {
			return fmt.Errorf("ssh key %q requires publicKey.secretKey and privateKey.secretKey", r.SSHKey.Path)
		}
	case KindPasswordPolicy:
		if r.PasswordPolicy == nil || r.PasswordPolicy.Path == "" {
			return fmt.Errorf("password policy requires a path")
		}
		if r.PasswordPolicy.Policy.Length < 1 {
			return fmt.Errorf("password policy %q requires policy.length >= 1", r.PasswordPolicy.Path)
		}
	case KindPassword:
		if r.Password == nil || r.Password.Path == "" || r.Password.SecretsEnginePath == "" {
			return fmt.Errorf("password requires a path and secretsEnginePath")
		}
		if r.Password.PolicyPath == "" || r.Password.SecretKey == "" {
			return fmt.Errorf("password %q requires policyPath and secretKey", r.Password.Path)
		}
		if r.Password.Version < 1 {
			return fmt.Errorf("password %q requires version >= 1", r.Password.Path)
		}
		switch r.Password.Encoding {
		case "", "utf8", "base64":
		default:
			return fmt.Errorf("password %q has unsupported encoding %q", r.Password.Path, r.Password.Encoding)
		}
	default:
		return fmt.Errorf("unsupported resource kind %q", r.Kind)
	}
	return nil
}

// Snapshot is the last-applied spec recorded on the remote object, used for
// drift and version comparison on subsequent runs.
type Snapshot struct {
	Kind     Kind            `json:"kind"`
	Identity string          `json:"identity"`
	Version  int             `json:"version,omitempty"`
	Spec     json.RawMessage `json:"spec"`
}

// NewSnapshot builds the snapshot that create/update operations stamp on the
// remote object.
func NewSnapshot(r *Resource) (Snapshot, error) {
	raw, err := json.Marshal(r.Spec())
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to encode spec snapshot: %w", err)
	}
	version, _ := r.Version()
	return Snapshot{
		Kind:     r.Kind,
		Identity: r.Identity().Path,
		Version:  version,
		Spec:     raw,
	}, nil
}

// DecodeSnapshot parses a stored snapshot payload.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode spec snapshot: %w", err)
	}
	return s, nil
}

// Encode renders the snapshot as canonical JSON for storage.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// SpecEquals reports whether two snapshots carry an identical applied spec.
func (s Snapshot) SpecEquals(other Snapshot) bool {
	return s.Kind == other.Kind && bytes.Equal(s.Spec, other.Spec)
}
