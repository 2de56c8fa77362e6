package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/resource"
)

// fetchIssuer looks up the issuer by its Vault issuer name.
func (c *Client) fetchIssuer(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	id := res.Identity()
	spec := res.Issuer

	issuer, err := c.api.Logical().ReadWithContext(ctx, spec.SecretsEnginePath+"/issuer/"+spec.Name)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, gatewayErr("fetch", id, err)
	}
	if issuer == nil {
		return nil, nil
	}

	snap, err := c.readStateSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

// createIssuer generates the CA. A self-signed root is one request; a chained
// intermediate walks CSR, upstream signing, and import.
func (c *Client) createIssuer(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	id := res.Identity()
	spec := res.Issuer

	if spec.Chaining == nil {
		payload := certParamsPayload(spec.CertParams)
		payload["issuer_name"] = spec.Name
		if _, err := c.api.Logical().WriteWithContext(ctx, spec.SecretsEnginePath+"/root/generate/internal", payload); err != nil {
			return nil, gatewayErr("create", id, err)
		}
	} else if err := c.createChainedIssuer(ctx, res); err != nil {
		return nil, err
	}

	snap, err := c.writeStateSnapshot(ctx, res)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

func (c *Client) createChainedIssuer(ctx context.Context, res *resource.Resource) error {
	id := res.Identity()
	spec := res.Issuer

	// CSR in the issuer's own engine, key stays server-side.
	csrResp, err := c.api.Logical().WriteWithContext(
		ctx, spec.SecretsEnginePath+"/intermediate/generate/internal", certParamsPayload(spec.CertParams),
	)
	if err != nil {
		return gatewayErr("create", id, err)
	}
	csr, _ := csrResp.Data["csr"].(string)
	if csr == "" {
		return gatewayErr("create", id, fmt.Errorf("intermediate CSR generation returned no csr"))
	}

	upstreamEngine, upstreamName, err := splitIssuerRef(spec.Chaining.UpstreamIssuerRef)
	if err != nil {
		return gatewayErr("create", id, err)
	}

	signPayload := map[string]interface{}{
		"csr":         csr,
		"common_name": spec.CertParams.CommonName,
		"format":      "pem_bundle",
	}
	if spec.CertParams.TTL != "" {
		signPayload["ttl"] = spec.CertParams.TTL
	}
	signResp, err := c.api.Logical().WriteWithContext(
		ctx, upstreamEngine+"/issuer/"+upstreamName+"/sign-intermediate", signPayload,
	)
	if err != nil {
		return gatewayErr("create", id, err)
	}
	cert, _ := signResp.Data["certificate"].(string)
	if cert == "" {
		return gatewayErr("create", id, fmt.Errorf("upstream issuer %q returned no certificate", spec.Chaining.UpstreamIssuerRef))
	}

	setResp, err := c.api.Logical().WriteWithContext(
		ctx, spec.SecretsEnginePath+"/intermediate/set-signed", map[string]interface{}{"certificate": cert},
	)
	if err != nil {
		return gatewayErr("create", id, err)
	}

	// Name the imported issuer so later runs and role issuerRefs find it.
	imported, _ := setResp.Data["imported_issuers"].([]interface{})
	if len(imported) == 0 {
		return gatewayErr("create", id, fmt.Errorf("set-signed imported no issuers"))
	}
	issuerID, _ := imported[0].(string)
	if _, err := c.api.Logical().WriteWithContext(
		ctx, spec.SecretsEnginePath+"/issuer/"+issuerID, map[string]interface{}{"issuer_name": spec.Name},
	); err != nil {
		return gatewayErr("create", id, err)
	}
	return nil
}

// updateIssuer re-stamps the snapshot for metadata-only drift or adoption.
// Certificate parameters are immutable once issued; changing them requires a
// new issuer name, so that drift is reported as a conflict instead of being
// papered over.
func (c *Client) updateIssuer(ctx context.Context, res *resource.Resource, prior *RemoteState) (*RemoteState, error) {
	id := res.Identity()

	if prior != nil && prior.Snapshot != nil {
		var applied resource.IssuerSpec
		if err := json.Unmarshal(prior.Snapshot.Spec, &applied); err == nil && !certParamsEqual(applied.CertParams, res.Issuer.CertParams) {
			return nil, vperrors.GatewayError{
				Operation: "update",
				Identity:  id.Path,
				Cause:     vperrors.CauseConflict,
				Err:       fmt.Errorf("issuer certificate parameters are immutable; declare a new issuer name to reissue"),
			}
		}
	}

	snap, err := c.writeStateSnapshot(ctx, res)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

// fetchPKIRole reads the role definition from its engine.
func (c *Client) fetchPKIRole(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	id := res.Identity()
	spec := res.PKIRole

	role, err := c.api.Logical().ReadWithContext(ctx, spec.SecretsEnginePath+"/roles/"+spec.Name)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, gatewayErr("fetch", id, err)
	}
	if role == nil {
		return nil, nil
	}

	snap, err := c.readStateSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

// writePKIRole writes the full role definition. Create and update are the
// same request.
func (c *Client) writePKIRole(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	id := res.Identity()
	spec := res.PKIRole

	// The issuerRef names an issuer in the same engine; Vault expects the bare
	// issuer name.
	_, issuerName, err := splitIssuerRef(spec.Role.IssuerRef)
	if err != nil {
		return nil, gatewayErr("create", id, err)
	}

	payload := map[string]interface{}{
		"issuer_ref":         issuerName,
		"allowed_domains":    spec.Role.AllowedDomains,
		"allow_subdomains":   spec.Role.AllowSubdomains,
		"allow_bare_domains": spec.Role.AllowBareDomains,
		"server_flag":        spec.Role.ServerFlag,
		"client_flag":        spec.Role.ClientFlag,
	}
	if spec.Role.TTL != "" {
		payload["ttl"] = spec.Role.TTL
	}
	if spec.Role.MaxTTL != "" {
		payload["max_ttl"] = spec.Role.MaxTTL
	}
	if spec.Role.KeyType != "" {
		payload["key_type"] = spec.Role.KeyType
	}
	if spec.Role.KeyBits > 0 {
		payload["key_bits"] = spec.Role.KeyBits
	}

	if _, err := c.api.Logical().WriteWithContext(ctx, spec.SecretsEnginePath+"/roles/"+spec.Name, payload); err != nil {
		return nil, gatewayErr("create", id, err)
	}

	snap, err := c.writeStateSnapshot(ctx, res)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

// certParamsPayload maps declared CA parameters onto Vault's request fields.
func certParamsPayload(p resource.CertParams) map[string]interface{} {
	payload := map[string]interface{}{"common_name": p.CommonName}
	if p.TTL != "" {
		payload["ttl"] = p.TTL
	}
	if p.KeyType != "" {
		payload["key_type"] = p.KeyType
	}
	if p.KeyBits > 0 {
		payload["key_bits"] = p.KeyBits
	}
	if len(p.Organization) > 0 {
		payload["organization"] = p.Organization
	}
	if len(p.OU) > 0 {
		payload["ou"] = p.OU
	}
	if len(p.Country) > 0 {
		payload["country"] = p.Country
	}
	return payload
}

func certParamsEqual(a, b resource.CertParams) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

// splitIssuerRef splits the "enginePath/issuerName" identity form. The engine
// path may itself contain slashes; the final segment is the issuer name.
func splitIssuerRef(ref string) (engine, name string, err error) {
	i := strings.LastIndex(ref, "/")
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("issuer reference %q must look like 'enginePath/issuerName'", ref)
	}
	return ref[:i], ref[i+1:], nil
}
