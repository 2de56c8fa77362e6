package vault

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/systmms/vaultops/internal/keygen"
	"github.com/systmms/vaultops/internal/resource"
)

// fetchKVSecret reads the KV v2 metadata for a generated secret. The snapshot
// lives in custom metadata, the Vault-side version counter in current_version.
func (c *Client) fetchKVSecret(ctx context.Context, res *resource.Resource, engine, path string) (*RemoteState, error) {
	id := res.Identity()

	meta, err := c.api.Logical().ReadWithContext(ctx, engine+"/metadata/"+path)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, gatewayErr("fetch", id, err)
	}
	if meta == nil || meta.Data == nil {
		return nil, nil
	}

	return &RemoteState{
		Snapshot:      c.decodeCustomMetadataSnapshot(id, meta.Data),
		SecretVersion: asInt(meta.Data["current_version"]),
	}, nil
}

// writePassword generates a fresh value from the referenced policy and writes
// it under the declared key, CAS-guarded against concurrent writers.
func (c *Client) writePassword(ctx context.Context, res *resource.Resource, prior *RemoteState) (*RemoteState, error) {
	id := res.Identity()
	spec := res.Password

	value, err := c.generatePassword(ctx, id, spec.PolicyPath)
	if err != nil {
		return nil, err
	}
	if spec.Encoding == "base64" {
		value = base64.StdEncoding.EncodeToString([]byte(value))
	}

	return c.writeGeneratedSecret(ctx, res, spec.SecretsEnginePath, spec.Path, prior, map[string]interface{}{
		spec.SecretKey: value,
	})
}

// writeSSHKey generates a key pair and writes both halves under their declared
// keys.
func (c *Client) writeSSHKey(ctx context.Context, res *resource.Resource, prior *RemoteState) (*RemoteState, error) {
	id := res.Identity()
	spec := res.SSHKey

	pair, err := keygen.Generate(keygen.Options{
		Type:  spec.KeyOptions.Type,
		Bits:  spec.KeyOptions.Bits,
		Curve: spec.KeyOptions.Curve,
	})
	if err != nil {
		return nil, gatewayErr("update", id, err)
	}

	return c.writeGeneratedSecret(ctx, res, spec.SecretsEnginePath, spec.Path, prior, map[string]interface{}{
		spec.PublicKey.SecretKey:  pair.PublicKey,
		spec.PrivateKey.SecretKey: pair.PrivateKey,
	})
}

// writeGeneratedSecret merges the generated keys over any existing data at the
// path, writes with a CAS guard, and stamps the snapshot in custom metadata.
func (c *Client) writeGeneratedSecret(
	ctx context.Context,
	res *resource.Resource,
	engine, path string,
	prior *RemoteState,
	generated map[string]interface{},
) (*RemoteState, error) {
	id := res.Identity()

	cas := 0
	data := generated
	if prior != nil && prior.SecretVersion > 0 {
		cas = prior.SecretVersion
		existing, err := c.api.Logical().ReadWithContext(ctx, engine+"/data/"+path)
		if err != nil && !isMissing(err) {
			return nil, gatewayErr("fetch", id, err)
		}
		if existing != nil {
			if current, ok := existing.Data["data"].(map[string]interface{}); ok {
				data = make(map[string]interface{}, len(current)+len(generated))
				for k, v := range current {
					data[k] = v
				}
				for k, v := range generated {
					data[k] = v
				}
			}
		}
	}

	written, err := c.api.Logical().WriteWithContext(ctx, engine+"/data/"+path, map[string]interface{}{
		"data":    data,
		"options": map[string]interface{}{"cas": cas},
	})
	if err != nil {
		return nil, gatewayErr("update", id, err)
	}
	newVersion := 0
	if written != nil && written.Data != nil {
		newVersion = asInt(written.Data["version"])
	}

	snap, err := c.stampCustomMetadata(ctx, res, engine, path)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap, SecretVersion: newVersion}, nil
}

// stampCustomMetadata records the applied spec snapshot on the secret's KV v2
// metadata entry.
func (c *Client) stampCustomMetadata(ctx context.Context, res *resource.Resource, engine, path string) (*resource.Snapshot, error) {
	id := res.Identity()

	snap, err := resource.NewSnapshot(res)
	if err != nil {
		return nil, gatewayErr("update", id, err)
	}
	encoded, err := snap.Encode()
	if err != nil {
		return nil, gatewayErr("update", id, fmt.Errorf("failed to encode snapshot: %w", err))
	}

	payload := map[string]interface{}{
		"custom_metadata": map[string]interface{}{c.label: string(encoded)},
	}
	if _, err := c.api.Logical().WriteWithContext(ctx, engine+"/metadata/"+path, payload); err != nil {
		return nil, gatewayErr("update", id, err)
	}
	return &snap, nil
}
