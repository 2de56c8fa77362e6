package vault

import (
	"context"

	"github.com/systmms/vaultops/internal/resource"
)

// fetchSecretsEngine reads the mount table entry for the declared path.
func (c *Client) fetchSecretsEngine(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	id := res.Identity()

	mount, err := c.api.Logical().ReadWithContext(ctx, "sys/mounts/"+res.SecretsEngine.Path)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, gatewayErr("fetch", id, err)
	}
	if mount == nil {
		return nil, nil
	}

	snap, err := c.readStateSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

// createSecretsEngine mounts the engine and stamps its snapshot.
func (c *Client) createSecretsEngine(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	id := res.Identity()
	spec := res.SecretsEngine

	payload := map[string]interface{}{
		"type":        engineMountType(spec.Engine.Type),
		"description": spec.Engine.Description,
		"local":       spec.Engine.Local,
		"seal_wrap":   spec.Engine.SealWrap,
	}
	if spec.Engine.Type == "kv-v2" {
		payload["options"] = map[string]interface{}{"version": "2"}
	}
	if cfg := spec.Engine.Config; cfg != nil {
		payload["config"] = map[string]interface{}{
			"default_lease_ttl": cfg.DefaultLeaseTTL,
			"max_lease_ttl":     cfg.MaxLeaseTTL,
		}
	}

	if _, err := c.api.Logical().WriteWithContext(ctx, "sys/mounts/"+spec.Path, payload); err != nil {
		return nil, gatewayErr("create", id, err)
	}
	if err := c.writeEngineConfig(ctx, res); err != nil {
		return nil, err
	}

	snap, err := c.writeStateSnapshot(ctx, res)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

// updateSecretsEngine tunes the existing mount in place. The engine type
// itself is immutable; a type change shows up as a tune failure from Vault.
func (c *Client) updateSecretsEngine(ctx context.Context, res *resource.Resource) (*RemoteState, error) {
	id := res.Identity()
	spec := res.SecretsEngine

	tune := map[string]interface{}{"description": spec.Engine.Description}
	if cfg := spec.Engine.Config; cfg != nil {
		tune["default_lease_ttl"] = cfg.DefaultLeaseTTL
		tune["max_lease_ttl"] = cfg.MaxLeaseTTL
	}
	if _, err := c.api.Logical().WriteWithContext(ctx, "sys/mounts/"+spec.Path+"/tune", tune); err != nil {
		return nil, gatewayErr("update", id, err)
	}
	if err := c.writeEngineConfig(ctx, res); err != nil {
		return nil, err
	}

	snap, err := c.writeStateSnapshot(ctx, res)
	if err != nil {
		return nil, err
	}
	return &RemoteState{Snapshot: snap}, nil
}

// writeEngineConfig applies kv-v2 engine-level settings.
func (c *Client) writeEngineConfig(ctx context.Context, res *resource.Resource) error {
	spec := res.SecretsEngine
	if spec.Engine.Type != "kv-v2" {
		return nil
	}
	if spec.Engine.MaxVersions == 0 && !spec.Engine.CASRequired && spec.Engine.DeleteVersionAfter == "" {
		return nil
	}
	payload := map[string]interface{}{
		"max_versions": spec.Engine.MaxVersions,
		"cas_required": spec.Engine.CASRequired,
	}
	if spec.Engine.DeleteVersionAfter != "" {
		payload["delete_version_after"] = spec.Engine.DeleteVersionAfter
	}
	if _, err := c.api.Logical().WriteWithContext(ctx, spec.Path+"/config", payload); err != nil {
		return gatewayErr("update", res.Identity(), err)
	}
	return nil
}

// engineMountType maps the manifest engine type to Vault's mount type.
func engineMountType(t string) string {
	if t == "kv-v2" {
		return "kv"
	}
	return t
}
