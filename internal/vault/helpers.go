package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"

	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/resource"
)

// gatewayErr wraps a Vault API failure with its HTTP-derived cause. The
// reconciler surfaces the cause verbatim.
func gatewayErr(op string, id resource.Identity, err error) error {
	cause := vperrors.CauseUnknown
	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		cause = vperrors.CauseFromStatus(respErr.StatusCode)
	} else if isConnectionError(err) {
		cause = vperrors.CauseUnavailable
	}
	return vperrors.GatewayError{Operation: op, Identity: id.Path, Cause: cause, Err: err}
}

func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "context deadline exceeded")
}

// isMissing reports whether a read error actually means "object absent".
// The Vault API returns 404 for most missing paths, but some endpoints
// (PKI issuer lookup, sys/mounts) answer 400 with a descriptive message.
func isMissing(err error) bool {
	var respErr *api.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	if respErr.StatusCode == 404 {
		return true
	}
	if respErr.StatusCode == 400 {
		for _, e := range respErr.Errors {
			msg := strings.ToLower(e)
			if strings.Contains(msg, "unable to find") ||
				strings.Contains(msg, "could not find") ||
				strings.Contains(msg, "no secret engine mount") {
				return true
			}
		}
	}
	return false
}

// statePath returns the bookkeeping secret path for kinds without their own
// custom-metadata slot.
func (c *Client) statePath(id resource.Identity) string {
	return fmt.Sprintf("%s/data/%s/%s", c.state, strings.ToLower(string(id.Kind)), id.Path)
}

// readStateSnapshot loads the bookkeeping snapshot for an identity, or nil.
func (c *Client) readStateSnapshot(ctx context.Context, id resource.Identity) (*resource.Snapshot, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, c.statePath(id))
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, gatewayErr("fetch", id, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	data, _ := secret.Data["data"].(map[string]interface{})
	raw, _ := data[c.label].(string)
	if raw == "" {
		return nil, nil
	}
	snap, err := resource.DecodeSnapshot([]byte(raw))
	if err != nil {
		// A corrupt snapshot is treated as absent: the next write re-stamps it.
		c.logger.Warn("Discarding unreadable snapshot for %s: %v", id, err)
		return nil, nil
	}
	return &snap, nil
}

// writeStateSnapshot stamps the bookkeeping snapshot for an identity,
// mounting the state engine on first use.
func (c *Client) writeStateSnapshot(ctx context.Context, res *resource.Resource) (*resource.Snapshot, error) {
	id := res.Identity()
	snap, err := resource.NewSnapshot(res)
	if err != nil {
		return nil, gatewayErr("update", id, err)
	}
	encoded, err := snap.Encode()
	if err != nil {
		return nil, gatewayErr("update", id, err)
	}

	if err := c.ensureStateMount(ctx); err != nil {
		return nil, gatewayErr("update", id, err)
	}

	payload := map[string]interface{}{
		"data": map[string]interface{}{c.label: string(encoded)},
	}
	if _, err := c.api.Logical().WriteWithContext(ctx, c.statePath(id), payload); err != nil {
		return nil, gatewayErr("update", id, err)
	}
	return &snap, nil
}

// ensureStateMount mounts the bookkeeping KV engine once per process.
func (c *Client) ensureStateMount(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateMountReady {
		return nil
	}

	if mount, err := c.api.Logical().ReadWithContext(ctx, "sys/mounts/"+c.state); err == nil && mount != nil {
		c.stateMountReady = true
		return nil
	}

	_, err := c.api.Logical().WriteWithContext(ctx, "sys/mounts/"+c.state, map[string]interface{}{
		"type":        "kv",
		"description": "vaultops applied-spec snapshots",
		"options":     map[string]interface{}{"version": "2"},
	})
	if err != nil {
		var respErr *api.ResponseError
		// Another operator may have mounted it between the read and the write.
		if errors.As(err, &respErr) && respErr.StatusCode == 400 {
			for _, e := range respErr.Errors {
				if strings.Contains(strings.ToLower(e), "already in use") {
					c.stateMountReady = true
					return nil
				}
			}
		}
		return err
	}
	c.stateMountReady = true
	return nil
}

// decodeCustomMetadataSnapshot extracts the snapshot stored in KV v2 custom
// metadata, or nil when absent.
func (c *Client) decodeCustomMetadataSnapshot(id resource.Identity, meta map[string]interface{}) *resource.Snapshot {
	custom, _ := meta["custom_metadata"].(map[string]interface{})
	raw, _ := custom[c.label].(string)
	if raw == "" {
		return nil
	}
	snap, err := resource.DecodeSnapshot([]byte(raw))
	if err != nil {
		c.logger.Warn("Discarding unreadable snapshot for %s: %v", id, err)
		return nil
	}
	return &snap
}

// asInt converts Vault's json.Number-ish values to int.
func asInt(v interface{}) int {
	switch n := v.(type) {
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
