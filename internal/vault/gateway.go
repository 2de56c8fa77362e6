// Package vault implements the remote state gateway for vaultops. It is the
// sole side-effecting boundary of the reconciler: every read and write of live
// Vault state goes through the Gateway interface, backed by the official
// Vault API client.
package vault

import (
	"context"

	"github.com/systmms/vaultops/internal/resource"
)

// RemoteState is the engine-facing view of a remote object. Snapshot is nil
// when the object exists but carries no vaultops snapshot (created out of
// band); such objects are adopted on the next write.
type RemoteState struct {
	Snapshot *resource.Snapshot
	// SecretVersion is the KV v2 current_version for secret-bearing kinds,
	// used as the check-and-set guard on regeneration. Zero otherwise.
	SecretVersion int
}

// Gateway exposes the read/create/update primitives the reconciler drives.
// Fetch returns (nil, nil) when the remote object does not exist. All errors
// are GatewayError values carrying an HTTP-derived cause.
type Gateway interface {
	// Fetch reads the current remote representation of the resource.
	Fetch(ctx context.Context, res *resource.Resource) (*RemoteState, error)

	// Create materializes the resource remotely and stamps its snapshot.
	// For secret-bearing kinds this generates fresh secret material.
	Create(ctx context.Context, res *resource.Resource) (*RemoteState, error)

	// Update converges an existing remote object to the declared spec and
	// re-stamps the snapshot. For secret-bearing kinds this regenerates the
	// secret material using the current generation parameters, guarded by
	// the prior state's check-and-set version.
	Update(ctx context.Context, res *resource.Resource, prior *RemoteState) (*RemoteState, error)
}
