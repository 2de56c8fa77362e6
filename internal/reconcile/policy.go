package reconcile

import (
	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/resource"
	"github.com/systmms/vaultops/internal/vault"
)

// decideAction computes the write decision for a resource given its fetched
// remote state. remote == nil means the object does not exist.
//
// Secret-bearing kinds (Password, SSHKey) follow versioned regeneration: the
// declared version counter is the only trigger for new secret material.
// Changing generation parameters (policy rules, key options) without a version
// bump verifies instead of regenerating; operators opt into regeneration
// explicitly.
func decideAction(res *resource.Resource, remote *vault.RemoteState) (Action, error) {
	if remote == nil {
		return ActionCreate, nil
	}

	if declared, versioned := res.Version(); versioned {
		return decideVersioned(res, declared, remote)
	}

	// Non-secret kinds: field-wise spec comparison against the snapshot.
	if remote.Snapshot == nil {
		// Exists remotely but was never applied by vaultops: adopt it.
		return ActionUpdate, nil
	}
	desired, err := resource.NewSnapshot(res)
	if err != nil {
		return "", err
	}
	if desired.SpecEquals(*remote.Snapshot) {
		return ActionVerify, nil
	}
	return ActionUpdate, nil
}

func decideVersioned(res *resource.Resource, declared int, remote *vault.RemoteState) (Action, error) {
	if remote.Snapshot == nil {
		// Secret exists but has no applied snapshot. Regenerate under the
		// declared version so the snapshot gets stamped.
		return ActionUpdate, nil
	}

	recorded := remote.Snapshot.Version
	switch {
	case declared < recorded:
		return "", vperrors.VersionMismatchError{
			Identity:        res.Identity().Path,
			DeclaredVersion: declared,
			RemoteVersion:   recorded,
		}
	case declared > recorded:
		return ActionRegenerate, nil
	default:
		// Same version: the secret material is left untouched even if the
		// generation parameters drifted.
		return ActionVerify, nil
	}
}
