// Package lifecycle resolves the replacement-safety configuration into a
// concrete ACL lifecycle mode and builds the desired-state plan the
// reconciler executes.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/stackwise/nacl-manager/internal/domain"
)

// Resolve picks exactly one lifecycle mode from the spec's intents.
//
// An external target always wins. Otherwise preserve_network_acl_id forces
// in-place edits regardless of create_before_destroy: a single ACL cannot
// keep its identifier stable and be atomically swapped at the same time, so
// identity preservation and zero-downtime replacement are mutually exclusive.
func Resolve(spec *domain.ACLSpec) (domain.LifecycleMode, error) {
	switch len(spec.TargetNetworkACLID) {
	case 0:
	case 1:
		if strings.TrimSpace(spec.TargetNetworkACLID[0]) == "" {
			return "", fmt.Errorf("target_network_acl_id[0] is empty: %w", domain.ErrInvalidConfiguration)
		}
		return domain.ModeExternal, nil
	default:
		return "", fmt.Errorf("target_network_acl_id: at most one external ACL may be supplied, got %d: %w",
			len(spec.TargetNetworkACLID), domain.ErrInvalidConfiguration)
	}

	if len(spec.NetworkACLName) > 1 {
		return "", fmt.Errorf("network_acl_name: at most one name may be supplied, got %d: %w",
			len(spec.NetworkACLName), domain.ErrInvalidConfiguration)
	}

	if spec.PreserveNetworkACLID {
		return domain.ModeDestroyBeforeCreate, nil
	}
	if spec.CreateBeforeDestroyEnabled() {
		return domain.ModeCreateBeforeDestroy, nil
	}
	return domain.ModeDestroyBeforeCreate, nil
}
