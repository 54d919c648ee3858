package lifecycle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/stackwise/nacl-manager/internal/domain"
)

// fingerprintLen is the number of hex characters of the digest carried into
// the ACL name.
const fingerprintLen = 12

// Fingerprint computes a content digest of the keyed rule map. Serialization
// is over keys in sorted order, so the digest depends on the rule set, not on
// input ordering: reordering rules without changing the set leaves it
// unchanged, while any content change produces a new digest.
func Fingerprint(rules map[string]domain.Rule) (string, error) {
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type entry struct {
		Key  string      `json:"key"`
		Rule domain.Rule `json:"rule"`
	}
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, entry{Key: k, Rule: rules[k]})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("serializing rules for fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:fingerprintLen], nil
}

// aclName derives the ACL name for the given mode. In create-before-destroy
// mode the content fingerprint is appended so that a rule-content change
// forces a brand-new ACL object; the previous fingerprint lives in the cached
// reconcile state, not in an external random-value cache.
func aclName(base, fingerprint string, mode domain.LifecycleMode) string {
	if mode == domain.ModeCreateBeforeDestroy && fingerprint != "" {
		return base + "-" + fingerprint
	}
	return base
}
