package ruleset

import (
	"fmt"

	"github.com/stackwise/nacl-manager/internal/domain"
)

// PartitionInline splits the canonical sequence into ingress and egress views
// preserving the original order. Used when rules are embedded directly in the
// ACL object; no identity map is needed because the ACL owns replacement
// semantics for its embedded rules as a whole.
//
// Matrix rules are exploded first so that each embedded rule carries exactly
// one concrete target.
func PartitionInline(rules []domain.Rule) (ingress, egress []domain.Rule) {
	for _, r := range rules {
		for _, er := range explode(r) {
			switch er.Direction {
			case domain.DirectionEgress:
				egress = append(egress, er)
			default:
				ingress = append(ingress, er)
			}
		}
	}
	return ingress, egress
}

// ExplodeResourced turns the canonical sequence into the keyed rule map used
// for resourced mode: one entry per (rule x exploded target). Every key in
// the result is unique; a collision is a configuration error surfaced before
// any provider call.
func ExplodeResourced(rules []domain.Rule) (map[string]domain.Rule, error) {
	out := make(map[string]domain.Rule, len(rules))
	for _, r := range rules {
		for _, er := range explode(r) {
			if _, ok := out[er.Key]; ok {
				return nil, fmt.Errorf("exploded rule key %q is not unique: %w",
					er.Key, domain.ErrKeyCollision)
			}
			out[er.Key] = er
		}
	}
	return out, nil
}

// explode expands a matrix rule into one rule per concrete target. Self and
// list targets never double-emit: self targeting produces exactly the "#self"
// rule, list targeting produces one rule per listed target with a running
// target-index suffix spanning the CIDR, IPv6 CIDR, and peer-ACL lists.
// Non-matrix rules pass through unchanged.
func explode(r domain.Rule) []domain.Rule {
	if !r.FromMatrix {
		return []domain.Rule{r}
	}

	base := r
	base.FromMatrix = false
	base.Self = false
	base.TargetCIDRBlocks = nil
	base.TargetIPv6CIDRBlocks = nil
	base.TargetPeerACLIDs = nil

	if r.Self {
		er := base
		er.Key = r.Key + "#self"
		er.Self = true
		return []domain.Rule{er}
	}

	// List targets occupy consecutive rule numbers starting at the subject
	// rule's number, since numbers must be unique per (ACL, direction).
	// Callers leave gaps between matrix rule numbers accordingly.
	var out []domain.Rule
	idx := 0
	for _, cidr := range r.TargetCIDRBlocks {
		er := base
		er.Key = fmt.Sprintf("%s#%d", r.Key, idx)
		er.RuleNumber = r.RuleNumber + idx
		er.CIDRBlock = cidr
		er.IPv6CIDRBlock = ""
		out = append(out, er)
		idx++
	}
	for _, cidr := range r.TargetIPv6CIDRBlocks {
		er := base
		er.Key = fmt.Sprintf("%s#%d", r.Key, idx)
		er.RuleNumber = r.RuleNumber + idx
		er.IPv6CIDRBlock = cidr
		er.CIDRBlock = ""
		out = append(out, er)
		idx++
	}
	for _, peer := range r.TargetPeerACLIDs {
		er := base
		er.Key = fmt.Sprintf("%s#%d", r.Key, idx)
		er.RuleNumber = r.RuleNumber + idx
		er.PeerACLID = peer
		er.CIDRBlock = ""
		er.IPv6CIDRBlock = ""
		out = append(out, er)
		idx++
	}
	return out
}
