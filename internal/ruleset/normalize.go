// Package ruleset flattens the three rule input shapes (flat list, named
// lists, rule matrix) into one canonical keyed rule set and partitions it for
// inline or resourced consumption.
package ruleset

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/stackwise/nacl-manager/internal/domain"
)

const (
	// FlatListKey is the reserved name the flat rule list is merged under.
	// Caller-chosen rules_map names must not use it.
	FlatListKey = "_list_"

	// AllowAllEgressKey is the fixed key of the synthetic allow-all egress
	// rule.
	AllowAllEgressKey = "_allow_all_egress_"
)

// Normalize converts an ACLSpec's rule inputs into the canonical ordered rule
// sequence. Output order is: flat list, named lists in name order, matrix
// entries in declared order, then the synthetic egress rule when enabled.
//
// A disabled spec normalizes to an empty sequence regardless of its inputs.
// Duplicate keys across inputs fail immediately; a collision would otherwise
// silently collapse two rules into one downstream.
func Normalize(spec *domain.ACLSpec) ([]domain.Rule, error) {
	if !spec.IsEnabled() {
		return nil, nil
	}

	if _, ok := spec.RulesMap[FlatListKey]; ok {
		return nil, fmt.Errorf("rules_map: name %q is reserved for the flat rule list: %w",
			FlatListKey, domain.ErrInvalidConfiguration)
	}

	var out []domain.Rule
	seen := make(map[string]string) // key -> origin, for collision diagnostics

	add := func(r domain.Rule, origin string) error {
		if prev, ok := seen[r.Key]; ok {
			return fmt.Errorf("rule key %q from %s collides with %s: %w",
				r.Key, origin, prev, domain.ErrKeyCollision)
		}
		seen[r.Key] = origin
		out = append(out, r)
		return nil
	}

	// Flat list merges as an implicit named list under the reserved sentinel,
	// so it can never collide with a caller-chosen map name.
	lists := map[string][]domain.RuleSpec{}
	for name, specs := range spec.RulesMap {
		lists[name] = specs
	}
	if len(spec.Rules) > 0 {
		lists[FlatListKey] = spec.Rules
	}

	names := make([]string, 0, len(lists))
	for name := range lists {
		names = append(names, name)
	}
	sort.Strings(names)
	// Flat list first, then named lists in name order.
	if _, ok := lists[FlatListKey]; ok {
		reordered := []string{FlatListKey}
		for _, name := range names {
			if name != FlatListKey {
				reordered = append(reordered, name)
			}
		}
		names = reordered
	}

	for _, name := range names {
		for i, rs := range lists[name] {
			r := canonical(rs)
			if r.Key == "" {
				r.Key = fmt.Sprintf("%s[%d]", name, i)
			}
			if err := add(r, fmt.Sprintf("%s[%d]", name, i)); err != nil {
				return nil, err
			}
		}
	}

	for mi, subject := range spec.RuleMatrix {
		if subject.Self && (len(subject.CIDRBlocks) > 0 || len(subject.IPv6CIDRBlocks) > 0 || len(subject.PeerACLIDs) > 0) {
			return nil, fmt.Errorf("rule_matrix[%d]: self and target lists are mutually exclusive: %w",
				mi, domain.ErrInvalidConfiguration)
		}
		skey := subject.Key
		if skey == "" {
			skey = fmt.Sprintf("_matrix_[%d]", mi)
		}
		for ri, rs := range subject.Rules {
			r := canonical(rs)
			rkey := rs.Key
			if rkey == "" {
				rkey = strconv.Itoa(ri)
			}
			r.Key = skey + "#" + rkey
			r.FromMatrix = true
			r.Self = subject.Self
			r.TargetCIDRBlocks = subject.CIDRBlocks
			r.TargetIPv6CIDRBlocks = subject.IPv6CIDRBlocks
			r.TargetPeerACLIDs = subject.PeerACLIDs
			if err := add(r, fmt.Sprintf("rule_matrix[%d].rules[%d]", mi, ri)); err != nil {
				return nil, err
			}
		}
	}

	if spec.AllowAllEgressEnabled() {
		r := domain.Rule{
			Key:        AllowAllEgressKey,
			RuleNumber: spec.EgressRuleNumber(),
			Direction:  domain.DirectionEgress,
			Protocol:   "-1",
			Action:     domain.ActionAllow,
			CIDRBlock:  "0.0.0.0/0",
		}
		if err := add(r, "allow_all_egress"); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// canonical maps a RuleSpec to a canonical Rule with the uniform field set.
func canonical(rs domain.RuleSpec) domain.Rule {
	return domain.Rule{
		Key:           rs.Key,
		RuleNumber:    rs.RuleNumber,
		Direction:     domain.Direction(rs.Direction),
		Protocol:      rs.Protocol,
		Action:        domain.RuleAction(rs.Action),
		CIDRBlock:     rs.CIDRBlock,
		IPv6CIDRBlock: rs.IPv6CIDRBlock,
		FromPort:      rs.FromPort,
		ToPort:        rs.ToPort,
		ICMPType:      rs.ICMPType,
		ICMPCode:      rs.ICMPCode,
	}
}
