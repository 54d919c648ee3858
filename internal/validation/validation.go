// Package validation provides static validation for declarative ACL specs.
// Every check here runs before any provider call is attempted: invalid
// configuration blocks the whole reconciliation, there is no best-effort
// degradation.
package validation

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/stackwise/nacl-manager/internal/domain"
	"github.com/stackwise/nacl-manager/internal/ruleset"
)

// Rule numbers accepted by the provider. 32767 and up are reserved.
const (
	MinRuleNumber = 1
	MaxRuleNumber = 32766
)

// protocolAliases maps accepted protocol names to their numeric form.
var protocolAliases = map[string]string{
	"all":    "-1",
	"tcp":    "6",
	"udp":    "17",
	"icmp":   "1",
	"icmpv6": "58",
}

// NormalizeProtocol resolves a protocol alias to its numeric form. Unknown
// strings are returned unchanged; ValidateProtocol decides whether they are
// acceptable.
func NormalizeProtocol(p string) string {
	if n, ok := protocolAliases[strings.ToLower(p)]; ok {
		return n
	}
	return p
}

// ValidateProtocol validates a protocol string: "-1" for all traffic, a
// recognized alias, or a numeric IP protocol number.
func ValidateProtocol(p string) error {
	if p == "" {
		return fmt.Errorf("protocol must not be empty")
	}
	if p == "-1" {
		return nil
	}
	if _, ok := protocolAliases[strings.ToLower(p)]; ok {
		return nil
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return fmt.Errorf("unknown protocol: %s", p)
	}
	if n < 0 || n > 255 {
		return fmt.Errorf("protocol number out of range: %d", n)
	}
	return nil
}

// ValidateDirection validates a rule direction.
func ValidateDirection(d string) error {
	switch domain.Direction(d) {
	case domain.DirectionIngress, domain.DirectionEgress:
		return nil
	}
	return fmt.Errorf("direction must be %q or %q", domain.DirectionIngress, domain.DirectionEgress)
}

// ValidateAction validates a rule action.
func ValidateAction(a string) error {
	switch domain.RuleAction(a) {
	case domain.ActionAllow, domain.ActionDeny:
		return nil
	}
	return fmt.Errorf("action must be %q or %q", domain.ActionAllow, domain.ActionDeny)
}

// ValidateRuleNumber validates a rule evaluation number.
func ValidateRuleNumber(n int) error {
	if n < MinRuleNumber || n > MaxRuleNumber {
		return fmt.Errorf("rule number must be between %d and %d", MinRuleNumber, MaxRuleNumber)
	}
	return nil
}

// ValidateCIDR validates an IPv4 CIDR block.
func ValidateCIDR(cidr string) error {
	ip, _, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("must be a valid CIDR")
	}
	if ip.To4() == nil {
		return fmt.Errorf("must be an IPv4 CIDR")
	}
	return nil
}

// ValidateIPv6CIDR validates an IPv6 CIDR block.
func ValidateIPv6CIDR(cidr string) error {
	ip, _, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("must be a valid CIDR")
	}
	if ip.To4() != nil {
		return fmt.Errorf("must be an IPv6 CIDR")
	}
	return nil
}

// ValidatePortRange validates a from/to port pair.
func ValidatePortRange(from, to int) error {
	if from < 0 || from > 65535 || to < 0 || to > 65535 {
		return fmt.Errorf("ports must be between 0 and 65535")
	}
	if from > to {
		return fmt.Errorf("from_port must not exceed to_port")
	}
	return nil
}

// validateRuleSpec validates one rule spec, appending field-level errors
// under the given path.
func validateRuleSpec(errs *ValidationErrors, path string, rs domain.RuleSpec, requireTarget bool) {
	if err := ValidateRuleNumber(rs.RuleNumber); err != nil {
		errs.Add(path+".rule_number", strconv.Itoa(rs.RuleNumber), err.Error())
	}
	if err := ValidateDirection(rs.Direction); err != nil {
		errs.Add(path+".direction", rs.Direction, err.Error())
	}
	if err := ValidateAction(rs.Action); err != nil {
		errs.Add(path+".action", rs.Action, err.Error())
	}
	if err := ValidateProtocol(rs.Protocol); err != nil {
		errs.Add(path+".protocol", rs.Protocol, err.Error())
	}
	if err := ValidatePortRange(rs.FromPort, rs.ToPort); err != nil {
		errs.Add(path+".from_port", strconv.Itoa(rs.FromPort), err.Error())
	}
	if rs.CIDRBlock != "" {
		if err := ValidateCIDR(rs.CIDRBlock); err != nil {
			errs.Add(path+".cidr_block", rs.CIDRBlock, err.Error())
		}
	}
	if rs.IPv6CIDRBlock != "" {
		if err := ValidateIPv6CIDR(rs.IPv6CIDRBlock); err != nil {
			errs.Add(path+".ipv6_cidr_block", rs.IPv6CIDRBlock, err.Error())
		}
	}
	if rs.CIDRBlock != "" && rs.IPv6CIDRBlock != "" {
		errs.Add(path, rs.CIDRBlock, "exactly one address family applies per rule")
	}
	if requireTarget && rs.CIDRBlock == "" && rs.IPv6CIDRBlock == "" {
		errs.Add(path, "", "rule needs a cidr_block or ipv6_cidr_block")
	}
}

// ValidateSpec statically validates a whole ACL spec. It covers the
// configuration error taxonomy: cardinality of the external-ACL and name
// lists, empty external identifier, ambiguous matrix targeting, per-field
// rule checks, reserved-name and duplicate-key collisions, and duplicate
// rule numbers within a direction after explosion.
func ValidateSpec(spec *domain.ACLSpec) ValidationErrors {
	var errs ValidationErrors

	if !spec.IsEnabled() {
		// A disabled spec is a total no-op regardless of its other inputs.
		return nil
	}

	external := false
	switch len(spec.TargetNetworkACLID) {
	case 0:
	case 1:
		if strings.TrimSpace(spec.TargetNetworkACLID[0]) == "" {
			errs.Add("target_network_acl_id[0]", "", "external ACL id must not be empty")
		}
		external = true
	default:
		errs.Add("target_network_acl_id", strconv.Itoa(len(spec.TargetNetworkACLID)),
			"at most one external ACL may be supplied")
	}
	if len(spec.NetworkACLName) > 1 {
		errs.Add("network_acl_name", strconv.Itoa(len(spec.NetworkACLName)),
			"at most one name may be supplied")
	}
	if !external && spec.VPCID == "" {
		errs.Add("vpc_id", "", "vpc_id is required when creating an ACL")
	}
	if external && spec.InlineRulesEnabled {
		errs.Add("inline_rules_enabled", "true",
			"inline rules require a created ACL, not target_network_acl_id")
	}

	for i, rs := range spec.Rules {
		validateRuleSpec(&errs, fmt.Sprintf("rules[%d]", i), rs, true)
	}
	for name, list := range spec.RulesMap {
		if name == ruleset.FlatListKey {
			errs.Add("rules_map", name, "name is reserved for the flat rule list")
		}
		for i, rs := range list {
			validateRuleSpec(&errs, fmt.Sprintf("rules_map[%s][%d]", name, i), rs, true)
		}
	}
	for mi, subject := range spec.RuleMatrix {
		path := fmt.Sprintf("rule_matrix[%d]", mi)
		if subject.Self && (len(subject.CIDRBlocks) > 0 || len(subject.IPv6CIDRBlocks) > 0 || len(subject.PeerACLIDs) > 0) {
			errs.Add(path, "", "self and target lists are mutually exclusive")
		}
		if !subject.Self && len(subject.CIDRBlocks) == 0 && len(subject.IPv6CIDRBlocks) == 0 && len(subject.PeerACLIDs) == 0 {
			errs.Add(path, "", "subject needs self or at least one target list")
		}
		for i, cidr := range subject.CIDRBlocks {
			if err := ValidateCIDR(cidr); err != nil {
				errs.Add(fmt.Sprintf("%s.cidr_blocks[%d]", path, i), cidr, err.Error())
			}
		}
		for i, cidr := range subject.IPv6CIDRBlocks {
			if err := ValidateIPv6CIDR(cidr); err != nil {
				errs.Add(fmt.Sprintf("%s.ipv6_cidr_blocks[%d]", path, i), cidr, err.Error())
			}
		}
		for i, rs := range subject.Rules {
			// Matrix rules take their targets from the subject.
			validateRuleSpec(&errs, fmt.Sprintf("%s.rules[%d]", path, i), rs, false)
		}
	}

	if errs.HasErrors() {
		return errs
	}

	// Structural checks over the derived rule set: key uniqueness and
	// per-direction rule-number uniqueness must hold before any provider
	// call, or resource identity silently corrupts.
	rules, err := ruleset.Normalize(spec)
	if err != nil {
		errs.Add("rules", "", err.Error())
		return errs
	}
	keyed, err := ruleset.ExplodeResourced(rules)
	if err != nil {
		errs.Add("rules", "", err.Error())
		return errs
	}
	numbers := make(map[string]string, len(keyed)) // direction:number -> key
	for key, r := range keyed {
		slot := fmt.Sprintf("%s:%d", r.Direction, r.RuleNumber)
		if prev, ok := numbers[slot]; ok {
			first, second := prev, key
			if second < first {
				first, second = second, first
			}
			errs.Add("rules", slot, fmt.Sprintf(
				"rules %q and %q share rule number %d in direction %s", first, second, r.RuleNumber, r.Direction))
		} else {
			numbers[slot] = key
		}
	}

	return errs
}
