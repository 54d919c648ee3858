package lifecycle

import (
	"fmt"
	"sort"

	"github.com/stackwise/nacl-manager/internal/domain"
	"github.com/stackwise/nacl-manager/internal/ruleset"
)

// BuildPlan derives the full desired-state plan from one spec: normalize,
// partition per mode, resolve the lifecycle, fingerprint, and select the
// single authoritative ACL. It is a pure function of the spec and makes no
// provider calls.
func BuildPlan(spec *domain.ACLSpec) (*domain.Plan, error) {
	if !spec.IsEnabled() {
		return &domain.Plan{Enabled: false}, nil
	}

	mode, err := Resolve(spec)
	if err != nil {
		return nil, err
	}
	if spec.InlineRulesEnabled && mode == domain.ModeExternal {
		return nil, fmt.Errorf("inline_rules_enabled requires a created ACL, not target_network_acl_id: %w",
			domain.ErrInvalidConfiguration)
	}
	if mode != domain.ModeExternal && spec.VPCID == "" {
		return nil, fmt.Errorf("vpc_id is required when creating an ACL: %w", domain.ErrInvalidConfiguration)
	}

	rules, err := ruleset.Normalize(spec)
	if err != nil {
		return nil, err
	}

	plan := &domain.Plan{
		Enabled:       true,
		Mode:          mode,
		SubnetIDs:     spec.SubnetIDs,
		CreateTimeout: spec.CreateTimeoutOrDefault(),
		DeleteTimeout: spec.DeleteTimeoutOrDefault(),
	}

	// Inline and resourced modes are mutually exclusive: a rule set is either
	// entirely embedded in the ACL or entirely standalone units.
	if spec.InlineRulesEnabled {
		plan.Inline = true
		plan.InlineIngress, plan.InlineEgress = ruleset.PartitionInline(rules)
	} else {
		keyed, err := ruleset.ExplodeResourced(rules)
		if err != nil {
			return nil, err
		}
		plan.ResourcedRules = keyed
	}

	if mode == domain.ModeCreateBeforeDestroy {
		// The fingerprint is defined over the keyed mapping, so it depends on
		// the rule set and not on input order. Inline mode fingerprints the
		// same mapping it would have produced resourced, keeping the
		// name-changes-iff-content-changes property in both modes.
		fingerprinted := plan.ResourcedRules
		if spec.InlineRulesEnabled {
			fingerprinted = make(map[string]domain.Rule, len(plan.InlineIngress)+len(plan.InlineEgress))
			for _, r := range plan.InlineIngress {
				fingerprinted[r.Key] = r
			}
			for _, r := range plan.InlineEgress {
				fingerprinted[r.Key] = r
			}
		}
		fp, err := Fingerprint(fingerprinted)
		if err != nil {
			return nil, err
		}
		plan.Fingerprint = fp
	}

	if mode == domain.ModeExternal {
		plan.ExternalACLID = spec.TargetNetworkACLID[0]
		return plan, nil
	}

	plan.ACL = &domain.DesiredACL{
		Name:  aclName(spec.BaseName(), plan.Fingerprint, mode),
		VPCID: spec.VPCID,
		Tags:  spec.Tags,
	}

	if mode == domain.ModeCreateBeforeDestroy {
		barrier := &domain.Barrier{}
		for key := range plan.ResourcedRules {
			barrier.WaitFor = append(barrier.WaitFor, key)
		}
		sort.Strings(barrier.WaitFor)
		plan.Barrier = barrier
	}

	return plan, nil
}
