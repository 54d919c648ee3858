// Package reconciler applies a desired-state plan against the provider. The
// plan is recomputed from scratch every pass, so an interrupted apply leaves
// partial state that the next pass corrects; nothing here keeps state across
// passes beyond the snapshot persisted with the version record.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/stackwise/nacl-manager/internal/domain"
	"github.com/stackwise/nacl-manager/internal/provider"
	"github.com/stackwise/nacl-manager/internal/validation"
)

// deleteBackoffBase is the initial backoff for delete retries on dependency
// violations.
const deleteBackoffBase = 500 * time.Millisecond

// Reconciler executes plans against a provider client.
type Reconciler struct {
	client provider.Client
}

// New creates a new Reconciler.
func New(client provider.Client) *Reconciler {
	return &Reconciler{client: client}
}

// Apply brings provider state in line with the plan. prior is the snapshot
// from the last successful pass (nil on the first run). The returned result
// carries the authoritative ACL identifier and the new snapshot.
func (r *Reconciler) Apply(ctx context.Context, plan *domain.Plan, prior *domain.ReconcileState) (*domain.ReconcileResult, error) {
	if plan == nil || !plan.Enabled {
		return r.applyDisabled(ctx, prior)
	}

	switch plan.Mode {
	case domain.ModeExternal:
		return r.applyExternal(ctx, plan, prior)
	case domain.ModeDestroyBeforeCreate:
		return r.applyInPlace(ctx, plan, prior)
	case domain.ModeCreateBeforeDestroy:
		return r.applyReplacement(ctx, plan, prior)
	default:
		return nil, fmt.Errorf("unknown lifecycle mode %q: %w", plan.Mode, domain.ErrInvalidConfiguration)
	}
}

// applyDisabled tears down whatever the prior pass managed.
func (r *Reconciler) applyDisabled(ctx context.Context, prior *domain.ReconcileState) (*domain.ReconcileResult, error) {
	if prior == nil || prior.NetworkACLID == "" {
		return &domain.ReconcileResult{State: &domain.ReconcileState{}}, nil
	}

	if prior.External {
		// Only our own rules are removed from an external ACL.
		for key, ref := range prior.Rules {
			if err := r.client.DeleteRule(ctx, prior.NetworkACLID, ref.RuleNumber, ref.Egress); err != nil && !errors.Is(err, provider.ErrACLNotFound) {
				return nil, fmt.Errorf("removing rule %q from external ACL: %w", key, err)
			}
		}
		return &domain.ReconcileResult{State: &domain.ReconcileState{}}, nil
	}

	if err := r.teardownACL(ctx, prior.NetworkACLID, domain.DefaultDeleteTimeout); err != nil {
		return nil, err
	}
	return &domain.ReconcileResult{State: &domain.ReconcileState{}}, nil
}

// applyExternal manages rules on a caller-supplied ACL. Rules the prior pass
// created and that are no longer desired are removed; rules present on the
// ACL but never managed here are left alone.
func (r *Reconciler) applyExternal(ctx context.Context, plan *domain.Plan, prior *domain.ReconcileState) (*domain.ReconcileResult, error) {
	aclID := plan.ExternalACLID
	if _, err := r.client.GetNetworkACL(ctx, aclID); err != nil {
		return nil, fmt.Errorf("resolving external ACL %s: %w", aclID, err)
	}

	managed := map[string]domain.RuleRef{}
	if prior != nil && prior.External && prior.NetworkACLID == aclID {
		managed = prior.Rules
	}

	refs, err := r.syncResourcedRules(ctx, aclID, plan.ResourcedRules, managed, false)
	if err != nil {
		return nil, err
	}

	return result(aclID, "", "", plan, refs), nil
}

// applyInPlace keeps the ACL identifier stable and edits rules in place.
// There can be a brief traffic-control gap between a rule's deletion and its
// replacement; that is the documented cost of preserving identity.
func (r *Reconciler) applyInPlace(ctx context.Context, plan *domain.Plan, prior *domain.ReconcileState) (*domain.ReconcileResult, error) {
	acl, err := r.ensureACL(ctx, plan, prior)
	if err != nil {
		return nil, err
	}

	var refs map[string]domain.RuleRef
	if plan.InlineRules() {
		ingress, egress := toRuleInputs(plan.InlineIngress), toRuleInputs(plan.InlineEgress)
		if err := r.client.ReplaceInlineRules(ctx, acl.ID, ingress, egress); err != nil {
			return nil, fmt.Errorf("replacing inline rules on %s: %w", acl.ID, err)
		}
	} else {
		managed := map[string]domain.RuleRef{}
		if prior != nil && prior.NetworkACLID == acl.ID {
			managed = prior.Rules
		}
		refs, err = r.syncResourcedRules(ctx, acl.ID, plan.ResourcedRules, managed, true)
		if err != nil {
			return nil, err
		}
	}

	if len(plan.SubnetIDs) > 0 {
		if err := r.client.ReplaceAssociations(ctx, acl.ID, plan.SubnetIDs); err != nil {
			return nil, fmt.Errorf("associating subnets with %s: %w", acl.ID, err)
		}
	}

	return result(acl.ID, acl.ARN, acl.Name, plan, refs), nil
}

// applyReplacement implements safe zero-downtime replacement: when rule
// content changed, a brand-new ACL with all of its rules is created and wired
// in before the old one is torn down, so no window with missing or duplicate
// rules can appear.
func (r *Reconciler) applyReplacement(ctx context.Context, plan *domain.Plan, prior *domain.ReconcileState) (*domain.ReconcileResult, error) {
	// Unchanged content keeps the ACL; this pass only repairs whatever an
	// earlier interrupted run left missing.
	if prior != nil && !prior.External && prior.NetworkACLID != "" && prior.Fingerprint == plan.Fingerprint {
		if acl, err := r.client.GetNetworkACL(ctx, prior.NetworkACLID); err == nil {
			return r.repairReplacement(ctx, plan, acl, prior)
		}
		// ACL vanished out from under us; fall through and recreate.
	}

	// With no usable prior state, an ACL carrying the fingerprinted name may
	// still exist from an interrupted earlier pass. Adopt it instead of
	// colliding on the name.
	if prior == nil || prior.NetworkACLID == "" {
		if acl, err := r.client.FindNetworkACLByName(ctx, plan.ACL.VPCID, plan.ACL.Name); err == nil {
			return r.repairReplacement(ctx, plan, acl, prior)
		}
	}

	in := provider.CreateNetworkACLInput{
		VPCID: plan.ACL.VPCID,
		Name:  plan.ACL.Name,
		Tags:  plan.ACL.Tags,
	}
	if plan.InlineRules() {
		in.Ingress = toRuleInputs(plan.InlineIngress)
		in.Egress = toRuleInputs(plan.InlineEgress)
	}
	acl, err := r.client.CreateNetworkACL(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("creating replacement ACL %q: %w", plan.ACL.Name, err)
	}

	// A rule's existence depends on its ACL already existing; among
	// themselves the creations are independent units.
	created := make(map[string]domain.RuleRef, len(plan.ResourcedRules))
	for key, rule := range plan.ResourcedRules {
		if err := r.client.CreateRule(ctx, acl.ID, toRuleInput(rule)); err != nil {
			return nil, fmt.Errorf("creating rule %q on %s: %w", key, acl.ID, err)
		}
		created[key] = domain.RuleRef{RuleNumber: rule.RuleNumber, Egress: rule.Direction == domain.DirectionEgress}
	}

	// Completion barrier: every rule must exist before the ACL goes into
	// service, and the old ACL survives until the cutover completes.
	if plan.Barrier != nil {
		for _, key := range plan.Barrier.WaitFor {
			if _, ok := created[key]; !ok {
				return nil, fmt.Errorf("barrier: rule %q missing on replacement ACL %s: %w",
					key, acl.ID, domain.ErrReconcileFailed)
			}
		}
	}

	if len(plan.SubnetIDs) > 0 {
		if err := r.client.ReplaceAssociations(ctx, acl.ID, plan.SubnetIDs); err != nil {
			return nil, fmt.Errorf("cutting associations over to %s: %w", acl.ID, err)
		}
	}

	// Teardown of the superseded ACL happens strictly after the cutover.
	if prior != nil && !prior.External && prior.NetworkACLID != "" && prior.NetworkACLID != acl.ID {
		if err := r.teardownACL(ctx, prior.NetworkACLID, plan.DeleteTimeout); err != nil {
			// The replacement is in service; a lingering old ACL is corrected
			// on re-run rather than failing the pass.
			log.Printf("Warning: tearing down superseded ACL %s: %v", prior.NetworkACLID, err)
		}
	}

	return result(acl.ID, acl.ARN, acl.Name, plan, created), nil
}

// repairReplacement is the idempotent re-run path for an unchanged
// fingerprint: create whatever rules are missing and make sure associations
// point at the ACL.
func (r *Reconciler) repairReplacement(ctx context.Context, plan *domain.Plan, acl *provider.NetworkACL, prior *domain.ReconcileState) (*domain.ReconcileResult, error) {
	refs := make(map[string]domain.RuleRef, len(plan.ResourcedRules))
	if !plan.InlineRules() {
		live, err := r.client.ListRules(ctx, acl.ID)
		if err != nil {
			return nil, fmt.Errorf("listing rules on %s: %w", acl.ID, err)
		}
		existing := make(map[domain.RuleRef]bool, len(live))
		for _, lr := range live {
			existing[domain.RuleRef{RuleNumber: lr.RuleNumber, Egress: lr.Egress}] = true
		}
		for key, rule := range plan.ResourcedRules {
			ref := domain.RuleRef{RuleNumber: rule.RuleNumber, Egress: rule.Direction == domain.DirectionEgress}
			if !existing[ref] {
				if err := r.client.CreateRule(ctx, acl.ID, toRuleInput(rule)); err != nil {
					return nil, fmt.Errorf("restoring rule %q on %s: %w", key, acl.ID, err)
				}
			}
			refs[key] = ref
		}
	}

	if len(plan.SubnetIDs) > 0 {
		if err := r.client.ReplaceAssociations(ctx, acl.ID, plan.SubnetIDs); err != nil {
			return nil, fmt.Errorf("associating subnets with %s: %w", acl.ID, err)
		}
	}

	return result(acl.ID, acl.ARN, acl.Name, plan, refs), nil
}

// ensureACL returns the prior pass's ACL when it still exists, creating one
// otherwise. Used by the identity-preserving mode.
func (r *Reconciler) ensureACL(ctx context.Context, plan *domain.Plan, prior *domain.ReconcileState) (*provider.NetworkACL, error) {
	if prior != nil && !prior.External && prior.NetworkACLID != "" {
		acl, err := r.client.GetNetworkACL(ctx, prior.NetworkACLID)
		if err == nil {
			return acl, nil
		}
		if !errors.Is(err, provider.ErrACLNotFound) {
			return nil, fmt.Errorf("resolving ACL %s: %w", prior.NetworkACLID, err)
		}
	}
	acl, err := r.client.CreateNetworkACL(ctx, provider.CreateNetworkACLInput{
		VPCID: plan.ACL.VPCID,
		Name:  plan.ACL.Name,
		Tags:  plan.ACL.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ACL %q: %w", plan.ACL.Name, err)
	}
	return acl, nil
}

// syncResourcedRules diffs the desired keyed rules against the live rules of
// the ACL and converges them. Deletions run before creations so freed rule
// numbers can be reused. When ownAllRules is set, live rules not in the
// desired set are removed even if no prior pass recorded them; on an external
// ACL only previously-managed rules are touched.
func (r *Reconciler) syncResourcedRules(ctx context.Context, aclID string, desired map[string]domain.Rule, managed map[string]domain.RuleRef, ownAllRules bool) (map[string]domain.RuleRef, error) {
	live, err := r.client.ListRules(ctx, aclID)
	if err != nil {
		return nil, fmt.Errorf("listing rules on %s: %w", aclID, err)
	}
	liveBySlot := make(map[domain.RuleRef]provider.RuleInput, len(live))
	for _, lr := range live {
		liveBySlot[domain.RuleRef{RuleNumber: lr.RuleNumber, Egress: lr.Egress}] = lr
	}

	desiredSlots := make(map[domain.RuleRef]bool, len(desired))
	for _, rule := range desired {
		desiredSlots[domain.RuleRef{RuleNumber: rule.RuleNumber, Egress: rule.Direction == domain.DirectionEgress}] = true
	}

	// Remove managed rules whose slot is gone or repurposed, then any live
	// rule we own that is not desired, then stale-content slots.
	for key, ref := range managed {
		if _, stillLive := liveBySlot[ref]; !stillLive {
			continue
		}
		if !desiredSlots[ref] {
			if err := r.client.DeleteRule(ctx, aclID, ref.RuleNumber, ref.Egress); err != nil {
				return nil, fmt.Errorf("deleting rule %q on %s: %w", key, aclID, err)
			}
			delete(liveBySlot, ref)
		}
	}
	if ownAllRules {
		for slot := range liveBySlot {
			if !desiredSlots[slot] {
				if err := r.client.DeleteRule(ctx, aclID, slot.RuleNumber, slot.Egress); err != nil {
					return nil, fmt.Errorf("deleting rule %d (egress=%v) on %s: %w", slot.RuleNumber, slot.Egress, aclID, err)
				}
				delete(liveBySlot, slot)
			}
		}
	}

	refs := make(map[string]domain.RuleRef, len(desired))
	for key, rule := range desired {
		ref := domain.RuleRef{RuleNumber: rule.RuleNumber, Egress: rule.Direction == domain.DirectionEgress}
		want := toRuleInput(rule)
		if got, ok := liveBySlot[ref]; ok {
			if got != want {
				if err := r.client.DeleteRule(ctx, aclID, ref.RuleNumber, ref.Egress); err != nil {
					return nil, fmt.Errorf("replacing rule %q on %s: %w", key, aclID, err)
				}
				if err := r.client.CreateRule(ctx, aclID, want); err != nil {
					return nil, fmt.Errorf("replacing rule %q on %s: %w", key, aclID, err)
				}
			}
		} else {
			if err := r.client.CreateRule(ctx, aclID, want); err != nil {
				return nil, fmt.Errorf("creating rule %q on %s: %w", key, aclID, err)
			}
		}
		refs[key] = ref
	}

	return refs, nil
}

// teardownACL removes an ACL this system created: its remaining associations
// are detached, then the delete is retried on dependency violations within
// the configured timeout window. The retry policy belongs to the provider
// contract; this only supplies the bound.
func (r *Reconciler) teardownACL(ctx context.Context, aclID, deleteTimeout string) error {
	timeout, err := time.ParseDuration(deleteTimeout)
	if err != nil {
		timeout = 10 * time.Minute
	}

	if err := r.client.DisassociateAll(ctx, aclID); err != nil && !errors.Is(err, provider.ErrACLNotFound) {
		return fmt.Errorf("disassociating %s: %w", aclID, err)
	}

	backoff := retry.WithMaxDuration(timeout, retry.NewFibonacci(deleteBackoffBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.client.DeleteNetworkACL(ctx, aclID); err != nil {
			if errors.Is(err, provider.ErrDependencyViolation) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, provider.ErrACLNotFound) {
		return fmt.Errorf("deleting ACL %s: %w", aclID, err)
	}
	return nil
}

// result assembles the reconcile result and its persisted state snapshot.
func result(aclID, aclARN, aclName string, plan *domain.Plan, refs map[string]domain.RuleRef) *domain.ReconcileResult {
	ruleIDs := make(map[string]string, len(refs))
	for key, ref := range refs {
		direction := domain.DirectionIngress
		if ref.Egress {
			direction = domain.DirectionEgress
		}
		ruleIDs[key] = fmt.Sprintf("%s/%s/%d", aclID, direction, ref.RuleNumber)
	}
	return &domain.ReconcileResult{
		NetworkACLID:   aclID,
		NetworkACLARN:  aclARN,
		NetworkACLName: aclName,
		Fingerprint:    plan.Fingerprint,
		RuleIDs:        ruleIDs,
		State: &domain.ReconcileState{
			NetworkACLID:   aclID,
			NetworkACLName: aclName,
			Fingerprint:    plan.Fingerprint,
			External:       plan.Mode == domain.ModeExternal,
			Inline:         plan.InlineRules(),
			Rules:          refs,
			SubnetIDs:      plan.SubnetIDs,
		},
	}
}

// toRuleInput maps a canonical rule to the provider's rule shape. Protocol
// aliases resolve to their numeric form at this boundary.
func toRuleInput(r domain.Rule) provider.RuleInput {
	return provider.RuleInput{
		RuleNumber:    r.RuleNumber,
		Egress:        r.Direction == domain.DirectionEgress,
		Protocol:      validation.NormalizeProtocol(r.Protocol),
		Allow:         r.Action == domain.ActionAllow,
		CIDRBlock:     r.CIDRBlock,
		IPv6CIDRBlock: r.IPv6CIDRBlock,
		FromPort:      r.FromPort,
		ToPort:        r.ToPort,
		ICMPType:      r.ICMPType,
		ICMPCode:      r.ICMPCode,
		Self:          r.Self,
		PeerACLID:     r.PeerACLID,
	}
}

// toRuleInputs maps a rule slice preserving order.
func toRuleInputs(rules []domain.Rule) []provider.RuleInput {
	out := make([]provider.RuleInput, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleInput(r))
	}
	return out
}
