package domain

// LifecycleMode is the resolved construction mode for the managed ACL.
// Exactly one mode is in effect per plan, never both create flavors, never
// neither.
type LifecycleMode string

const (
	// ModeCreateBeforeDestroy replaces the ACL wholesale whenever rule
	// content changes: the new ACL and all of its rules exist before the old
	// one is torn down, so there is never a window with missing or duplicate
	// rules.
	ModeCreateBeforeDestroy LifecycleMode = "create_before_destroy"

	// ModeDestroyBeforeCreate preserves the ACL identifier and edits rules in
	// place, accepting a brief traffic-control gap during the edit.
	ModeDestroyBeforeCreate LifecycleMode = "destroy_before_create"

	// ModeExternal attaches rules to a caller-supplied existing ACL.
	ModeExternal LifecycleMode = "external"
)

// DesiredACL describes the ACL object this system creates. Nil when attaching
// to an external ACL.
type DesiredACL struct {
	Name  string            `json:"name"`
	VPCID string            `json:"vpc_id"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// Barrier declares the completion barrier for create-before-destroy
// replacement: every listed rule key must exist on the replacement ACL before
// the subnet associations are cut over, and the old ACL must not be torn down
// until the cutover completes.
type Barrier struct {
	WaitFor []string `json:"wait_for"`
}

// Plan is the desired resource state derived from one ACLSpec. It is a pure
// function of the spec: no provider call is made while planning and two plans
// built from identical specs are identical.
type Plan struct {
	Enabled bool          `json:"enabled"`
	Mode    LifecycleMode `json:"mode"`

	// ACL is set when this system creates the ACL; ExternalACLID when the
	// caller supplied one. Exactly one of the two is populated on an enabled
	// plan.
	ACL           *DesiredACL `json:"acl,omitempty"`
	ExternalACLID string      `json:"external_acl_id,omitempty"`

	// Inline marks the mutually exclusive embedded-rules mode; the inline
	// views are populated only when it is set, in canonical sequence order.
	Inline        bool   `json:"inline,omitempty"`
	InlineIngress []Rule `json:"inline_ingress,omitempty"`
	InlineEgress  []Rule `json:"inline_egress,omitempty"`

	// ResourcedRules is the keyed rule map, populated only when inline rules
	// are disabled. Keys are unique by construction.
	ResourcedRules map[string]Rule `json:"resourced_rules,omitempty"`

	// Fingerprint is the content digest of ResourcedRules, empty outside
	// create-before-destroy mode.
	Fingerprint string `json:"fingerprint,omitempty"`

	SubnetIDs []string `json:"subnet_ids,omitempty"`

	// Timeouts passed through to the provider collaborator.
	CreateTimeout string `json:"create_timeout"`
	DeleteTimeout string `json:"delete_timeout"`

	Barrier *Barrier `json:"barrier,omitempty"`
}

// InlineRules reports whether rules embed directly in the ACL object.
func (p *Plan) InlineRules() bool {
	return p.Inline
}

// RuleRef locates a provider-side rule: NACL rule numbers are unique per
// (ACL, direction) pair, so number plus direction identifies one.
type RuleRef struct {
	RuleNumber int  `json:"rule_number"`
	Egress     bool `json:"egress"`
}

// ReconcileState is the snapshot of what the reconciler manages after a
// successful pass. It is persisted with the version record and fed back as
// the prior state on the next pass; rule identities themselves are always
// recomputed from the spec.
type ReconcileState struct {
	NetworkACLID   string             `json:"network_acl_id,omitempty"`
	NetworkACLName string             `json:"network_acl_name,omitempty"`
	Fingerprint    string             `json:"fingerprint,omitempty"`
	External       bool               `json:"external,omitempty"`
	Inline         bool               `json:"inline,omitempty"`
	Rules          map[string]RuleRef `json:"rules,omitempty"`
	SubnetIDs      []string           `json:"subnet_ids,omitempty"`
}

// ReconcileResult is the outcome of applying a plan.
type ReconcileResult struct {
	NetworkACLID   string            `json:"network_acl_id,omitempty"`
	NetworkACLARN  string            `json:"network_acl_arn,omitempty"`
	NetworkACLName string            `json:"network_acl_name,omitempty"`
	Fingerprint    string            `json:"fingerprint,omitempty"`
	RuleIDs        map[string]string `json:"rule_ids,omitempty"`
	State          *ReconcileState   `json:"-"`
}

// ReconcileRequest is used to trigger a manual reconcile.
type ReconcileRequest struct {
	Force bool `json:"force,omitempty"`
}

// ReconcileResponse is returned after a reconcile operation.
type ReconcileResponse struct {
	VersionID     string            `json:"version_id"`
	VersionNumber int               `json:"version_number"`
	Status        string            `json:"status"`
	Error         string            `json:"error,omitempty"`
	NetworkACLID  string            `json:"network_acl_id,omitempty"`
	RuleIDs       map[string]string `json:"rule_ids,omitempty"`
}
