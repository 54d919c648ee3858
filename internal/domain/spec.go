package domain

// Defaults applied to unset ACLSpec fields.
const (
	DefaultAllowAllEgressRuleNumber = 100
	DefaultCreateTimeout            = "10m"
	DefaultDeleteTimeout            = "10m"
	DefaultACLBaseName              = "nacl"
)

// RuleSpec is a single access rule as supplied by the caller, before
// normalization. The same shape is used in the flat rule list, in named rule
// lists, and inside matrix subjects.
type RuleSpec struct {
	// Key, when set, pins the rule's identity across spec edits. When empty a
	// key is synthesized from the enclosing container name and the rule's
	// position, which means reordering an unkeyed list changes the identity of
	// every rule after the insertion point. That is a documented caller
	// responsibility, not something the normalizer compensates for.
	Key           string `json:"key,omitempty"`
	RuleNumber    int    `json:"rule_number"`
	Direction     string `json:"direction"` // "ingress" or "egress"
	Protocol      string `json:"protocol"`  // numeric protocol, or "-1" for all
	Action        string `json:"action"`    // "allow" or "deny"
	CIDRBlock     string `json:"cidr_block,omitempty"`
	IPv6CIDRBlock string `json:"ipv6_cidr_block,omitempty"`
	FromPort      int    `json:"from_port,omitempty"`
	ToPort        int    `json:"to_port,omitempty"`
	ICMPType      int    `json:"icmp_type,omitempty"`
	ICMPCode      int    `json:"icmp_code,omitempty"`
}

// MatrixSubject is one entry of the rule matrix: a set of targets and the
// rules that apply against each of them. Self-targeting and list-targeting
// are mutually exclusive per subject.
type MatrixSubject struct {
	Key            string     `json:"key,omitempty"`
	Self           bool       `json:"self,omitempty"`
	CIDRBlocks     []string   `json:"cidr_blocks,omitempty"`
	IPv6CIDRBlocks []string   `json:"ipv6_cidr_blocks,omitempty"`
	PeerACLIDs     []string   `json:"peer_acl_ids,omitempty"`
	Rules          []RuleSpec `json:"rules"`
}

// ACLSpec is the full declarative configuration for one managed network ACL.
// It is the unit stored per workspace and the sole input to planning; every
// reconcile pass re-derives the desired state from it.
type ACLSpec struct {
	// Enabled defaults to true. A disabled spec produces an empty plan and
	// tears down anything previously managed.
	Enabled *bool `json:"enabled,omitempty"`

	VPCID     string   `json:"vpc_id"`
	SubnetIDs []string `json:"subnet_ids,omitempty"`

	// The three rule input shapes. All are optional and may be combined.
	Rules      []RuleSpec            `json:"rules,omitempty"`
	RulesMap   map[string][]RuleSpec `json:"rules_map,omitempty"`
	RuleMatrix []MatrixSubject       `json:"rule_matrix,omitempty"`

	// TargetNetworkACLID attaches rules to an existing ACL instead of
	// creating one. Zero or one element.
	TargetNetworkACLID []string `json:"target_network_acl_id,omitempty"`

	// NetworkACLName overrides the generated name. Zero or one element.
	NetworkACLName []string `json:"network_acl_name,omitempty"`

	CreateBeforeDestroy  *bool `json:"create_before_destroy,omitempty"` // default true
	PreserveNetworkACLID bool  `json:"preserve_network_acl_id,omitempty"`

	AllowAllEgress           *bool `json:"allow_all_egress,omitempty"` // default true
	AllowAllEgressRuleNumber int   `json:"allow_all_egress_rule_number,omitempty"`

	InlineRulesEnabled bool `json:"inline_rules_enabled,omitempty"`

	// Opaque duration strings passed through to the provider collaborator.
	CreateTimeout string `json:"create_timeout,omitempty"`
	DeleteTimeout string `json:"delete_timeout,omitempty"`

	Tags map[string]string `json:"tags,omitempty"`
}

// IsEnabled reports whether the spec is enabled (default true).
func (s *ACLSpec) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// CreateBeforeDestroyEnabled reports the create_before_destroy flag
// (default true).
func (s *ACLSpec) CreateBeforeDestroyEnabled() bool {
	return s.CreateBeforeDestroy == nil || *s.CreateBeforeDestroy
}

// AllowAllEgressEnabled reports the allow_all_egress flag (default true).
func (s *ACLSpec) AllowAllEgressEnabled() bool {
	return s.AllowAllEgress == nil || *s.AllowAllEgress
}

// EgressRuleNumber returns the rule number for the convenience egress rule.
func (s *ACLSpec) EgressRuleNumber() int {
	if s.AllowAllEgressRuleNumber != 0 {
		return s.AllowAllEgressRuleNumber
	}
	return DefaultAllowAllEgressRuleNumber
}

// BaseName returns the ACL name or name prefix to use.
func (s *ACLSpec) BaseName() string {
	if len(s.NetworkACLName) == 1 && s.NetworkACLName[0] != "" {
		return s.NetworkACLName[0]
	}
	return DefaultACLBaseName
}

// CreateTimeoutOrDefault returns the create timeout string.
func (s *ACLSpec) CreateTimeoutOrDefault() string {
	if s.CreateTimeout != "" {
		return s.CreateTimeout
	}
	return DefaultCreateTimeout
}

// DeleteTimeoutOrDefault returns the delete timeout string.
func (s *ACLSpec) DeleteTimeoutOrDefault() string {
	if s.DeleteTimeout != "" {
		return s.DeleteTimeout
	}
	return DefaultDeleteTimeout
}
