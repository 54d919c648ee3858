package domain

// Direction is the traffic direction a rule applies to.
type Direction string

const (
	DirectionIngress Direction = "ingress"
	DirectionEgress  Direction = "egress"
)

// RuleAction is the permit/deny decision of a rule.
type RuleAction string

const (
	ActionAllow RuleAction = "allow"
	ActionDeny  RuleAction = "deny"
)

// Rule is the canonical form every input shape reduces to. The key is unique
// across the whole rule set and stable across reconciles of unchanged rules,
// so an edit to one rule never disturbs the identity of any other.
//
// Rules that originate from the matrix carry their subject's targets until
// the partitioner explodes them into one rule per concrete target. After
// explosion exactly one of Self, CIDRBlock, IPv6CIDRBlock, or PeerACLID is
// populated.
type Rule struct {
	Key           string     `json:"key"`
	RuleNumber    int        `json:"rule_number"`
	Direction     Direction  `json:"direction"`
	Protocol      string     `json:"protocol"`
	Action        RuleAction `json:"action"`
	CIDRBlock     string     `json:"cidr_block,omitempty"`
	IPv6CIDRBlock string     `json:"ipv6_cidr_block,omitempty"`
	FromPort      int        `json:"from_port,omitempty"`
	ToPort        int        `json:"to_port,omitempty"`
	ICMPType      int        `json:"icmp_type,omitempty"`
	ICMPCode      int        `json:"icmp_code,omitempty"`

	// Self targets the managed ACL itself.
	Self bool `json:"self,omitempty"`

	// PeerACLID targets a peer ACL, set only on exploded matrix rules.
	PeerACLID string `json:"peer_acl_id,omitempty"`

	// Matrix targeting, consumed and cleared by the partitioner's explosion
	// step. Never set on exploded or list-origin rules.
	TargetCIDRBlocks     []string `json:"target_cidr_blocks,omitempty"`
	TargetIPv6CIDRBlocks []string `json:"target_ipv6_cidr_blocks,omitempty"`
	TargetPeerACLIDs     []string `json:"target_peer_acl_ids,omitempty"`

	// FromMatrix marks rules that must go through explosion.
	FromMatrix bool `json:"-"`
}

// HasListTargets reports whether the rule carries any unexploded list targets.
func (r *Rule) HasListTargets() bool {
	return len(r.TargetCIDRBlocks) > 0 || len(r.TargetIPv6CIDRBlocks) > 0 || len(r.TargetPeerACLIDs) > 0
}
