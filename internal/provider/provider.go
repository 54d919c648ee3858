// Package provider defines the contract with the cloud provider that owns
// network ACL resources. The service never speaks to a provider HTTP API
// itself; deployments wire in an adapter implementing Client, and the bundled
// file shim serves development and tests.
package provider

import (
	"context"
	"errors"
)

// ErrDependencyViolation is returned by DeleteNetworkACL while other
// resources (typically subnet associations) still reference the ACL. Callers
// retry within their delete-timeout window.
var ErrDependencyViolation = errors.New("dependency violation")

// ErrACLNotFound is returned when the referenced ACL does not exist.
var ErrACLNotFound = errors.New("network ACL not found")

// NetworkACL is a provider-side ACL resource.
type NetworkACL struct {
	ID    string            `json:"id"`
	ARN   string            `json:"arn,omitempty"`
	VPCID string            `json:"vpc_id"`
	Name  string            `json:"name"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// RuleInput is one provider-side rule. Rule numbers are unique per
// (ACL, direction); the pair identifies a rule for deletion.
type RuleInput struct {
	RuleNumber    int    `json:"rule_number"`
	Egress        bool   `json:"egress"`
	Protocol      string `json:"protocol"`
	Allow         bool   `json:"allow"`
	CIDRBlock     string `json:"cidr_block,omitempty"`
	IPv6CIDRBlock string `json:"ipv6_cidr_block,omitempty"`
	FromPort      int    `json:"from_port,omitempty"`
	ToPort        int    `json:"to_port,omitempty"`
	ICMPType      int    `json:"icmp_type,omitempty"`
	ICMPCode      int    `json:"icmp_code,omitempty"`

	// Self resolves to the managed ACL's own VPC CIDR; PeerACLID to a peer
	// ACL reference. At most one of the target fields is set.
	Self      bool   `json:"self,omitempty"`
	PeerACLID string `json:"peer_acl_id,omitempty"`
}

// CreateNetworkACLInput describes an ACL to create. Ingress/Egress are
// embedded rules for inline mode; resourced rules are created individually
// afterwards.
type CreateNetworkACLInput struct {
	VPCID   string            `json:"vpc_id"`
	Name    string            `json:"name"`
	Tags    map[string]string `json:"tags,omitempty"`
	Ingress []RuleInput       `json:"ingress,omitempty"`
	Egress  []RuleInput       `json:"egress,omitempty"`
}

// Client is the provider contract the reconciler executes against.
// Implementations must be safe for concurrent use.
type Client interface {
	GetNetworkACL(ctx context.Context, id string) (*NetworkACL, error)
	FindNetworkACLByName(ctx context.Context, vpcID, name string) (*NetworkACL, error)
	CreateNetworkACL(ctx context.Context, in CreateNetworkACLInput) (*NetworkACL, error)
	// DeleteNetworkACL fails with ErrDependencyViolation while the ACL is
	// still associated with any subnet.
	DeleteNetworkACL(ctx context.Context, id string) error

	CreateRule(ctx context.Context, aclID string, rule RuleInput) error
	DeleteRule(ctx context.Context, aclID string, ruleNumber int, egress bool) error
	ListRules(ctx context.Context, aclID string) ([]RuleInput, error)
	// ReplaceInlineRules atomically swaps the embedded rule set of an ACL.
	ReplaceInlineRules(ctx context.Context, aclID string, ingress, egress []RuleInput) error

	// ReplaceAssociations points the given subnets at the ACL, detaching them
	// from whatever ACL they were associated with.
	ReplaceAssociations(ctx context.Context, aclID string, subnetIDs []string) error
	Associations(ctx context.Context, aclID string) ([]string, error)
	// DisassociateAll detaches every subnet associated with the ACL,
	// returning them to the VPC default.
	DisassociateAll(ctx context.Context, aclID string) error
}
