package validation

import (
	"strings"
	"testing"

	"github.com/stackwise/nacl-manager/internal/domain"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeProtocol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tcp", "6"},
		{"TCP", "6"},
		{"udp", "17"},
		{"icmp", "1"},
		{"icmpv6", "58"},
		{"all", "-1"},
		{"-1", "-1"},
		{"6", "6"},
		{"unknown", "unknown"},
	}

	for _, tt := range tests {
		if got := NormalizeProtocol(tt.in); got != tt.want {
			t.Errorf("NormalizeProtocol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateProtocol(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		wantErr  bool
	}{
		{"all traffic", "-1", false},
		{"tcp alias", "tcp", false},
		{"numeric", "6", false},
		{"high numeric", "255", false},
		{"empty", "", true},
		{"out of range", "256", true},
		{"negative", "-2", true},
		{"garbage", "nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProtocol(tt.protocol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProtocol(%q) error = %v, wantErr %v", tt.protocol, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRuleNumber(t *testing.T) {
	tests := []struct {
		n       int
		wantErr bool
	}{
		{1, false},
		{100, false},
		{32766, false},
		{0, true},
		{-5, true},
		{32767, true},
	}

	for _, tt := range tests {
		err := ValidateRuleNumber(tt.n)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRuleNumber(%d) error = %v, wantErr %v", tt.n, err, tt.wantErr)
		}
	}
}

func TestValidateCIDR(t *testing.T) {
	tests := []struct {
		cidr    string
		wantErr bool
	}{
		{"10.0.0.0/8", false},
		{"0.0.0.0/0", false},
		{"2001:db8::/64", true},
		{"10.0.0.0", true},
		{"not-a-cidr", true},
	}

	for _, tt := range tests {
		err := ValidateCIDR(tt.cidr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateCIDR(%q) error = %v, wantErr %v", tt.cidr, err, tt.wantErr)
		}
	}
}

func TestValidateIPv6CIDR(t *testing.T) {
	tests := []struct {
		cidr    string
		wantErr bool
	}{
		{"2001:db8::/64", false},
		{"::/0", false},
		{"10.0.0.0/8", true},
		{"not-a-cidr", true},
	}

	for _, tt := range tests {
		err := ValidateIPv6CIDR(tt.cidr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateIPv6CIDR(%q) error = %v, wantErr %v", tt.cidr, err, tt.wantErr)
		}
	}
}

func TestValidatePortRange(t *testing.T) {
	tests := []struct {
		from, to int
		wantErr  bool
	}{
		{0, 0, false},
		{22, 22, false},
		{1024, 65535, false},
		{443, 80, true},
		{-1, 80, true},
		{0, 70000, true},
	}

	for _, tt := range tests {
		err := ValidatePortRange(tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePortRange(%d, %d) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
		}
	}
}

func TestValidateSpecDisabled(t *testing.T) {
	spec := &domain.ACLSpec{
		Enabled: boolPtr(false),
		Rules: []domain.RuleSpec{
			{RuleNumber: -1, Direction: "sideways", Protocol: "bogus", Action: "maybe"},
		},
	}
	if errs := ValidateSpec(spec); errs.HasErrors() {
		t.Errorf("Disabled spec must validate clean, got %v", errs)
	}
}

func TestValidateSpecValid(t *testing.T) {
	spec := &domain.ACLSpec{
		VPCID: "vpc-1",
		Rules: []domain.RuleSpec{
			{Key: "ssh", RuleNumber: 200, Direction: "ingress", Protocol: "tcp", Action: "allow", CIDRBlock: "10.0.0.0/8", FromPort: 22, ToPort: 22},
		},
		RuleMatrix: []domain.MatrixSubject{
			{
				Key:        "trusted",
				CIDRBlocks: []string{"192.168.0.0/24"},
				Rules: []domain.RuleSpec{
					{Key: "https", RuleNumber: 300, Direction: "ingress", Protocol: "6", Action: "allow", FromPort: 443, ToPort: 443},
				},
			},
		},
	}

	if errs := ValidateSpec(spec); errs.HasErrors() {
		t.Errorf("Expected valid spec, got %v", errs)
	}
}

func TestValidateSpecFieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		spec      *domain.ACLSpec
		wantField string
	}{
		{
			name:      "missing vpc",
			spec:      &domain.ACLSpec{},
			wantField: "vpc_id",
		},
		{
			name: "two external ids",
			spec: &domain.ACLSpec{
				TargetNetworkACLID: []string{"acl-1", "acl-2"},
			},
			wantField: "target_network_acl_id",
		},
		{
			name: "empty external id",
			spec: &domain.ACLSpec{
				TargetNetworkACLID: []string{""},
			},
			wantField: "target_network_acl_id[0]",
		},
		{
			name: "two names",
			spec: &domain.ACLSpec{
				VPCID:          "vpc-1",
				NetworkACLName: []string{"a", "b"},
			},
			wantField: "network_acl_name",
		},
		{
			name: "inline with external target",
			spec: &domain.ACLSpec{
				TargetNetworkACLID: []string{"acl-1"},
				InlineRulesEnabled: true,
			},
			wantField: "inline_rules_enabled",
		},
		{
			name: "bad rule direction",
			spec: &domain.ACLSpec{
				VPCID: "vpc-1",
				Rules: []domain.RuleSpec{
					{RuleNumber: 100, Direction: "sideways", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
				},
			},
			wantField: "rules[0].direction",
		},
		{
			name: "rule without target",
			spec: &domain.ACLSpec{
				VPCID: "vpc-1",
				Rules: []domain.RuleSpec{
					{RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow"},
				},
			},
			wantField: "rules[0]",
		},
		{
			name: "both address families on one rule",
			spec: &domain.ACLSpec{
				VPCID: "vpc-1",
				Rules: []domain.RuleSpec{
					{RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8", IPv6CIDRBlock: "2001:db8::/64"},
				},
			},
			wantField: "rules[0]",
		},
		{
			name: "reserved map name",
			spec: &domain.ACLSpec{
				VPCID: "vpc-1",
				RulesMap: map[string][]domain.RuleSpec{
					"_list_": {
						{RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
					},
				},
			},
			wantField: "rules_map",
		},
		{
			name: "matrix self and lists",
			spec: &domain.ACLSpec{
				VPCID: "vpc-1",
				RuleMatrix: []domain.MatrixSubject{
					{
						Self:       true,
						CIDRBlocks: []string{"10.0.0.0/8"},
						Rules: []domain.RuleSpec{
							{RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow"},
						},
					},
				},
			},
			wantField: "rule_matrix[0]",
		},
		{
			name: "matrix subject without targets",
			spec: &domain.ACLSpec{
				VPCID: "vpc-1",
				RuleMatrix: []domain.MatrixSubject{
					{
						Rules: []domain.RuleSpec{
							{RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow"},
						},
					},
				},
			},
			wantField: "rule_matrix[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSpec(tt.spec)
			if !errs.HasErrors() {
				t.Fatal("Expected validation errors")
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected an error on field %q, got %v", tt.wantField, errs)
			}
		})
	}
}

func TestValidateSpecDuplicateKeys(t *testing.T) {
	spec := &domain.ACLSpec{
		VPCID:          "vpc-1",
		AllowAllEgress: boolPtr(false),
		Rules: []domain.RuleSpec{
			{Key: "ssh", RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
		},
		RulesMap: map[string][]domain.RuleSpec{
			"admin": {
				{Key: "ssh", RuleNumber: 200, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.1.0.0/16"},
			},
		},
	}

	errs := ValidateSpec(spec)
	if !errs.HasErrors() {
		t.Fatal("Expected a duplicate-key error")
	}
	if !strings.Contains(errs.Error(), "ssh") {
		t.Errorf("Expected the colliding key in the error, got %q", errs.Error())
	}
}

func TestValidateSpecDuplicateRuleNumbers(t *testing.T) {
	spec := &domain.ACLSpec{
		VPCID:          "vpc-1",
		AllowAllEgress: boolPtr(false),
		Rules: []domain.RuleSpec{
			{Key: "a", RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
			{Key: "b", RuleNumber: 100, Direction: "ingress", Protocol: "17", Action: "allow", CIDRBlock: "10.1.0.0/16"},
		},
	}

	errs := ValidateSpec(spec)
	if !errs.HasErrors() {
		t.Fatal("Expected a duplicate rule-number error")
	}
	if !strings.Contains(errs.Error(), "share rule number 100") {
		t.Errorf("Expected shared-number diagnostic, got %q", errs.Error())
	}
}

func TestValidateSpecSameNumberDifferentDirections(t *testing.T) {
	spec := &domain.ACLSpec{
		VPCID:          "vpc-1",
		AllowAllEgress: boolPtr(false),
		Rules: []domain.RuleSpec{
			{Key: "in", RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
			{Key: "out", RuleNumber: 100, Direction: "egress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
		},
	}

	if errs := ValidateSpec(spec); errs.HasErrors() {
		t.Errorf("Same number in opposite directions is allowed, got %v", errs)
	}
}
