package ruleset

import (
	"errors"
	"strings"
	"testing"

	"github.com/stackwise/nacl-manager/internal/domain"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeDisabledSpec(t *testing.T) {
	spec := &domain.ACLSpec{
		Enabled: boolPtr(false),
		VPCID:   "vpc-1",
		Rules: []domain.RuleSpec{
			{RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
		},
	}

	rules, err := Normalize(spec)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("Expected no rules for disabled spec, got %d", len(rules))
	}
}

func TestNormalizeCountsSum(t *testing.T) {
	spec := &domain.ACLSpec{
		VPCID: "vpc-1",
		Rules: []domain.RuleSpec{
			{RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
			{RuleNumber: 110, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.1.0.0/16"},
		},
		RulesMap: map[string][]domain.RuleSpec{
			"web": {
				{RuleNumber: 200, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "0.0.0.0/0", FromPort: 443, ToPort: 443},
			},
		},
		RuleMatrix: []domain.MatrixSubject{
			{
				Key:        "trusted",
				CIDRBlocks: []string{"192.168.0.0/24", "192.168.1.0/24"},
				Rules: []domain.RuleSpec{
					{Key: "ssh", RuleNumber: 300, Direction: "ingress", Protocol: "6", Action: "allow", FromPort: 22, ToPort: 22},
				},
			},
		},
	}

	rules, err := Normalize(spec)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	// 2 flat + 1 named + 1 matrix entry (unexploded) + 1 allow-all egress.
	if len(rules) != 5 {
		t.Fatalf("Expected 5 canonical rules, got %d", len(rules))
	}

	// Flat list comes first with synthesized keys.
	if rules[0].Key != "_list_[0]" || rules[1].Key != "_list_[1]" {
		t.Errorf("Expected flat list keys first, got %q, %q", rules[0].Key, rules[1].Key)
	}
	if rules[2].Key != "web[0]" {
		t.Errorf("Expected named list key web[0], got %q", rules[2].Key)
	}
	if rules[3].Key != "trusted#ssh" {
		t.Errorf("Expected matrix key trusted#ssh, got %q", rules[3].Key)
	}
	if !rules[3].FromMatrix {
		t.Error("Expected matrix rule to be marked for explosion")
	}
	if rules[4].Key != AllowAllEgressKey {
		t.Errorf("Expected final rule to be the allow-all egress rule, got %q", rules[4].Key)
	}
}

func TestNormalizeExplicitKeysPreserved(t *testing.T) {
	spec := &domain.ACLSpec{
		VPCID:          "vpc-1",
		AllowAllEgress: boolPtr(false),
		Rules: []domain.RuleSpec{
			{Key: "ssh", RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
			{RuleNumber: 110, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.1.0.0/16"},
		},
	}

	rules, err := Normalize(spec)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if rules[0].Key != "ssh" {
		t.Errorf("Expected explicit key preserved, got %q", rules[0].Key)
	}
	if rules[1].Key != "_list_[1]" {
		t.Errorf("Expected positional key _list_[1], got %q", rules[1].Key)
	}
}

func TestNormalizeAllowAllEgress(t *testing.T) {
	tests := []struct {
		name       string
		spec       *domain.ACLSpec
		wantRule   bool
		wantNumber int
	}{
		{
			name:       "default on",
			spec:       &domain.ACLSpec{VPCID: "vpc-1"},
			wantRule:   true,
			wantNumber: 100,
		},
		{
			name:       "custom number",
			spec:       &domain.ACLSpec{VPCID: "vpc-1", AllowAllEgressRuleNumber: 32000},
			wantRule:   true,
			wantNumber: 32000,
		},
		{
			name:     "disabled",
			spec:     &domain.ACLSpec{VPCID: "vpc-1", AllowAllEgress: boolPtr(false)},
			wantRule: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := Normalize(tt.spec)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}

			var egress *domain.Rule
			for i := range rules {
				if rules[i].Key == AllowAllEgressKey {
					egress = &rules[i]
				}
			}
			if !tt.wantRule {
				if egress != nil {
					t.Error("Expected no allow-all egress rule")
				}
				return
			}
			if egress == nil {
				t.Fatal("Expected allow-all egress rule")
			}
			if egress.RuleNumber != tt.wantNumber {
				t.Errorf("Expected rule number %d, got %d", tt.wantNumber, egress.RuleNumber)
			}
			if egress.Direction != domain.DirectionEgress || egress.Protocol != "-1" || egress.CIDRBlock != "0.0.0.0/0" {
				t.Errorf("Unexpected egress rule shape: %+v", egress)
			}
		})
	}
}

func TestNormalizeReservedMapName(t *testing.T) {
	spec := &domain.ACLSpec{
		VPCID: "vpc-1",
		RulesMap: map[string][]domain.RuleSpec{
			FlatListKey: {
				{RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow", CIDRBlock: "10.0.0.0/8"},
			},
		},
	}

	_, err := Normalize(spec)
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration for reserved map name, got %v", err)
	}
}

func TestNormalizeDuplicateKeys(t *testing.T) {
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

	_, err := Normalize(spec)
	if !errors.Is(err, domain.ErrKeyCollision) {
		t.Fatalf("Expected ErrKeyCollision, got %v", err)
	}
	if !strings.Contains(err.Error(), "ssh") {
		t.Errorf("Expected the colliding key in the error, got %q", err.Error())
	}
}

func TestNormalizeMatrixDefaults(t *testing.T) {
	spec := &domain.ACLSpec{
		VPCID:          "vpc-1",
		AllowAllEgress: boolPtr(false),
		RuleMatrix: []domain.MatrixSubject{
			{
				CIDRBlocks: []string{"10.0.0.0/8"},
				Rules: []domain.RuleSpec{
					{RuleNumber: 100, Direction: "ingress", Protocol: "6", Action: "allow"},
					{RuleNumber: 110, Direction: "ingress", Protocol: "17", Action: "allow"},
				},
			},
		},
	}

	rules, err := Normalize(spec)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}
	if rules[0].Key != "_matrix_[0]#0" || rules[1].Key != "_matrix_[0]#1" {
		t.Errorf("Expected default matrix keys, got %q, %q", rules[0].Key, rules[1].Key)
	}
}

func TestNormalizeMatrixSelfAndListsExclusive(t *testing.T) {
	spec := &domain.ACLSpec{
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
	}

	_, err := Normalize(spec)
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration for self+lists, got %v", err)
	}
}
