package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// shimState is the persisted provider state of the file shim.
type shimState struct {
	ACLs         map[string]*NetworkACL `json:"acls"`
	Rules        map[string][]RuleInput `json:"rules"`        // aclID -> rules
	Associations map[string]string      `json:"associations"` // subnetID -> aclID
}

func newShimState() *shimState {
	return &shimState{
		ACLs:         make(map[string]*NetworkACL),
		Rules:        make(map[string][]RuleInput),
		Associations: make(map[string]string),
	}
}

// FileShim is a fake provider that keeps ACL state in memory and, when given
// a path, persists it to a JSON file across restarts. With an empty path it
// is a purely in-memory fake, which is what the tests use.
type FileShim struct {
	filePath string

	mu    sync.RWMutex
	state *shimState
}

// Ensure FileShim implements Client.
var _ Client = (*FileShim)(nil)

// NewFileShim creates a new file-backed provider shim.
func NewFileShim(filePath string) *FileShim {
	s := &FileShim{filePath: filePath, state: newShimState()}
	if filePath != "" {
		_ = s.load()
	}
	return s
}

func (f *FileShim) load() error {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading provider state: %w", err)
	}
	state := newShimState()
	if err := json.Unmarshal(data, state); err != nil {
		return fmt.Errorf("parsing provider state: %w", err)
	}
	f.state = state
	return nil
}

// save persists the state; callers hold the write lock.
func (f *FileShim) save() error {
	if f.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(f.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.filePath, data, 0644)
}

// GetNetworkACL returns the ACL with the given id.
func (f *FileShim) GetNetworkACL(ctx context.Context, id string) (*NetworkACL, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	acl, ok := f.state.ACLs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrACLNotFound)
	}
	copied := *acl
	return &copied, nil
}

// FindNetworkACLByName returns the ACL with the given name in the VPC, or
// ErrACLNotFound.
func (f *FileShim) FindNetworkACLByName(ctx context.Context, vpcID, name string) (*NetworkACL, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, acl := range f.state.ACLs {
		if acl.VPCID == vpcID && acl.Name == name {
			copied := *acl
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%s in %s: %w", name, vpcID, ErrACLNotFound)
}

// CreateNetworkACL creates an ACL, embedding any inline rules.
func (f *FileShim) CreateNetworkACL(ctx context.Context, in CreateNetworkACLInput) (*NetworkACL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := "acl-" + uuid.New().String()[:8]
	acl := &NetworkACL{
		ID:    id,
		ARN:   "arn:shim:nacl/" + id,
		VPCID: in.VPCID,
		Name:  in.Name,
		Tags:  in.Tags,
	}
	f.state.ACLs[id] = acl
	rules := make([]RuleInput, 0, len(in.Ingress)+len(in.Egress))
	rules = append(rules, in.Ingress...)
	rules = append(rules, in.Egress...)
	f.state.Rules[id] = rules

	if err := f.save(); err != nil {
		return nil, err
	}
	copied := *acl
	return &copied, nil
}

// DeleteNetworkACL deletes an ACL and its rules. Fails with
// ErrDependencyViolation while any subnet is still associated with it.
func (f *FileShim) DeleteNetworkACL(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.state.ACLs[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrACLNotFound)
	}
	for subnet, aclID := range f.state.Associations {
		if aclID == id {
			return fmt.Errorf("%s still associated with %s: %w", id, subnet, ErrDependencyViolation)
		}
	}
	delete(f.state.ACLs, id)
	delete(f.state.Rules, id)
	return f.save()
}

// CreateRule adds a rule to an ACL. Duplicate (direction, number) pairs are
// rejected the way the real provider rejects them.
func (f *FileShim) CreateRule(ctx context.Context, aclID string, rule RuleInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.state.ACLs[aclID]; !ok {
		return fmt.Errorf("%s: %w", aclID, ErrACLNotFound)
	}
	for _, existing := range f.state.Rules[aclID] {
		if existing.RuleNumber == rule.RuleNumber && existing.Egress == rule.Egress {
			return fmt.Errorf("rule number %d already in use for this direction on %s", rule.RuleNumber, aclID)
		}
	}
	f.state.Rules[aclID] = append(f.state.Rules[aclID], rule)
	return f.save()
}

// DeleteRule removes the rule identified by number and direction.
func (f *FileShim) DeleteRule(ctx context.Context, aclID string, ruleNumber int, egress bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rules, ok := f.state.Rules[aclID]
	if !ok {
		return fmt.Errorf("%s: %w", aclID, ErrACLNotFound)
	}
	for i, r := range rules {
		if r.RuleNumber == ruleNumber && r.Egress == egress {
			f.state.Rules[aclID] = append(rules[:i:i], rules[i+1:]...)
			return f.save()
		}
	}
	return fmt.Errorf("rule %d (egress=%v) on %s: %w", ruleNumber, egress, aclID, ErrACLNotFound)
}

// ListRules returns the rules of an ACL.
func (f *FileShim) ListRules(ctx context.Context, aclID string) ([]RuleInput, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, ok := f.state.ACLs[aclID]; !ok {
		return nil, fmt.Errorf("%s: %w", aclID, ErrACLNotFound)
	}
	return append([]RuleInput(nil), f.state.Rules[aclID]...), nil
}

// ReplaceInlineRules swaps an ACL's whole rule set.
func (f *FileShim) ReplaceInlineRules(ctx context.Context, aclID string, ingress, egress []RuleInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.state.ACLs[aclID]; !ok {
		return fmt.Errorf("%s: %w", aclID, ErrACLNotFound)
	}
	rules := make([]RuleInput, 0, len(ingress)+len(egress))
	rules = append(rules, ingress...)
	rules = append(rules, egress...)
	f.state.Rules[aclID] = rules
	return f.save()
}

// ReplaceAssociations points the subnets at the ACL.
func (f *FileShim) ReplaceAssociations(ctx context.Context, aclID string, subnetIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.state.ACLs[aclID]; !ok {
		return fmt.Errorf("%s: %w", aclID, ErrACLNotFound)
	}
	for _, subnet := range subnetIDs {
		f.state.Associations[subnet] = aclID
	}
	return f.save()
}

// Associations returns the subnets associated with the ACL.
func (f *FileShim) Associations(ctx context.Context, aclID string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var subnets []string
	for subnet, id := range f.state.Associations {
		if id == aclID {
			subnets = append(subnets, subnet)
		}
	}
	return subnets, nil
}

// DisassociateAll detaches every subnet pointing at the ACL. The shim has no
// notion of a VPC default ACL to fall back to, so the subnets end up
// unassociated.
func (f *FileShim) DisassociateAll(ctx context.Context, aclID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for subnet, id := range f.state.Associations {
		if id == aclID {
			delete(f.state.Associations, subnet)
		}
	}
	return f.save()
}
