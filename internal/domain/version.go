package domain

import "time"

// Reconcile version statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ReconcileVersion is a versioned record of one reconcile pass for a
// workspace. Used for the audit trail and as the carrier of the prior
// reconcile state (including the cached content fingerprint).
type ReconcileVersion struct {
	ID            string     `json:"id" db:"id"`
	WorkspaceID   string     `json:"workspace_id" db:"workspace_id"`
	VersionNumber int        `json:"version_number" db:"version_number"`
	RenderedPlan  string     `json:"rendered_plan" db:"rendered_plan"` // JSON string
	Status        string     `json:"status" db:"status"`               // pending, success, failed
	Error         string     `json:"error,omitempty" db:"error"`
	NetworkACLID  string     `json:"network_acl_id,omitempty" db:"network_acl_id"`
	Fingerprint   string     `json:"fingerprint,omitempty" db:"fingerprint"`
	State         string     `json:"state,omitempty" db:"state"` // ReconcileState JSON
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	AppliedAt     *time.Time `json:"applied_at,omitempty" db:"applied_at"`
}
