package domain

import "time"

// Workspace is a named container for one declarative ACL spec. Each workspace
// manages at most one network ACL.
type Workspace struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Spec      *ACLSpec  `json:"spec" db:"-"` // Stored as JSON in a text column
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateWorkspaceRequest is the request body for creating a workspace.
type CreateWorkspaceRequest struct {
	Name string   `json:"name"`
	Spec *ACLSpec `json:"spec,omitempty"`
}

// UpdateWorkspaceRequest is the request body for updating a workspace.
type UpdateWorkspaceRequest struct {
	Name *string  `json:"name,omitempty"`
	Spec *ACLSpec `json:"spec,omitempty"`
}
