// Package audit records identity lifecycle events: accounts provisioned from
// an OpenID login, returning logins, and logins refused by the role gate.
package audit

import (
	"context"
	"time"
)

// AuditEvent represents a single auditable action in the system.
type AuditEvent struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"`         // "<provider>:<sub>"
	ActorType    string    `json:"actor_type"`    // "openid" or "system"
	Action       string    `json:"action"`        // "provision", "login", "login_denied"
	ResourceType string    `json:"resource_type"` // "user"
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	StatusCode   int       `json:"status_code"`
}

// ListOptions provides filtering and pagination options for listing audit events.
type ListOptions struct {
	Limit        int
	Offset       int
	Actor        string
	Action       string
	ResourceType string
	Since        *time.Time
	Until        *time.Time
}

// AuditLogger defines the interface for audit logging operations.
type AuditLogger interface {
	// Log records an audit event. ID and Timestamp are assigned when empty.
	Log(ctx context.Context, event *AuditEvent) error

	// List retrieves audit events, newest first, with the total match count.
	List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error)

	// GetByResource retrieves audit events for a specific resource.
	GetByResource(ctx context.Context, resourceType, resourceID string) ([]*AuditEvent, error)
}

const (
	ActionProvision   = "provision"
	ActionLogin       = "login"
	ActionLoginDenied = "login_denied"
)

const ResourceUser = "user"

const (
	ActorTypeOpenID = "openid"
	ActorTypeSystem = "system"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// normalizeLimit clamps a page size into [1, maxListLimit].
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
