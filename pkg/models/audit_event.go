package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types emitted by the workflow services.
const (
	EventRequestCreated     = "request.created"
	EventRequestApproved    = "request.approved"
	EventRequestRejected    = "request.rejected"
	EventProposalCreated    = "proposal.created"
	EventProposalMerged     = "proposal.merged"
	EventProposalRejected   = "proposal.rejected"
	EventCatalogItemCreated = "catalog.item.created"
	EventCatalogItemUpdated = "catalog.item.updated"
	EventEmbeddingsRepaired = "catalog.embeddings.repaired"
)

// Audit resource types.
const (
	ResourceTypeRequest     = "request"
	ResourceTypeProposal    = "proposal"
	ResourceTypeCatalogItem = "catalog_item"
	ResourceTypeOrg         = "org"
)

// AuditEvent is one append-only record of a state-changing action.
// Events are never mutated or deleted by this system.
type AuditEvent struct {
	ID           uuid.UUID      `json:"id"`
	OrgID        uuid.UUID      `json:"org_id"`
	EventType    string         `json:"event_type"`
	ActorID      uuid.UUID      `json:"actor_id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   uuid.UUID      `json:"resource_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditQuery holds the optional, AND-combined filters for audit reads.
type AuditQuery struct {
	Limit        int
	EventType    string
	ResourceType string
	ResourceID   *uuid.UUID
}
