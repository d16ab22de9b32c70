package models

import (
	"time"

	"github.com/google/uuid"
)

// Proposal types form a closed set, validated at creation time.
const (
	ProposalTypeAddItem       = "ADD_ITEM"
	ProposalTypeReplaceItem   = "REPLACE_ITEM"
	ProposalTypeDeprecateItem = "DEPRECATE_ITEM"
)

// Proposal status values. pending -> merged|rejected, both terminal.
const (
	ProposalStatusPending  = "pending"
	ProposalStatusMerged   = "merged"
	ProposalStatusRejected = "rejected"
)

// ValidProposalType reports whether t is one of the closed proposal types.
func ValidProposalType(t string) bool {
	switch t {
	case ProposalTypeAddItem, ProposalTypeReplaceItem, ProposalTypeDeprecateItem:
		return true
	}
	return false
}

// Proposal is a reviewer-authored, typed mutation against the catalog.
// Item fields are only meaningful for ADD_ITEM / REPLACE_ITEM;
// ReplacingItemID is required for REPLACE_ITEM / DEPRECATE_ITEM.
type Proposal struct {
	ID           uuid.UUID `json:"id"`
	OrgID        uuid.UUID `json:"org_id"`
	ProposedBy   uuid.UUID `json:"proposed_by"`
	ProposalType string    `json:"proposal_type"`

	ItemName        *string        `json:"item_name,omitempty"`
	ItemDescription *string        `json:"item_description,omitempty"`
	ItemCategory    *string        `json:"item_category,omitempty"`
	ItemMetadata    map[string]any `json:"item_metadata,omitempty"`
	ItemPrice       *float64       `json:"item_price,omitempty"`
	ItemPricingType *string        `json:"item_pricing_type,omitempty"`
	ItemProductURL  *string        `json:"item_product_url,omitempty"`
	ItemVendor      *string        `json:"item_vendor,omitempty"`
	ItemSKU         *string        `json:"item_sku,omitempty"`

	ReplacingItemID *uuid.UUID `json:"replacing_item_id,omitempty"`
	RequestID       *uuid.UUID `json:"request_id,omitempty"`

	Status      string     `json:"status"`
	ReviewedBy  *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewNotes *string    `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	MergedAt    *time.Time `json:"merged_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ItemNameOrEmpty returns the proposed item name, or "" when unset.
func (p *Proposal) ItemNameOrEmpty() string {
	if p.ItemName == nil {
		return ""
	}
	return *p.ItemName
}

// ItemDescriptionOrEmpty returns the proposed description, or "" when unset.
func (p *Proposal) ItemDescriptionOrEmpty() string {
	if p.ItemDescription == nil {
		return ""
	}
	return *p.ItemDescription
}

// ItemCategoryOrEmpty returns the proposed category, or "" when unset.
func (p *Proposal) ItemCategoryOrEmpty() string {
	if p.ItemCategory == nil {
		return ""
	}
	return *p.ItemCategory
}
