package models

import (
	"time"

	"github.com/google/uuid"
)

// CatalogItem status values.
const (
	ItemStatusActive     = "active"
	ItemStatusDeprecated = "deprecated"
)

// Pricing type values for catalog items and proposals.
const (
	PricingOneTime    = "one_time"
	PricingMonthly    = "monthly"
	PricingYearly     = "yearly"
	PricingUsageBased = "usage_based"
)

// CatalogItem represents a purchasable product in an org's catalog.
// Each active item has exactly one embedding row (catalog_item_embeddings);
// the pair is created atomically by create_item_with_embedding.
type CatalogItem struct {
	ID          uuid.UUID      `json:"id"`
	OrgID       uuid.UUID      `json:"org_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Price       *float64       `json:"price,omitempty"`
	PricingType *string        `json:"pricing_type,omitempty"`
	ProductURL  *string        `json:"product_url,omitempty"`
	Vendor      *string        `json:"vendor,omitempty"`
	SKU         *string        `json:"sku,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Status      string         `json:"status"`

	// ReplacementItemID links a deprecated item to its successor
	// (set by REPLACE_ITEM merges).
	ReplacementItemID *uuid.UUID `json:"replacement_item_id,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogSearchHit is a catalog item returned by semantic search,
// annotated with its similarity score.
type CatalogSearchHit struct {
	CatalogItem
	Similarity float64 `json:"similarity"`
}

// NewCatalogItemInput carries the caller-supplied fields for item creation.
type NewCatalogItemInput struct {
	Name        string
	Description string
	Category    string
	Price       *float64
	PricingType *string
	ProductURL  *string
	Vendor      *string
	SKU         *string
	Metadata    map[string]any
}

// CatalogItemUpdate carries a partial update; nil fields are left unchanged.
type CatalogItemUpdate struct {
	Name        *string
	Description *string
	Category    *string
	Price       *float64
	PricingType *string
	ProductURL  *string
	Vendor      *string
	SKU         *string
	Metadata    map[string]any
	Status      *string
}

// TouchesEmbedding reports whether the update changes any field that feeds
// the item's canonical embedding text.
func (u *CatalogItemUpdate) TouchesEmbedding() bool {
	return u.Name != nil || u.Description != nil || u.Category != nil
}

// RepairReport summarizes an embedding repair pass over an org's catalog.
type RepairReport struct {
	TotalItems            int         `json:"total_items"`
	ItemsWithEmbeddings   int         `json:"items_with_embeddings"`
	ItemsWithoutEmbedding int         `json:"items_without_embeddings"`
	Repaired              int         `json:"repaired"`
	Failed                int         `json:"failed"`
	FailedItemIDs         []uuid.UUID `json:"failed_item_ids"`
}
