package models

// Enrichment confidence levels reported by the AI provider.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// EnrichedProduct is the strict JSON contract returned by product enrichment.
// Name, Description, Category, Vendor and Confidence are required non-empty;
// everything else may be null. Error is set only on degraded batch slots.
type EnrichedProduct struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Vendor      string         `json:"vendor"`
	Price       *float64       `json:"price"`
	PricingType *string        `json:"pricing_type"`
	ProductURL  *string        `json:"product_url"`
	SKU         *string        `json:"sku"`
	Metadata    map[string]any `json:"metadata"`
	Confidence  string         `json:"confidence"`
	Error       string         `json:"error,omitempty"`
}
