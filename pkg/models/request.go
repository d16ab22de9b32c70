package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request status values. Requests are terminal once reviewed.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// SearchResultSnapshot is a normalized snapshot of one catalog search hit,
// captured at request-creation time. Only Name is required; SimilarityScore
// defaults to 0 when absent or non-numeric.
type SearchResultSnapshot struct {
	Name            string         `json:"name"`
	ItemID          *uuid.UUID     `json:"item_id,omitempty"`
	Category        string         `json:"category,omitempty"`
	SimilarityScore float64        `json:"similarity_score"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// UnmarshalJSON tolerates snapshots from clients that serialize the score as
// a string or omit it; anything non-numeric becomes 0.
func (s *SearchResultSnapshot) UnmarshalJSON(data []byte) error {
	type alias SearchResultSnapshot
	aux := struct {
		*alias
		SimilarityScore any `json:"similarity_score"`
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	s.SimilarityScore = coerceScore(aux.SimilarityScore)
	return nil
}

func coerceScore(v any) float64 {
	switch score := v.(type) {
	case float64:
		return score
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(score), 64); err == nil {
			return f
		}
	}
	return 0
}

// Request captures a user's search intent and candidate matches, awaiting
// reviewer triage. The only allowed transition is pending -> approved|rejected,
// enforced by a conditional update in the repository.
type Request struct {
	ID            uuid.UUID              `json:"id"`
	OrgID         uuid.UUID              `json:"org_id"`
	CreatedBy     uuid.UUID              `json:"created_by"`
	SearchQuery   string                 `json:"search_query"`
	SearchResults []SearchResultSnapshot `json:"search_results"`
	Justification *string                `json:"justification,omitempty"`
	Status        string                 `json:"status"`
	ReviewedBy    *uuid.UUID             `json:"reviewed_by,omitempty"`
	ReviewNotes   *string                `json:"review_notes,omitempty"`
	ReviewedAt    *time.Time             `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}
