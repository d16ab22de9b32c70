package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership links a user to an organization with a role.
// A user's first membership (by creation time) determines the org
// context for their requests.
type Membership struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
