package model

import "time"

// Invitation asks someone to join an organization with a given role.
type Invitation struct {
	ID             string     `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	Role           string     `json:"role" db:"role"`
	Status         string     `json:"status" db:"status"`
	SenderID       string     `json:"senderId" db:"sender_id"`
	OrganizationID string     `json:"organizationId" db:"organization_id"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
	UsedAt         *time.Time `json:"usedAt,omitempty" db:"used_at"`
}

// Invitation statuses. Only pending invitations can be edited or deleted.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRevoked  = "revoked"
	InvitationExpired  = "expired"
)

// InvitationTTL is how long a new invitation stays redeemable.
const InvitationTTL = 7 * 24 * time.Hour

// Editable reports whether the invitation may still be changed or removed.
func (i *Invitation) Editable() bool {
	return i.Status == InvitationPending
}

// Redeemable reports whether the invitation can be accepted at time now.
func (i *Invitation) Redeemable(now time.Time) bool {
	if i.Status != InvitationPending {
		return false
	}
	return i.ExpiresAt == nil || now.Before(*i.ExpiresAt)
}
