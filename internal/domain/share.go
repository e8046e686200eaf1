package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SharePermission is the access level granted by a share.
type SharePermission string

const (
	PermissionRead  SharePermission = "read"
	PermissionWrite SharePermission = "write"
)

// Allows reports whether this permission satisfies the required one.
// Write implies read.
func (p SharePermission) Allows(required SharePermission) bool {
	if p == PermissionWrite {
		return true
	}
	return p == required
}

// ShareStatus is the stored lifecycle state of a share grant. Expiry is
// always re-checked against the wall clock at access time; the stored
// status is never the sole authority.
type ShareStatus string

const (
	ShareStatusActive  ShareStatus = "active"
	ShareStatusRevoked ShareStatus = "revoked"
	ShareStatusExpired ShareStatus = "expired"
)

// Share is a directed, time-bounded grant of access to one file.
type Share struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FileID         primitive.ObjectID `bson:"fileId" json:"fileId"`
	OwnerID        primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	RecipientID    primitive.ObjectID `bson:"recipientId" json:"recipientId"`
	RecipientEmail string             `bson:"recipientEmail" json:"recipientEmail"`
	Permission     SharePermission    `bson:"permission" json:"permission"`
	Status         ShareStatus        `bson:"status" json:"status"`
	Message        string             `bson:"message,omitempty" json:"message,omitempty"`
	SharedAt       time.Time          `bson:"sharedAt" json:"sharedAt"`
	ExpiresAt      *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	RevokedAt      *time.Time         `bson:"revokedAt,omitempty" json:"revokedAt,omitempty"`
	AccessCount    int64              `bson:"accessCount" json:"accessCount"`
	LastAccessedAt *time.Time         `bson:"lastAccessedAt,omitempty" json:"lastAccessedAt,omitempty"`
}

// GrantsAt reports whether the share grants the required permission at
// the given instant. A past ExpiresAt never grants access regardless of
// the stored status.
func (s *Share) GrantsAt(now time.Time, required SharePermission) bool {
	if s.Status != ShareStatusActive {
		return false
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return false
	}
	return s.Permission.Allows(required)
}
