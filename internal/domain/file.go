package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileStatus tracks the lifecycle of an uploaded object's metadata record.
type FileStatus string

const (
	// FileStatusReserved means upload credentials were issued but the
	// object has not yet been verified in storage.
	FileStatusReserved FileStatus = "reserved"
	// FileStatusActive means the object was verified in storage and the
	// record is trustworthy.
	FileStatusActive FileStatus = "active"
	// FileStatusFailed means the client reported the upload as failed.
	FileStatusFailed      FileStatus = "failed"
	FileStatusDeleted     FileStatus = "deleted"
	FileStatusQuarantined FileStatus = "quarantined"
)

// File holds the metadata record for one uploaded object. The bytes
// themselves live in the object store under StorageKey.
type File struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID       primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Filename      string             `bson:"filename" json:"filename"`
	ContentType   string             `bson:"contentType" json:"contentType"`
	Size          int64              `bson:"size" json:"size"`
	StorageKey    string             `bson:"storageKey" json:"storageKey"`
	StorageBucket string             `bson:"storageBucket" json:"storageBucket"`
	Status        FileStatus         `bson:"status" json:"status"`
	Checksum      string             `bson:"checksum,omitempty" json:"checksum,omitempty"`
	ScanStatus    string             `bson:"scanStatus,omitempty" json:"scanStatus,omitempty"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Tags          []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Metadata      map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	DownloadCount int64              `bson:"downloadCount" json:"downloadCount"`
	IsPublic      bool               `bson:"isPublic" json:"isPublic"`
	UploadedAt    time.Time          `bson:"uploadedAt" json:"uploadedAt"`
	LastModified  time.Time          `bson:"lastModified" json:"lastModified"`
}

// IsActive reports whether the record has passed upload verification.
func (f *File) IsActive() bool {
	return f.Status == FileStatusActive
}

// OwnedBy reports whether the given principal owns this file.
func (f *File) OwnedBy(userID primitive.ObjectID) bool {
	return f.OwnerID == userID
}
