package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus is the instructor-controlled lifecycle state.
type AssignmentStatus string

const (
	AssignmentStatusDraft  AssignmentStatus = "draft"
	AssignmentStatusActive AssignmentStatus = "active"
	AssignmentStatusClosed AssignmentStatus = "closed"
)

// Assignment is an instructor-defined submission policy for one course.
type Assignment struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CourseID         string             `bson:"courseId" json:"courseId"`
	InstructorID     primitive.ObjectID `bson:"instructorId" json:"instructorId"`
	Title            string             `bson:"title" json:"title"`
	Description      string             `bson:"description,omitempty" json:"description,omitempty"`
	DueDate          time.Time          `bson:"dueDate" json:"dueDate"`
	Status           AssignmentStatus   `bson:"status" json:"status"`
	MaxFileSizeBytes int64              `bson:"maxFileSizeBytes" json:"maxFileSizeBytes"`
	AllowedFileTypes []string           `bson:"allowedFileTypes" json:"allowedFileTypes"`
	MaxSubmissions   int                `bson:"maxSubmissions" json:"maxSubmissions"`
	// SubmissionCount is an advisory, best-effort counter. The
	// authoritative count comes from querying submission records.
	SubmissionCount int64     `bson:"submissionCount" json:"submissionCount"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AcceptsContentType reports whether the given MIME type may be
// submitted. An empty allow-list accepts everything.
func (a *Assignment) AcceptsContentType(contentType string) bool {
	if len(a.AllowedFileTypes) == 0 {
		return true
	}
	for _, t := range a.AllowedFileTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

// IsLateAt reports whether a submission at the given instant is past
// the deadline. Late submissions are flagged, not rejected.
func (a *Assignment) IsLateAt(t time.Time) bool {
	return t.After(a.DueDate)
}
