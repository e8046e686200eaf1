package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionStatus tracks grading state.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusGraded    SubmissionStatus = "graded"
)

// Submission is one student's attempt against one assignment.
// (AssignmentID, StudentID, AttemptNumber) is unique; the attempt
// number is assigned under a conditional write so concurrent attempts
// never collide.
type Submission struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AssignmentID  primitive.ObjectID `bson:"assignmentId" json:"assignmentId"`
	StudentID     primitive.ObjectID `bson:"studentId" json:"studentId"`
	StudentEmail  string             `bson:"studentEmail" json:"studentEmail"`
	StudentName   string             `bson:"studentName" json:"studentName"`
	FileID        primitive.ObjectID `bson:"fileId" json:"fileId"`
	Filename      string             `bson:"filename" json:"filename"`
	FileSize      int64              `bson:"fileSize" json:"fileSize"`
	AttemptNumber int                `bson:"attemptNumber" json:"attemptNumber"`
	SubmittedAt   time.Time          `bson:"submittedAt" json:"submittedAt"`
	// IsLate is computed once at admission time and never recomputed.
	IsLate   bool             `bson:"isLate" json:"isLate"`
	Comments string           `bson:"comments,omitempty" json:"comments,omitempty"`
	Status   SubmissionStatus `bson:"status" json:"status"`

	// Grading fields. Re-grading overwrites these but the status stays
	// graded.
	Grade          *float64            `bson:"grade,omitempty" json:"grade,omitempty"`
	MaxGrade       *float64            `bson:"maxGrade,omitempty" json:"maxGrade,omitempty"`
	Feedback       string              `bson:"feedback,omitempty" json:"feedback,omitempty"`
	FeedbackFileID *primitive.ObjectID `bson:"feedbackFileId,omitempty" json:"feedbackFileId,omitempty"`
	GradedBy       *primitive.ObjectID `bson:"gradedBy,omitempty" json:"gradedBy,omitempty"`
	GradedAt       *time.Time          `bson:"gradedAt,omitempty" json:"gradedAt,omitempty"`
}

// IsGraded reports whether a grade has been attached.
func (s *Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}
