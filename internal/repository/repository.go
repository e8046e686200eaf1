package repository

import (
	"campuscloud/backend/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("conflict")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// FileRepository defines the interface for interacting with file metadata.
type FileRepository interface {
	Create(ctx context.Context, file *domain.File) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.File, error)
	GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]domain.File, error)

	// PromoteToActive conditionally transitions a file from reserved to
	// active, recording the verified size and checksum. It returns
	// ErrConflict when the stored status is no longer reserved, so
	// racing completion calls can distinguish "someone else won" from
	// "record missing".
	PromoteToActive(ctx context.Context, id primitive.ObjectID, size int64, checksum string) error

	// UpdateStatus sets the lifecycle status unconditionally (soft
	// delete, failed-upload reporting).
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.FileStatus) error

	// IncrementDownloadCount is best-effort bookkeeping.
	IncrementDownloadCount(ctx context.Context, id primitive.ObjectID) error
}

// ShareRepository defines the interface for interacting with share grants.
type ShareRepository interface {
	// Upsert creates the grant or overwrites an existing grant for the
	// same (fileId, recipientId) pair.
	Upsert(ctx context.Context, share *domain.Share) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Share, error)
	GetByFileAndRecipient(ctx context.Context, fileID, recipientID primitive.ObjectID) (*domain.Share, error)
	GetByFileID(ctx context.Context, fileID primitive.ObjectID) ([]domain.Share, error)
	GetByRecipientID(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]domain.Share, error)
	Revoke(ctx context.Context, id primitive.ObjectID) error
	RecordAccess(ctx context.Context, id primitive.ObjectID) error
}

// AssignmentRepository defines the interface for interacting with assignments.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Assignment, error)
	GetByInstructorID(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Assignment, error)

	// IncrementSubmissionCount bumps the advisory counter. Callers
	// treat failures as non-fatal.
	IncrementSubmissionCount(ctx context.Context, id primitive.ObjectID) error
}

// SubmissionRepository defines the interface for interacting with submissions.
type SubmissionRepository interface {
	// Create inserts a submission. It returns ErrConflict when another
	// writer already took the same (assignmentId, studentId,
	// attemptNumber) slot; the caller recomputes the attempt number and
	// retries.
	Create(ctx context.Context, submission *domain.Submission) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error)
	GetByAssignmentID(ctx context.Context, assignmentID primitive.ObjectID) ([]domain.Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID primitive.ObjectID) ([]domain.Submission, error)

	// ApplyGrade overwrites the grading fields and sets status graded.
	ApplyGrade(ctx context.Context, id primitive.ObjectID, grade, maxGrade float64, feedback string, feedbackFileID *primitive.ObjectID, gradedBy primitive.ObjectID) (*domain.Submission, error)
}
