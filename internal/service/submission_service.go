package service

import (
	"campuscloud/backend/internal/domain"
	"campuscloud/backend/internal/notify"
	"campuscloud/backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrAssignmentNotFound     = errors.New("assignment not found")
	ErrAssignmentClosed       = errors.New("assignment is closed for submissions")
	ErrSubmissionNotFound     = errors.New("submission not found")
	ErrSubmissionLimitReached = errors.New("submission limit reached for this assignment")
	ErrSubmissionConflict     = errors.New("could not allocate a submission attempt, please retry")
	ErrSubmissionFileDenied   = errors.New("submitted file must be an active file owned by the student")
	ErrFileTypeNotAccepted    = errors.New("file type is not accepted for this assignment")
	ErrSubmissionTooLarge     = errors.New("file exceeds the assignment size limit")
	ErrCommentsTooLong        = errors.New("comments exceed the maximum length")
	ErrNotAssignmentOwner     = errors.New("caller is not the instructor of this assignment")
	ErrGradeOutOfRange        = errors.New("grade must be between 0 and the maximum grade")
	ErrFeedbackTooLong        = errors.New("feedback exceeds the maximum length")
	ErrSubmissionMismatch     = errors.New("submission does not belong to this assignment")
	ErrInvalidDueDate         = errors.New("due date must be in the future")
)

const (
	maxCommentsLength     = 1000
	maxFeedbackLength     = 2000
	attemptAllocRetries   = 3
	defaultMaxSubmissions = 3
)

// GradeInput carries everything an instructor supplies when grading.
type GradeInput struct {
	Grade          float64
	MaxGrade       float64
	Feedback       string
	FeedbackFileID *primitive.ObjectID
}

// SubmissionStats summarizes an assignment's submissions for the
// instructor view.
type SubmissionStats struct {
	Total   int `json:"total"`
	OnTime  int `json:"onTime"`
	Late    int `json:"late"`
	Graded  int `json:"graded"`
	Pending int `json:"pending"`
}

type SubmissionService interface {
	CreateAssignment(ctx context.Context, instructorID primitive.ObjectID, courseID, title, description string, dueDate time.Time, maxFileSizeBytes int64, allowedFileTypes []string, maxSubmissions int) (*domain.Assignment, error)
	SubmitAssignment(ctx context.Context, assignmentID, studentID, fileID primitive.ObjectID, comments string) (*domain.Submission, error)
	GradeSubmission(ctx context.Context, assignmentID, submissionID, graderID primitive.ObjectID, input GradeInput) (*domain.Submission, error)
	ListSubmissions(ctx context.Context, assignmentID, callerID primitive.ObjectID, statusFilter domain.SubmissionStatus) ([]domain.Submission, *SubmissionStats, error)
	MySubmissions(ctx context.Context, assignmentID, studentID primitive.ObjectID) ([]domain.Submission, error)
	GetAssignment(ctx context.Context, assignmentID primitive.ObjectID) (*domain.Assignment, error)
}

// submissionService implements the SubmissionService interface.
type submissionService struct {
	submissionRepo repository.SubmissionRepository
	assignmentRepo repository.AssignmentRepository
	fileRepo       repository.FileRepository
	userRepo       repository.UserRepository
	notifier       notify.Notifier
}

// NewSubmissionService creates a new instance of submissionService.
func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	assignmentRepo repository.AssignmentRepository,
	fileRepo repository.FileRepository,
	userRepo repository.UserRepository,
	notifier notify.Notifier,
) SubmissionService {
	return &submissionService{
		submissionRepo: submissionRepo,
		assignmentRepo: assignmentRepo,
		fileRepo:       fileRepo,
		userRepo:       userRepo,
		notifier:       notifier,
	}
}

// === Assignment Management ===

// CreateAssignment opens a new assignment owned by the instructor.
func (s *submissionService) CreateAssignment(ctx context.Context, instructorID primitive.ObjectID, courseID, title, description string, dueDate time.Time, maxFileSizeBytes int64, allowedFileTypes []string, maxSubmissions int) (*domain.Assignment, error) {
	if courseID == "" || title == "" {
		return nil, errors.New("course ID and title are required")
	}
	if dueDate.Before(time.Now()) {
		return nil, ErrInvalidDueDate
	}
	if maxSubmissions <= 0 {
		maxSubmissions = defaultMaxSubmissions
	}

	assignment := &domain.Assignment{
		CourseID:         courseID,
		InstructorID:     instructorID,
		Title:            title,
		Description:      description,
		DueDate:          dueDate,
		Status:           domain.AssignmentStatusActive,
		MaxFileSizeBytes: maxFileSizeBytes,
		AllowedFileTypes: allowedFileTypes,
		MaxSubmissions:   maxSubmissions,
	}

	id, err := s.assignmentRepo.Create(ctx, assignment)
	if err != nil {
		return nil, err
	}
	assignment.ID = id
	return assignment, nil
}

// GetAssignment fetches a single assignment.
func (s *submissionService) GetAssignment(ctx context.Context, assignmentID primitive.ObjectID) (*domain.Assignment, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return assignment, nil
}

// === Submission Admission ===

// SubmitAssignment admits a student's file into an assignment. The
// checks run in a fixed order so a request failing several of them
// always reports the same error. The attempt number is claimed with a
// conditional insert; two students' racing submissions can never share
// a slot, and a student's own racing submissions get consecutive
// attempt numbers.
func (s *submissionService) SubmitAssignment(ctx context.Context, assignmentID, studentID, fileID primitive.ObjectID, comments string) (*domain.Submission, error) {
	if len(comments) > maxCommentsLength {
		return nil, ErrCommentsTooLong
	}

	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	switch assignment.Status {
	case domain.AssignmentStatusActive:
		// accepting submissions
	case domain.AssignmentStatusClosed:
		return nil, ErrAssignmentClosed
	default:
		// Draft assignments are invisible to students.
		return nil, ErrAssignmentNotFound
	}

	// Late work is admitted and flagged, never rejected.
	now := time.Now().UTC()
	isLate := assignment.IsLateAt(now)

	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	if !file.OwnedBy(studentID) || !file.IsActive() {
		return nil, ErrSubmissionFileDenied
	}
	if !assignment.AcceptsContentType(file.ContentType) {
		return nil, ErrFileTypeNotAccepted
	}
	if assignment.MaxFileSizeBytes > 0 && file.Size > assignment.MaxFileSizeBytes {
		return nil, ErrSubmissionTooLarge
	}

	student, err := s.userRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var submission *domain.Submission
	for attempt := 0; attempt < attemptAllocRetries; attempt++ {
		prior, err := s.submissionRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
		if err != nil {
			return nil, err
		}
		if len(prior) >= assignment.MaxSubmissions {
			return nil, ErrSubmissionLimitReached
		}

		next := 1
		for _, p := range prior {
			if p.AttemptNumber >= next {
				next = p.AttemptNumber + 1
			}
		}

		candidate := &domain.Submission{
			AssignmentID:  assignmentID,
			StudentID:     studentID,
			StudentEmail:  student.Email,
			StudentName:   student.Name,
			FileID:        fileID,
			Filename:      file.Filename,
			FileSize:      file.Size,
			AttemptNumber: next,
			SubmittedAt:   now,
			IsLate:        isLate,
			Comments:      comments,
			Status:        domain.SubmissionStatusSubmitted,
		}

		id, err := s.submissionRepo.Create(ctx, candidate)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// Another submission took this attempt number first.
				continue
			}
			return nil, err
		}
		candidate.ID = id
		submission = candidate
		break
	}
	if submission == nil {
		return nil, ErrSubmissionConflict
	}

	// Counter is advisory; the authoritative count is the submissions
	// collection itself.
	if err := s.assignmentRepo.IncrementSubmissionCount(ctx, assignmentID); err != nil {
		log.Printf("WARN: failed to increment submission count for assignment %s: %v", assignmentID.Hex(), err)
	}

	s.notifyInstructor(ctx, assignment, submission)

	log.Printf("INFO: submission %s admitted (assignment=%s student=%s attempt=%d late=%t)",
		submission.ID.Hex(), assignmentID.Hex(), studentID.Hex(), submission.AttemptNumber, isLate)
	return submission, nil
}

func (s *submissionService) notifyInstructor(ctx context.Context, assignment *domain.Assignment, sub *domain.Submission) {
	instructor, err := s.userRepo.GetByID(ctx, assignment.InstructorID)
	if err != nil {
		log.Printf("WARN: instructor lookup failed for assignment %s: %v", assignment.ID.Hex(), err)
		return
	}
	subject := fmt.Sprintf("New submission for %s", assignment.Title)
	body := fmt.Sprintf("%s submitted %q (attempt %d).", sub.StudentName, sub.Filename, sub.AttemptNumber)
	if sub.IsLate {
		body += " The submission is late."
	}
	if err := s.notifier.Notify(ctx, instructor.Email, subject, body); err != nil {
		log.Printf("WARN: submission notification to %s failed: %v", instructor.Email, err)
	}
}

// === Grading ===

// GradeSubmission records a grade on a submission. Grading the same
// submission again replaces the earlier grade wholesale. Only the
// assignment's instructor (or an admin) may grade.
func (s *submissionService) GradeSubmission(ctx context.Context, assignmentID, submissionID, graderID primitive.ObjectID, input GradeInput) (*domain.Submission, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if assignment.InstructorID != graderID {
		grader, err := s.userRepo.GetByID(ctx, graderID)
		if err != nil {
			return nil, err
		}
		// Admins may grade on any assignment; other instructors may not.
		if grader.Role != domain.RoleAdmin {
			return nil, ErrNotAssignmentOwner
		}
	}

	if input.MaxGrade <= 0 || input.Grade < 0 || input.Grade > input.MaxGrade {
		return nil, ErrGradeOutOfRange
	}
	if len(input.Feedback) > maxFeedbackLength {
		return nil, ErrFeedbackTooLong
	}

	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	if submission.AssignmentID != assignmentID {
		return nil, ErrSubmissionMismatch
	}

	graded, err := s.submissionRepo.ApplyGrade(ctx, submissionID, input.Grade, input.MaxGrade, input.Feedback, input.FeedbackFileID, graderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	s.notifyStudent(ctx, assignment, graded)

	log.Printf("INFO: submission %s graded %.2f/%.2f by %s",
		submissionID.Hex(), input.Grade, input.MaxGrade, graderID.Hex())
	return graded, nil
}

func (s *submissionService) notifyStudent(ctx context.Context, assignment *domain.Assignment, sub *domain.Submission) {
	if sub.Grade == nil || sub.MaxGrade == nil {
		return
	}
	subject := fmt.Sprintf("Your submission for %s was graded", assignment.Title)
	body := fmt.Sprintf("You received %.2f out of %.2f.", *sub.Grade, *sub.MaxGrade)
	if sub.Feedback != "" {
		body += "\n\nFeedback:\n" + sub.Feedback
	}
	if err := s.notifier.Notify(ctx, sub.StudentEmail, subject, body); err != nil {
		log.Printf("WARN: grade notification to %s failed: %v", sub.StudentEmail, err)
	}
}

// === Listing ===

// ListSubmissions returns an assignment's submissions with summary
// statistics. Instructor of the assignment only. An empty statusFilter
// returns everything.
func (s *submissionService) ListSubmissions(ctx context.Context, assignmentID, callerID primitive.ObjectID, statusFilter domain.SubmissionStatus) ([]domain.Submission, *SubmissionStats, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrAssignmentNotFound
		}
		return nil, nil, err
	}
	if assignment.InstructorID != callerID {
		return nil, nil, ErrNotAssignmentOwner
	}

	all, err := s.submissionRepo.GetByAssignmentID(ctx, assignmentID)
	if err != nil {
		return nil, nil, err
	}

	stats := &SubmissionStats{}
	filtered := make([]domain.Submission, 0, len(all))
	for _, sub := range all {
		stats.Total++
		if sub.IsLate {
			stats.Late++
		} else {
			stats.OnTime++
		}
		if sub.IsGraded() {
			stats.Graded++
		} else {
			stats.Pending++
		}
		if statusFilter == "" || sub.Status == statusFilter {
			filtered = append(filtered, sub)
		}
	}
	return filtered, stats, nil
}

// MySubmissions returns the student's own submissions for an
// assignment, ordered by attempt number.
func (s *submissionService) MySubmissions(ctx context.Context, assignmentID, studentID primitive.ObjectID) ([]domain.Submission, error) {
	if _, err := s.assignmentRepo.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return s.submissionRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
}
