package api

import (
	"campuscloud/backend/internal/domain"
	"campuscloud/backend/internal/service"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentHandler holds the submission service dependency.
type AssignmentHandler struct {
	submissionService service.SubmissionService
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(submissionService service.SubmissionService) *AssignmentHandler {
	return &AssignmentHandler{submissionService: submissionService}
}

// --- Request/Response Structs ---

type CreateAssignmentRequest struct {
	CourseID         string    `json:"courseId" binding:"required"`
	Title            string    `json:"title" binding:"required"`
	Description      string    `json:"description"`
	DueDate          time.Time `json:"dueDate" binding:"required"`
	MaxFileSizeBytes int64     `json:"maxFileSizeBytes"`
	AllowedFileTypes []string  `json:"allowedFileTypes"`
	MaxSubmissions   int       `json:"maxSubmissions"`
}

type AssignmentResponse struct {
	ID               string                  `json:"id"`
	CourseID         string                  `json:"courseId"`
	Title            string                  `json:"title"`
	Description      string                  `json:"description,omitempty"`
	DueDate          time.Time               `json:"dueDate"`
	Status           domain.AssignmentStatus `json:"status"`
	MaxFileSizeBytes int64                   `json:"maxFileSizeBytes,omitempty"`
	AllowedFileTypes []string                `json:"allowedFileTypes,omitempty"`
	MaxSubmissions   int                     `json:"maxSubmissions"`
	SubmissionCount  int64                   `json:"submissionCount"`
	CreatedAt        time.Time               `json:"createdAt"`
}

type SubmitAssignmentRequest struct {
	FileID   string `json:"fileId" binding:"required"`
	Comments string `json:"comments"`
}

type GradeSubmissionRequest struct {
	Grade          *float64 `json:"grade" binding:"required"`
	MaxGrade       float64  `json:"maxGrade" binding:"required"`
	Feedback       string   `json:"feedback"`
	FeedbackFileID string   `json:"feedbackFileId"`
}

type SubmissionResponse struct {
	ID            string                  `json:"id"`
	AssignmentID  string                  `json:"assignmentId"`
	StudentName   string                  `json:"studentName"`
	StudentEmail  string                  `json:"studentEmail"`
	FileID        string                  `json:"fileId"`
	Filename      string                  `json:"filename"`
	FileSize      int64                   `json:"fileSize"`
	AttemptNumber int                     `json:"attemptNumber"`
	SubmittedAt   time.Time               `json:"submittedAt"`
	IsLate        bool                    `json:"isLate"`
	Comments      string                  `json:"comments,omitempty"`
	Status        domain.SubmissionStatus `json:"status"`
	Grade         *float64                `json:"grade,omitempty"`
	MaxGrade      *float64                `json:"maxGrade,omitempty"`
	Feedback      string                  `json:"feedback,omitempty"`
	GradedAt      *time.Time              `json:"gradedAt,omitempty"`
}

// --- Handler Methods ---

// CreateAssignment opens a new assignment. Instructors only.
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}

	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	assignment, err := h.submissionService.CreateAssignment(c.Request.Context(), callerID, req.CourseID, req.Title, req.Description, req.DueDate, req.MaxFileSizeBytes, req.AllowedFileTypes, req.MaxSubmissions)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDueDate) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to create assignment")
		}
		return
	}

	c.JSON(http.StatusCreated, MapAssignmentToResponse(assignment))
}

// GetAssignment fetches a single assignment.
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	assignmentID, ok := objectIDFromParam(c, "assignmentId")
	if !ok {
		return
	}

	assignment, err := h.submissionService.GetAssignment(c.Request.Context(), assignmentID)
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to fetch assignment")
		}
		return
	}
	c.JSON(http.StatusOK, MapAssignmentToResponse(assignment))
}

// SubmitAssignment admits a student's file into an assignment.
func (h *AssignmentHandler) SubmitAssignment(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	assignmentID, ok := objectIDFromParam(c, "assignmentId")
	if !ok {
		return
	}

	var req SubmitAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	fileID, err := primitive.ObjectIDFromHex(req.FileID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid fileId format")
		return
	}

	submission, err := h.submissionService.SubmitAssignment(c.Request.Context(), assignmentID, callerID, fileID, req.Comments)
	if err != nil {
		h.abortWithSubmissionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MapSubmissionToResponse(submission))
}

// GradeSubmission records a grade on a submission. Instructor of the
// assignment (or an admin) only.
func (h *AssignmentHandler) GradeSubmission(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	assignmentID, ok := objectIDFromParam(c, "assignmentId")
	if !ok {
		return
	}
	submissionID, ok := objectIDFromParam(c, "submissionId")
	if !ok {
		return
	}

	var req GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	input := service.GradeInput{
		Grade:    *req.Grade,
		MaxGrade: req.MaxGrade,
		Feedback: req.Feedback,
	}
	if req.FeedbackFileID != "" {
		feedbackID, err := primitive.ObjectIDFromHex(req.FeedbackFileID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid feedbackFileId format")
			return
		}
		input.FeedbackFileID = &feedbackID
	}

	graded, err := h.submissionService.GradeSubmission(c.Request.Context(), assignmentID, submissionID, callerID, input)
	if err != nil {
		h.abortWithSubmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, MapSubmissionToResponse(graded))
}

// ListSubmissions lists an assignment's submissions with statistics.
func (h *AssignmentHandler) ListSubmissions(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	assignmentID, ok := objectIDFromParam(c, "assignmentId")
	if !ok {
		return
	}

	statusFilter := domain.SubmissionStatus(c.Query("status"))

	submissions, stats, err := h.submissionService.ListSubmissions(c.Request.Context(), assignmentID, callerID, statusFilter)
	if err != nil {
		h.abortWithSubmissionError(c, err)
		return
	}

	resp := make([]SubmissionResponse, 0, len(submissions))
	for i := range submissions {
		resp = append(resp, MapSubmissionToResponse(&submissions[i]))
	}
	c.JSON(http.StatusOK, gin.H{"submissions": resp, "statistics": stats})
}

// MySubmissions lists the caller's own submissions for an assignment.
func (h *AssignmentHandler) MySubmissions(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	assignmentID, ok := objectIDFromParam(c, "assignmentId")
	if !ok {
		return
	}

	submissions, err := h.submissionService.MySubmissions(c.Request.Context(), assignmentID, callerID)
	if err != nil {
		h.abortWithSubmissionError(c, err)
		return
	}

	resp := make([]SubmissionResponse, 0, len(submissions))
	for i := range submissions {
		resp = append(resp, MapSubmissionToResponse(&submissions[i]))
	}
	c.JSON(http.StatusOK, gin.H{"submissions": resp, "count": len(resp)})
}

// abortWithSubmissionError maps submission service errors onto HTTP status codes.
func (h *AssignmentHandler) abortWithSubmissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrFileNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSubmissionFileDenied),
		errors.Is(err, service.ErrNotAssignmentOwner):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAssignmentClosed),
		errors.Is(err, service.ErrSubmissionLimitReached),
		errors.Is(err, service.ErrSubmissionConflict):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrFileTypeNotAccepted),
		errors.Is(err, service.ErrSubmissionTooLarge),
		errors.Is(err, service.ErrCommentsTooLong),
		errors.Is(err, service.ErrGradeOutOfRange),
		errors.Is(err, service.ErrFeedbackTooLong),
		errors.Is(err, service.ErrSubmissionMismatch):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// MapAssignmentToResponse converts a domain Assignment to its DTO.
func MapAssignmentToResponse(a *domain.Assignment) AssignmentResponse {
	if a == nil {
		return AssignmentResponse{}
	}
	return AssignmentResponse{
		ID:               a.ID.Hex(),
		CourseID:         a.CourseID,
		Title:            a.Title,
		Description:      a.Description,
		DueDate:          a.DueDate,
		Status:           a.Status,
		MaxFileSizeBytes: a.MaxFileSizeBytes,
		AllowedFileTypes: a.AllowedFileTypes,
		MaxSubmissions:   a.MaxSubmissions,
		SubmissionCount:  a.SubmissionCount,
		CreatedAt:        a.CreatedAt,
	}
}

// MapSubmissionToResponse converts a domain Submission to its DTO.
func MapSubmissionToResponse(s *domain.Submission) SubmissionResponse {
	if s == nil {
		return SubmissionResponse{}
	}
	return SubmissionResponse{
		ID:            s.ID.Hex(),
		AssignmentID:  s.AssignmentID.Hex(),
		StudentName:   s.StudentName,
		StudentEmail:  s.StudentEmail,
		FileID:        s.FileID.Hex(),
		Filename:      s.Filename,
		FileSize:      s.FileSize,
		AttemptNumber: s.AttemptNumber,
		SubmittedAt:   s.SubmittedAt,
		IsLate:        s.IsLate,
		Comments:      s.Comments,
		Status:        s.Status,
		Grade:         s.Grade,
		MaxGrade:      s.MaxGrade,
		Feedback:      s.Feedback,
		GradedAt:      s.GradedAt,
	}
}
