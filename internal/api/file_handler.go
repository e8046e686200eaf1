package api

import (
	"campuscloud/backend/internal/domain"
	"campuscloud/backend/internal/service"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileHandler holds the file service dependency.
type FileHandler struct {
	fileService service.FileService
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(fileService service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// --- Request/Response Structs ---

type ReserveUploadRequest struct {
	Filename    string            `json:"filename" binding:"required"`
	ContentType string            `json:"contentType" binding:"required"`
	Size        int64             `json:"size" binding:"required"`
	Description string            `json:"description"`
	Tags        []string          `json:"tags"`
	Metadata    map[string]string `json:"metadata"`
}

type CompleteUploadRequest struct {
	StorageKey    string `json:"storageKey"`
	Checksum      string `json:"checksum"`
	UploadSuccess *bool  `json:"uploadSuccess" binding:"required"`
}

type FileResponse struct {
	ID            string            `json:"id"`
	Filename      string            `json:"filename"`
	ContentType   string            `json:"contentType"`
	Size          int64             `json:"size"`
	Status        domain.FileStatus `json:"status"`
	Checksum      string            `json:"checksum,omitempty"`
	Description   string            `json:"description,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	DownloadCount int64             `json:"downloadCount"`
	UploadedAt    time.Time         `json:"uploadedAt"`
	LastModified  time.Time         `json:"lastModified"`
}

// --- Handler Methods ---

// ReserveUpload registers a pending file and returns a presigned upload URL.
func (h *FileHandler) ReserveUpload(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}

	var req ReserveUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	reservation, err := h.fileService.ReserveUpload(c.Request.Context(), callerID, req.Filename, req.ContentType, req.Size, req.Description, req.Tags, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidFilename),
			errors.Is(err, service.ErrContentTypeNotAllowed),
			errors.Is(err, service.ErrInvalidFileSize),
			errors.Is(err, service.ErrFileTooLarge):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to reserve upload")
		}
		return
	}

	c.JSON(http.StatusCreated, reservation)
}

// CompleteUpload finalizes or fails a pending upload.
func (h *FileHandler) CompleteUpload(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := objectIDFromParam(c, "fileId")
	if !ok {
		return
	}

	var req CompleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	if !*req.UploadSuccess {
		if err := h.fileService.ReportUploadFailed(c.Request.Context(), fileID, callerID); err != nil {
			h.abortWithFileError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": domain.FileStatusFailed})
		return
	}

	file, err := h.fileService.CompleteUpload(c.Request.Context(), fileID, callerID, req.StorageKey, req.Checksum)
	if err != nil {
		h.abortWithFileError(c, err)
		return
	}

	c.JSON(http.StatusOK, MapFileToResponse(file))
}

// GetMyFiles lists the caller's own files.
func (h *FileHandler) GetMyFiles(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	files, err := h.fileService.ListMyFiles(c.Request.Context(), callerID, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list files")
		return
	}

	resp := make([]FileResponse, 0, len(files))
	for i := range files {
		resp = append(resp, MapFileToResponse(&files[i]))
	}
	c.JSON(http.StatusOK, gin.H{"files": resp, "count": len(resp)})
}

// GetDownloadURL returns a presigned GET URL for the owner or a share recipient.
func (h *FileHandler) GetDownloadURL(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := objectIDFromParam(c, "fileId")
	if !ok {
		return
	}

	link, err := h.fileService.GetDownloadLink(c.Request.Context(), fileID, callerID)
	if err != nil {
		h.abortWithFileError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

// DeleteFile soft-deletes one of the caller's files.
func (h *FileHandler) DeleteFile(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := objectIDFromParam(c, "fileId")
	if !ok {
		return
	}

	if err := h.fileService.DeleteFile(c.Request.Context(), fileID, callerID); err != nil {
		h.abortWithFileError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// abortWithFileError maps file service errors onto HTTP status codes.
func (h *FileHandler) abortWithFileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFileNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFileAccessDenied):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrUploadNotFound),
		errors.Is(err, service.ErrSizeMismatch),
		errors.Is(err, service.ErrStorageKeyMismatch):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFileNotReserved),
		errors.Is(err, service.ErrFileNotActive):
		abortWithError(c, http.StatusConflict, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// MapFileToResponse converts a domain File to a FileResponse DTO.
func MapFileToResponse(file *domain.File) FileResponse {
	if file == nil {
		return FileResponse{}
	}
	return FileResponse{
		ID:            file.ID.Hex(),
		Filename:      file.Filename,
		ContentType:   file.ContentType,
		Size:          file.Size,
		Status:        file.Status,
		Checksum:      file.Checksum,
		Description:   file.Description,
		Tags:          file.Tags,
		DownloadCount: file.DownloadCount,
		UploadedAt:    file.UploadedAt,
		LastModified:  file.LastModified,
	}
}

// --- Shared helpers for path/context IDs ---

func objectIDFromContext(c *gin.Context) (primitive.ObjectID, bool) {
	idStr, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Invalid user ID in token")
		return primitive.NilObjectID, false
	}
	return id, true
}

func objectIDFromParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", name))
		return primitive.NilObjectID, false
	}
	return id, true
}
