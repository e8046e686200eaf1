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
)

// ShareHandler holds the share service dependency.
type ShareHandler struct {
	shareService service.ShareService
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(shareService service.ShareService) *ShareHandler {
	return &ShareHandler{shareService: shareService}
}

// --- Request/Response Structs ---

type CreateSharesRequest struct {
	RecipientEmails []string               `json:"recipientEmails" binding:"required"`
	Permission      domain.SharePermission `json:"permission" binding:"required,oneof=read write"`
	Message         string                 `json:"message"`
	ExpiresAt       *time.Time             `json:"expiresAt"`
}

type ShareResponse struct {
	ID             string                 `json:"id"`
	FileID         string                 `json:"fileId"`
	RecipientEmail string                 `json:"recipientEmail"`
	Permission     domain.SharePermission `json:"permission"`
	Status         domain.ShareStatus     `json:"status"`
	Message        string                 `json:"message,omitempty"`
	SharedAt       time.Time              `json:"sharedAt"`
	ExpiresAt      *time.Time             `json:"expiresAt,omitempty"`
	AccessCount    int64                  `json:"accessCount"`
}

type CreateSharesResponse struct {
	Created []ShareResponse        `json:"created"`
	Failed  []service.ShareFailure `json:"failed"`
}

type SharedFileResponse struct {
	Share ShareResponse `json:"share"`
	File  FileResponse  `json:"file"`
}

// --- Handler Methods ---

// CreateShares grants file access to a batch of recipients.
func (h *ShareHandler) CreateShares(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := objectIDFromParam(c, "fileId")
	if !ok {
		return
	}

	var req CreateSharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	result, err := h.shareService.CreateShares(c.Request.Context(), service.ShareRequest{
		FileID:          fileID,
		OwnerID:         callerID,
		RecipientEmails: req.RecipientEmails,
		Permission:      req.Permission,
		Message:         req.Message,
		ExpiresAt:       req.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrFileAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrFileNotActive):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrNoRecipients),
			errors.Is(err, service.ErrTooManyRecipients),
			errors.Is(err, service.ErrShareMessageTooLong),
			errors.Is(err, service.ErrExpiryInPast),
			errors.Is(err, service.ErrInvalidPermission):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to create shares")
		}
		return
	}

	resp := CreateSharesResponse{Failed: result.Failed}
	for i := range result.Created {
		resp.Created = append(resp.Created, MapShareToResponse(&result.Created[i]))
	}

	// Entirely failed batches still report per-recipient reasons.
	status := http.StatusCreated
	if len(resp.Created) == 0 {
		status = http.StatusBadRequest
	} else if len(resp.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, resp)
}

// ListShares lists the live grants on one of the caller's files.
func (h *ShareHandler) ListShares(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	fileID, ok := objectIDFromParam(c, "fileId")
	if !ok {
		return
	}

	shares, err := h.shareService.ListShares(c.Request.Context(), fileID, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrFileAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to list shares")
		}
		return
	}

	resp := make([]ShareResponse, 0, len(shares))
	for i := range shares {
		resp = append(resp, MapShareToResponse(&shares[i]))
	}
	c.JSON(http.StatusOK, gin.H{"shares": resp, "count": len(resp)})
}

// RevokeShare withdraws a grant the caller issued.
func (h *ShareHandler) RevokeShare(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}
	shareID, ok := objectIDFromParam(c, "shareId")
	if !ok {
		return
	}

	if err := h.shareService.RevokeShare(c.Request.Context(), shareID, callerID); err != nil {
		switch {
		case errors.Is(err, service.ErrShareNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrShareAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to revoke share")
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// SharedWithMe lists files other users have shared with the caller.
func (h *ShareHandler) SharedWithMe(c *gin.Context) {
	callerID, ok := objectIDFromContext(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.shareService.SharedWithMe(c.Request.Context(), callerID, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list shared files")
		return
	}

	resp := make([]SharedFileResponse, 0, len(items))
	for i := range items {
		resp = append(resp, SharedFileResponse{
			Share: MapShareToResponse(&items[i].Share),
			File:  MapFileToResponse(&items[i].File),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sharedFiles": resp, "count": len(resp)})
}

// MapShareToResponse converts a domain Share to a ShareResponse DTO.
func MapShareToResponse(share *domain.Share) ShareResponse {
	if share == nil {
		return ShareResponse{}
	}
	return ShareResponse{
		ID:             share.ID.Hex(),
		FileID:         share.FileID.Hex(),
		RecipientEmail: share.RecipientEmail,
		Permission:     share.Permission,
		Status:         share.Status,
		Message:        share.Message,
		SharedAt:       share.SharedAt,
		ExpiresAt:      share.ExpiresAt,
		AccessCount:    share.AccessCount,
	}
}
