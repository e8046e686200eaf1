package service

import (
	"campuscloud/backend/internal/config"
	"campuscloud/backend/internal/domain"
	"campuscloud/backend/internal/repository"
	"campuscloud/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrFileNotFound       = errors.New("file not found")
	ErrFileAccessDenied   = errors.New("access denied: caller does not own this file")
	ErrFileNotActive      = errors.New("file is not active")
	ErrFileNotReserved    = errors.New("file is not awaiting upload completion")
	ErrUploadNotFound     = errors.New("object not found in storage; upload may have failed")
	ErrSizeMismatch       = errors.New("uploaded object size disagrees with the declared size")
	ErrStorageKeyMismatch = errors.New("claimed storage key does not match the reservation")
	ErrInvalidFilename    = errors.New("filename must be between 1 and 255 characters")
	ErrContentTypeNotAllowed = errors.New("content type is not allowed")
	ErrFileTooLarge       = errors.New("file size exceeds the maximum allowed")
	ErrInvalidFileSize    = errors.New("file size must be greater than 0")
	ErrUploadURLError     = errors.New("failed to generate upload URL")
	ErrDownloadURLError   = errors.New("failed to generate download URL")
)

// sizeToleranceBytes absorbs the small overhead upload clients may add
// on top of the declared content length.
const sizeToleranceBytes = 1000

// AccessChecker arbitrates non-owner access to a file. Implemented by
// the share service.
type AccessChecker interface {
	ValidateAccess(ctx context.Context, fileID, requesterID primitive.ObjectID, required domain.SharePermission) (bool, error)
}

// UploadReservation is returned by ReserveUpload; the client PUTs the
// bytes to UploadURL and then calls CompleteUpload.
type UploadReservation struct {
	FileID     string    `json:"fileId"`
	StorageKey string    `json:"storageKey"`
	UploadURL  string    `json:"uploadUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// DownloadLink bundles a presigned GET URL with the metadata the client
// needs to present the file.
type DownloadLink struct {
	DownloadURL string `json:"downloadUrl"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type FileService interface {
	ReserveUpload(ctx context.Context, ownerID primitive.ObjectID, filename, contentType string, declaredSize int64, description string, tags []string, metadata map[string]string) (*UploadReservation, error)
	CompleteUpload(ctx context.Context, fileID, callerID primitive.ObjectID, claimedStorageKey, claimedChecksum string) (*domain.File, error)
	ReportUploadFailed(ctx context.Context, fileID, callerID primitive.ObjectID) error
	GetDownloadLink(ctx context.Context, fileID, requesterID primitive.ObjectID) (*DownloadLink, error)
	ListMyFiles(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]domain.File, error)
	DeleteFile(ctx context.Context, fileID, callerID primitive.ObjectID) error
}

// fileService implements the FileService interface.
type fileService struct {
	fileRepo      repository.FileRepository
	fileStorage   storage.FileStorage
	accessChecker AccessChecker
	uploadCfg     config.UploadConfig
	bucketName    string
}

// NewFileService creates a new instance of fileService.
func NewFileService(
	fileRepo repository.FileRepository,
	fileStorage storage.FileStorage,
	accessChecker AccessChecker,
	uploadCfg config.UploadConfig,
	bucketName string,
) FileService {
	return &fileService{
		fileRepo:      fileRepo,
		fileStorage:   fileStorage,
		accessChecker: accessChecker,
		uploadCfg:     uploadCfg,
		bucketName:    bucketName,
	}
}

// === Upload Reservation ===

// ReserveUpload validates the request, creates the File record in
// reserved state and hands back a presigned upload URL. The record is
// not trusted until CompleteUpload verifies the object in storage.
func (s *fileService) ReserveUpload(ctx context.Context, ownerID primitive.ObjectID, filename, contentType string, declaredSize int64, description string, tags []string, metadata map[string]string) (*UploadReservation, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID is required")
	}
	if len(filename) == 0 || len(filename) > 255 {
		return nil, ErrInvalidFilename
	}
	if !s.contentTypeAllowed(contentType) {
		return nil, ErrContentTypeNotAllowed
	}
	if declaredSize <= 0 {
		return nil, ErrInvalidFileSize
	}
	if declaredSize > s.uploadCfg.MaxFileSizeBytes {
		return nil, ErrFileTooLarge
	}

	// Storage key is deterministically namespaced by owner and file id.
	fileID := primitive.NewObjectID()
	storageKey := path.Join("users", ownerID.Hex(), "files", fmt.Sprintf("%s-%s", fileID.Hex(), uuid.NewString()))

	file := &domain.File{
		ID:            fileID,
		OwnerID:       ownerID,
		Filename:      filename,
		ContentType:   contentType,
		Size:          declaredSize,
		StorageKey:    storageKey,
		StorageBucket: s.bucketName,
		Status:        domain.FileStatusReserved,
		Description:   description,
		Tags:          tags,
		Metadata:      metadata,
	}

	if _, err := s.fileRepo.Create(ctx, file); err != nil {
		return nil, err
	}

	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, storageKey, contentType, s.uploadCfg.UploadURLExpiry)
	if err != nil {
		return nil, ErrUploadURLError
	}

	return &UploadReservation{
		FileID:     fileID.Hex(),
		StorageKey: storageKey,
		UploadURL:  uploadURL,
		ExpiresAt:  time.Now().UTC().Add(s.uploadCfg.UploadURLExpiry),
	}, nil
}

// === Upload Completion ===

// CompleteUpload proves the claimed upload actually happened before
// activating the record. The reserved -> active promotion is a
// conditional write, so N racing completion calls produce exactly one
// transition and N identical active results.
func (s *fileService) CompleteUpload(ctx context.Context, fileID, callerID primitive.ObjectID, claimedStorageKey, claimedChecksum string) (*domain.File, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if !file.OwnedBy(callerID) {
		return nil, ErrFileAccessDenied
	}

	// Network retries of this call are expected; an already-active
	// record is a success, not an error.
	if file.Status == domain.FileStatusActive {
		return file, nil
	}
	if file.Status != domain.FileStatusReserved {
		return nil, ErrFileNotReserved
	}

	if claimedStorageKey != "" && claimedStorageKey != file.StorageKey {
		return nil, ErrStorageKeyMismatch
	}

	// Existence probe: close the gap between "client claims upload
	// succeeded" and "server can prove it".
	info, err := s.fileStorage.ProbeObject(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}

	diff := info.Size - file.Size
	if diff < -sizeToleranceBytes || diff > sizeToleranceBytes {
		return nil, ErrSizeMismatch
	}

	checksum := claimedChecksum
	if checksum == "" {
		checksum = info.ETag
	}

	err = s.fileRepo.PromoteToActive(ctx, fileID, info.Size, checksum)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost the race. Re-read and treat a now-active record as
			// idempotent success.
			current, getErr := s.fileRepo.GetByID(ctx, fileID)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == domain.FileStatusActive {
				return current, nil
			}
			return nil, ErrFileNotReserved
		}
		return nil, err
	}

	updated, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: upload completed for file %s (%d bytes)", fileID.Hex(), info.Size)
	return updated, nil
}

// ReportUploadFailed marks a reserved record failed when the client
// reports the transfer did not succeed. No storage probe is performed.
func (s *fileService) ReportUploadFailed(ctx context.Context, fileID, callerID primitive.ObjectID) error {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	if !file.OwnedBy(callerID) {
		return ErrFileAccessDenied
	}
	if file.Status != domain.FileStatusReserved {
		return ErrFileNotReserved
	}
	return s.fileRepo.UpdateStatus(ctx, fileID, domain.FileStatusFailed)
}

// === Download ===

// GetDownloadLink issues a presigned GET URL for the owner or anyone
// holding a live read grant.
func (s *fileService) GetDownloadLink(ctx context.Context, fileID, requesterID primitive.ObjectID) (*DownloadLink, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if !file.OwnedBy(requesterID) {
		ok, err := s.accessChecker.ValidateAccess(ctx, fileID, requesterID, domain.PermissionRead)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrFileAccessDenied
		}
	}

	if !file.IsActive() {
		return nil, ErrFileNotActive
	}

	downloadURL, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, file.StorageKey, file.Filename, file.ContentType, s.uploadCfg.DownloadURLExpiry)
	if err != nil {
		return nil, ErrDownloadURLError
	}

	// Counter is advisory; a failed increment never fails the download.
	if err := s.fileRepo.IncrementDownloadCount(ctx, fileID); err != nil {
		log.Printf("WARN: failed to increment download count for file %s: %v", fileID.Hex(), err)
	}

	return &DownloadLink{
		DownloadURL: downloadURL,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        file.Size,
		ExpiresIn:   int64(s.uploadCfg.DownloadURLExpiry.Seconds()),
	}, nil
}

// ListMyFiles returns the caller's own files, newest first.
func (s *fileService) ListMyFiles(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]domain.File, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.fileRepo.GetByOwnerID(ctx, ownerID, limit)
}

// DeleteFile soft-deletes a file. The object itself is purged by an
// external retention job.
func (s *fileService) DeleteFile(ctx context.Context, fileID, callerID primitive.ObjectID) error {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	if !file.OwnedBy(callerID) {
		return ErrFileAccessDenied
	}
	if file.Status == domain.FileStatusDeleted {
		return nil
	}
	return s.fileRepo.UpdateStatus(ctx, fileID, domain.FileStatusDeleted)
}

func (s *fileService) contentTypeAllowed(contentType string) bool {
	if contentType == "" {
		return false
	}
	if len(s.uploadCfg.AllowedTypes) == 0 {
		return true
	}
	for _, t := range s.uploadCfg.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}
