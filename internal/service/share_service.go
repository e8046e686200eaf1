package service

import (
	"campuscloud/backend/internal/domain"
	"campuscloud/backend/internal/notify"
	"campuscloud/backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrShareNotFound       = errors.New("share not found")
	ErrShareAccessDenied   = errors.New("access denied: caller does not own this share")
	ErrTooManyRecipients   = errors.New("too many recipients in a single request")
	ErrNoRecipients        = errors.New("at least one recipient is required")
	ErrShareMessageTooLong = errors.New("share message exceeds the maximum length")
	ErrExpiryInPast        = errors.New("expiration time must be in the future")
	ErrInvalidPermission   = errors.New("permission must be read or write")
)

const (
	maxShareRecipients    = 50
	maxShareMessageLength = 500
)

// ShareRequest is one CreateShares call: a file, a recipient list and
// the grant terms applied to every recipient.
type ShareRequest struct {
	FileID          primitive.ObjectID
	OwnerID         primitive.ObjectID
	RecipientEmails []string
	Permission      domain.SharePermission
	Message         string
	ExpiresAt       *time.Time
}

// ShareFailure explains why one recipient could not be granted access.
// Failures never abort the rest of the batch.
type ShareFailure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// ShareResult reports the per-recipient outcome of a CreateShares call.
type ShareResult struct {
	Created []domain.Share `json:"created"`
	Failed  []ShareFailure `json:"failed"`
}

// SharedFile joins a grant with the file it covers, for the recipient's
// listing view.
type SharedFile struct {
	Share domain.Share `json:"share"`
	File  domain.File  `json:"file"`
}

type ShareService interface {
	CreateShares(ctx context.Context, req ShareRequest) (*ShareResult, error)
	ValidateAccess(ctx context.Context, fileID, requesterID primitive.ObjectID, required domain.SharePermission) (bool, error)
	ListShares(ctx context.Context, fileID, callerID primitive.ObjectID) ([]domain.Share, error)
	RevokeShare(ctx context.Context, shareID, callerID primitive.ObjectID) error
	SharedWithMe(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]SharedFile, error)
}

// shareService implements the ShareService interface.
type shareService struct {
	shareRepo repository.ShareRepository
	fileRepo  repository.FileRepository
	userRepo  repository.UserRepository
	notifier  notify.Notifier
}

// NewShareService creates a new instance of shareService.
func NewShareService(
	shareRepo repository.ShareRepository,
	fileRepo repository.FileRepository,
	userRepo repository.UserRepository,
	notifier notify.Notifier,
) ShareService {
	return &shareService{
		shareRepo: shareRepo,
		fileRepo:  fileRepo,
		userRepo:  userRepo,
		notifier:  notifier,
	}
}

// === Grant Creation ===

// CreateShares grants access to up to 50 recipients in one call.
// Request-level problems (bad file, bad terms) fail the whole call;
// recipient-level problems only fail that recipient and are reported in
// Failed. Re-sharing to an existing recipient overwrites the prior
// grant in place.
func (s *shareService) CreateShares(ctx context.Context, req ShareRequest) (*ShareResult, error) {
	if len(req.RecipientEmails) == 0 {
		return nil, ErrNoRecipients
	}
	if len(req.RecipientEmails) > maxShareRecipients {
		return nil, ErrTooManyRecipients
	}
	if len(req.Message) > maxShareMessageLength {
		return nil, ErrShareMessageTooLong
	}
	if req.Permission != domain.PermissionRead && req.Permission != domain.PermissionWrite {
		return nil, ErrInvalidPermission
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, ErrExpiryInPast
	}

	file, err := s.fileRepo.GetByID(ctx, req.FileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	if !file.OwnedBy(req.OwnerID) {
		return nil, ErrFileAccessDenied
	}
	if !file.IsActive() {
		return nil, ErrFileNotActive
	}

	owner, err := s.userRepo.GetByID(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	result := &ShareResult{}
	seen := make(map[string]bool, len(req.RecipientEmails))

	for _, raw := range req.RecipientEmails {
		email := strings.ToLower(strings.TrimSpace(raw))
		if seen[email] {
			continue
		}
		seen[email] = true

		if !strings.Contains(email, "@") || len(email) < 3 {
			result.Failed = append(result.Failed, ShareFailure{Email: raw, Reason: "invalid email address"})
			continue
		}
		if email == strings.ToLower(owner.Email) {
			result.Failed = append(result.Failed, ShareFailure{Email: raw, Reason: "cannot share a file with its owner"})
			continue
		}

		recipient, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				result.Failed = append(result.Failed, ShareFailure{Email: raw, Reason: "no account with this email"})
			} else {
				log.Printf("ERROR: recipient lookup failed for %s: %v", email, err)
				result.Failed = append(result.Failed, ShareFailure{Email: raw, Reason: "recipient lookup failed"})
			}
			continue
		}

		share := &domain.Share{
			FileID:         req.FileID,
			OwnerID:        req.OwnerID,
			RecipientID:    recipient.ID,
			RecipientEmail: recipient.Email,
			Permission:     req.Permission,
			Status:         domain.ShareStatusActive,
			Message:        req.Message,
			ExpiresAt:      req.ExpiresAt,
		}

		shareID, err := s.shareRepo.Upsert(ctx, share)
		if err != nil {
			log.Printf("ERROR: failed to store share for %s on file %s: %v", email, req.FileID.Hex(), err)
			result.Failed = append(result.Failed, ShareFailure{Email: raw, Reason: "failed to store share"})
			continue
		}
		share.ID = shareID
		result.Created = append(result.Created, *share)

		s.notifyRecipient(ctx, recipient.Email, owner.Name, file.Filename, req.Message)
	}

	return result, nil
}

func (s *shareService) notifyRecipient(ctx context.Context, recipientEmail, ownerName, filename, message string) {
	subject := fmt.Sprintf("%s shared a file with you", ownerName)
	body := fmt.Sprintf("%s shared %q with you.", ownerName, filename)
	if message != "" {
		body += "\n\n" + message
	}
	if err := s.notifier.Notify(ctx, recipientEmail, subject, body); err != nil {
		log.Printf("WARN: share notification to %s failed: %v", recipientEmail, err)
	}
}

// === Access Arbitration ===

// ValidateAccess reports whether the requester may act on the file
// with the required permission. Owners always may; everyone else needs
// a live grant. Expiry is judged against the wall clock at call time,
// so an expired grant is dead even before any cleanup marks it.
func (s *shareService) ValidateAccess(ctx context.Context, fileID, requesterID primitive.ObjectID, required domain.SharePermission) (bool, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrFileNotFound
		}
		return false, err
	}
	if file.OwnedBy(requesterID) {
		return true, nil
	}

	share, err := s.shareRepo.GetByFileAndRecipient(ctx, fileID, requesterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if !share.GrantsAt(time.Now(), required) {
		return false, nil
	}

	// Usage stats are advisory.
	if err := s.shareRepo.RecordAccess(ctx, share.ID); err != nil {
		log.Printf("WARN: failed to record access on share %s: %v", share.ID.Hex(), err)
	}
	return true, nil
}

// === Listing and Revocation ===

// ListShares returns the live grants on a file. Owner only.
func (s *shareService) ListShares(ctx context.Context, fileID, callerID primitive.ObjectID) ([]domain.Share, error) {
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

	shares, err := s.shareRepo.GetByFileID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	live := make([]domain.Share, 0, len(shares))
	for _, sh := range shares {
		if sh.Status != domain.ShareStatusActive {
			continue
		}
		if sh.ExpiresAt != nil && !now.Before(*sh.ExpiresAt) {
			continue
		}
		live = append(live, sh)
	}
	return live, nil
}

// RevokeShare withdraws a grant. Revoking an already-revoked share is
// a no-op success.
func (s *shareService) RevokeShare(ctx context.Context, shareID, callerID primitive.ObjectID) error {
	share, err := s.shareRepo.GetByID(ctx, shareID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrShareNotFound
		}
		return err
	}
	if share.OwnerID != callerID {
		return ErrShareAccessDenied
	}
	if share.Status == domain.ShareStatusRevoked {
		return nil
	}
	return s.shareRepo.Revoke(ctx, shareID)
}

// SharedWithMe lists files other users have shared with the caller,
// joined with their current metadata. Grants whose file has since been
// deleted or deactivated are skipped.
func (s *shareService) SharedWithMe(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]SharedFile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	shares, err := s.shareRepo.GetByRecipientID(ctx, recipientID, limit)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]SharedFile, 0, len(shares))
	for _, sh := range shares {
		if !sh.GrantsAt(now, domain.PermissionRead) {
			continue
		}
		file, err := s.fileRepo.GetByID(ctx, sh.FileID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !file.IsActive() {
			continue
		}
		out = append(out, SharedFile{Share: sh, File: *file})
	}
	return out, nil
}
