package service

import (
	"campuscloud/backend/internal/domain"
	"campuscloud/backend/internal/repository"
	"campuscloud/backend/internal/storage"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes. They reproduce the conditional-write
// semantics of the Mongo implementations (status-filtered updates,
// unique-index conflicts) under a mutex so the concurrency tests
// exercise real races.

// --- user repo ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*domain.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	if user.ID == primitive.NilObjectID {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = time.Now().UTC()
	cp := *user
	r.users[user.ID] = &cp
	return user.ID, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) add(name, email string, role domain.Role) *domain.User {
	u := &domain.User{Name: name, Email: email, Role: role}
	r.Create(context.Background(), u)
	return u
}

// --- file repo ---

type fakeFileRepo struct {
	mu    sync.Mutex
	files map[primitive.ObjectID]*domain.File

	promoteErr error // injected failure
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[primitive.ObjectID]*domain.File)}
}

func (r *fakeFileRepo) Create(ctx context.Context, file *domain.File) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if file.ID == primitive.NilObjectID {
		file.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	file.UploadedAt = now
	file.LastModified = now
	cp := *file
	r.files[file.ID] = &cp
	return file.ID, nil
}

func (r *fakeFileRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFileRepo) GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]domain.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.File
	for _, f := range r.files {
		if f.OwnerID == ownerID && f.Status != domain.FileStatusDeleted {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeFileRepo) PromoteToActive(ctx context.Context, id primitive.ObjectID, size int64, checksum string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.promoteErr != nil {
		return r.promoteErr
	}
	f, ok := r.files[id]
	if !ok {
		return repository.ErrConflict
	}
	if f.Status != domain.FileStatusReserved {
		return repository.ErrConflict
	}
	f.Status = domain.FileStatusActive
	f.Size = size
	f.Checksum = checksum
	f.LastModified = time.Now().UTC()
	return nil
}

func (r *fakeFileRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.FileStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.Status = status
	f.LastModified = time.Now().UTC()
	return nil
}

func (r *fakeFileRepo) IncrementDownloadCount(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.DownloadCount++
	return nil
}

func (r *fakeFileRepo) addActive(ownerID primitive.ObjectID, filename, contentType string, size int64) *domain.File {
	f := &domain.File{
		OwnerID:     ownerID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		StorageKey:  fmt.Sprintf("users/%s/files/%s", ownerID.Hex(), primitive.NewObjectID().Hex()),
		Status:      domain.FileStatusActive,
	}
	r.Create(context.Background(), f)
	return f
}

// --- share repo ---

type fakeShareRepo struct {
	mu     sync.Mutex
	shares map[primitive.ObjectID]*domain.Share

	upsertErrFor map[primitive.ObjectID]error // recipientID -> error
}

func newFakeShareRepo() *fakeShareRepo {
	return &fakeShareRepo{
		shares:       make(map[primitive.ObjectID]*domain.Share),
		upsertErrFor: make(map[primitive.ObjectID]error),
	}
}

func (r *fakeShareRepo) Upsert(ctx context.Context, share *domain.Share) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.upsertErrFor[share.RecipientID]; err != nil {
		return primitive.NilObjectID, err
	}
	share.SharedAt = time.Now().UTC()
	for id, s := range r.shares {
		if s.FileID == share.FileID && s.RecipientID == share.RecipientID {
			share.ID = id
			share.AccessCount = 0
			share.RevokedAt = nil
			cp := *share
			r.shares[id] = &cp
			return id, nil
		}
	}
	if share.ID == primitive.NilObjectID {
		share.ID = primitive.NewObjectID()
	}
	cp := *share
	r.shares[share.ID] = &cp
	return share.ID, nil
}

func (r *fakeShareRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeShareRepo) GetByFileAndRecipient(ctx context.Context, fileID, recipientID primitive.ObjectID) (*domain.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shares {
		if s.FileID == fileID && s.RecipientID == recipientID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeShareRepo) GetByFileID(ctx context.Context, fileID primitive.ObjectID) ([]domain.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Share
	for _, s := range r.shares {
		if s.FileID == fileID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeShareRepo) GetByRecipientID(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]domain.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Share
	for _, s := range r.shares {
		if s.RecipientID == recipientID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SharedAt.After(out[j].SharedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeShareRepo) Revoke(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	s.Status = domain.ShareStatusRevoked
	s.RevokedAt = &now
	return nil
}

func (r *fakeShareRepo) RecordAccess(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	s.AccessCount++
	s.LastAccessedAt = &now
	return nil
}

// --- assignment repo ---

type fakeAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[primitive.ObjectID]*domain.Assignment
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{assignments: make(map[primitive.ObjectID]*domain.Assignment)}
}

func (r *fakeAssignmentRepo) Create(ctx context.Context, a *domain.Assignment) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == primitive.NilObjectID {
		a.ID = primitive.NewObjectID()
	}
	a.CreatedAt = time.Now().UTC()
	cp := *a
	r.assignments[a.ID] = &cp
	return a.ID, nil
}

func (r *fakeAssignmentRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAssignmentRepo) GetByInstructorID(ctx context.Context, instructorID primitive.ObjectID) ([]domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Assignment
	for _, a := range r.assignments {
		if a.InstructorID == instructorID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) IncrementSubmissionCount(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.SubmissionCount++
	return nil
}

// --- submission repo ---

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[primitive.ObjectID]*domain.Submission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{submissions: make(map[primitive.ObjectID]*domain.Submission)}
}

// Create enforces the unique (assignmentId, studentId, attemptNumber)
// slot the way the unique compound index does.
func (r *fakeSubmissionRepo) Create(ctx context.Context, sub *domain.Submission) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.submissions {
		if s.AssignmentID == sub.AssignmentID && s.StudentID == sub.StudentID && s.AttemptNumber == sub.AttemptNumber {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	if sub.ID == primitive.NilObjectID {
		sub.ID = primitive.NewObjectID()
	}
	cp := *sub
	r.submissions[sub.ID] = &cp
	return sub.ID, nil
}

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSubmissionRepo) GetByAssignmentID(ctx context.Context, assignmentID primitive.ObjectID) ([]domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Submission
	for _, s := range r.submissions {
		if s.AssignmentID == assignmentID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (r *fakeSubmissionRepo) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID primitive.ObjectID) ([]domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Submission
	for _, s := range r.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (r *fakeSubmissionRepo) ApplyGrade(ctx context.Context, id primitive.ObjectID, grade, maxGrade float64, feedback string, feedbackFileID *primitive.ObjectID, gradedBy primitive.ObjectID) (*domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	now := time.Now().UTC()
	s.Status = domain.SubmissionStatusGraded
	s.Grade = &grade
	s.MaxGrade = &maxGrade
	s.Feedback = feedback
	s.FeedbackFileID = feedbackFileID
	s.GradedBy = &gradedBy
	s.GradedAt = &now
	cp := *s
	return &cp, nil
}

// --- storage fake ---

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]storage.ObjectInfo
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]storage.ObjectInfo)}
}

func (s *fakeStorage) put(key string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = storage.ObjectInfo{Size: size, ETag: "etag-" + key, LastModified: time.Now().UTC()}
}

func (s *fakeStorage) GeneratePresignedUploadURL(ctx context.Context, objectKey, contentType string, expires time.Duration) (string, error) {
	return "https://storage.test/upload/" + objectKey, nil
}

func (s *fakeStorage) GeneratePresignedDownloadURL(ctx context.Context, objectKey, filename, contentType string, expires time.Duration) (string, error) {
	return "https://storage.test/download/" + objectKey, nil
}

func (s *fakeStorage) ProbeObject(ctx context.Context, objectKey string) (*storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.objects[objectKey]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	cp := info
	return &cp, nil
}

func (s *fakeStorage) DeleteObject(ctx context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	return nil
}

// --- notifier fake ---

type sentNotification struct {
	Recipient string
	Subject   string
	Body      string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, recipientEmail, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Recipient: recipientEmail, Subject: subject, Body: body})
	return nil
}

func (n *recordingNotifier) to(email string) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Recipient == email {
			out = append(out, s)
		}
	}
	return out
}

// allowAll satisfies AccessChecker for tests that don't involve shares.
type allowAll struct{}

func (allowAll) ValidateAccess(ctx context.Context, fileID, requesterID primitive.ObjectID, required domain.SharePermission) (bool, error) {
	return true, nil
}
