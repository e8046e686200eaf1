package service

import (
	"campuscloud/backend/internal/config"
	"campuscloud/backend/internal/domain"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSizeBytes:  10 * 1024 * 1024,
		UploadURLExpiry:   5 * time.Minute,
		DownloadURLExpiry: 15 * time.Minute,
		AllowedTypes:      []string{"application/pdf", "text/plain", "image/png"},
	}
}

func newFileServiceForTest() (FileService, *fakeFileRepo, *fakeStorage) {
	fileRepo := newFakeFileRepo()
	store := newFakeStorage()
	svc := NewFileService(fileRepo, store, allowAll{}, testUploadConfig(), "campus-files")
	return svc, fileRepo, store
}

func TestReserveUpload(t *testing.T) {
	ctx := context.Background()
	owner := primitive.NewObjectID()

	t.Run("creates a reserved record and upload URL", func(t *testing.T) {
		svc, fileRepo, _ := newFileServiceForTest()

		res, err := svc.ReserveUpload(ctx, owner, "essay.pdf", "application/pdf", 2048, "final draft", []string{"essay"}, nil)
		require.NoError(t, err)
		assert.Contains(t, res.UploadURL, res.StorageKey)
		assert.True(t, strings.HasPrefix(res.StorageKey, "users/"+owner.Hex()+"/files/"))

		fileID, err := primitive.ObjectIDFromHex(res.FileID)
		require.NoError(t, err)
		stored, err := fileRepo.GetByID(ctx, fileID)
		require.NoError(t, err)
		assert.Equal(t, domain.FileStatusReserved, stored.Status)
		assert.Equal(t, int64(2048), stored.Size)
		assert.Equal(t, "campus-files", stored.StorageBucket)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		svc, _, _ := newFileServiceForTest()

		_, err := svc.ReserveUpload(ctx, owner, "", "application/pdf", 100, "", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidFilename)

		_, err = svc.ReserveUpload(ctx, owner, strings.Repeat("x", 256), "application/pdf", 100, "", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidFilename)

		_, err = svc.ReserveUpload(ctx, owner, "virus.exe", "application/x-msdownload", 100, "", nil, nil)
		assert.ErrorIs(t, err, ErrContentTypeNotAllowed)

		_, err = svc.ReserveUpload(ctx, owner, "empty.pdf", "application/pdf", 0, "", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidFileSize)

		_, err = svc.ReserveUpload(ctx, owner, "huge.pdf", "application/pdf", 11*1024*1024, "", nil, nil)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("distinct reservations get distinct storage keys", func(t *testing.T) {
		svc, _, _ := newFileServiceForTest()

		a, err := svc.ReserveUpload(ctx, owner, "same.pdf", "application/pdf", 100, "", nil, nil)
		require.NoError(t, err)
		b, err := svc.ReserveUpload(ctx, owner, "same.pdf", "application/pdf", 100, "", nil, nil)
		require.NoError(t, err)
		assert.NotEqual(t, a.StorageKey, b.StorageKey)
	})
}

func reserve(t *testing.T, svc FileService, owner primitive.ObjectID, size int64) primitive.ObjectID {
	t.Helper()
	res, err := svc.ReserveUpload(context.Background(), owner, "work.pdf", "application/pdf", size, "", nil, nil)
	require.NoError(t, err)
	id, err := primitive.ObjectIDFromHex(res.FileID)
	require.NoError(t, err)
	return id
}

func TestCompleteUpload(t *testing.T) {
	ctx := context.Background()
	owner := primitive.NewObjectID()

	t.Run("verifies the object and activates the record", func(t *testing.T) {
		svc, fileRepo, store := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 2048)
		stored, _ := fileRepo.GetByID(ctx, fileID)
		store.put(stored.StorageKey, 2048)

		file, err := svc.CompleteUpload(ctx, fileID, owner, stored.StorageKey, "sha256:abc")
		require.NoError(t, err)
		assert.Equal(t, domain.FileStatusActive, file.Status)
		assert.Equal(t, "sha256:abc", file.Checksum)
	})

	t.Run("uses the storage ETag when no checksum is claimed", func(t *testing.T) {
		svc, fileRepo, store := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 2048)
		stored, _ := fileRepo.GetByID(ctx, fileID)
		store.put(stored.StorageKey, 2048)

		file, err := svc.CompleteUpload(ctx, fileID, owner, "", "")
		require.NoError(t, err)
		assert.Equal(t, "etag-"+stored.StorageKey, file.Checksum)
	})

	t.Run("unknown file", func(t *testing.T) {
		svc, _, _ := newFileServiceForTest()
		_, err := svc.CompleteUpload(ctx, primitive.NewObjectID(), owner, "", "")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		svc, _, _ := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 2048)
		_, err := svc.CompleteUpload(ctx, fileID, primitive.NewObjectID(), "", "")
		assert.ErrorIs(t, err, ErrFileAccessDenied)
	})

	t.Run("object missing from storage", func(t *testing.T) {
		svc, _, _ := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 2048)
		_, err := svc.CompleteUpload(ctx, fileID, owner, "", "")
		assert.ErrorIs(t, err, ErrUploadNotFound)
	})

	t.Run("size outside tolerance is rejected", func(t *testing.T) {
		svc, fileRepo, store := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 2048)
		stored, _ := fileRepo.GetByID(ctx, fileID)
		store.put(stored.StorageKey, 2048+1001)

		_, err := svc.CompleteUpload(ctx, fileID, owner, "", "")
		assert.ErrorIs(t, err, ErrSizeMismatch)

		// record stays reserved so the client can retry
		after, _ := fileRepo.GetByID(ctx, fileID)
		assert.Equal(t, domain.FileStatusReserved, after.Status)
	})

	t.Run("size within tolerance is accepted and recorded", func(t *testing.T) {
		svc, fileRepo, store := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 2048)
		stored, _ := fileRepo.GetByID(ctx, fileID)
		store.put(stored.StorageKey, 2048+999)

		file, err := svc.CompleteUpload(ctx, fileID, owner, "", "")
		require.NoError(t, err)
		assert.Equal(t, int64(2048+999), file.Size)
	})

	t.Run("wrong claimed storage key is rejected", func(t *testing.T) {
		svc, _, _ := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 2048)
		_, err := svc.CompleteUpload(ctx, fileID, owner, "users/other/files/stolen", "")
		assert.ErrorIs(t, err, ErrStorageKeyMismatch)
	})

	t.Run("repeat completion is idempotent", func(t *testing.T) {
		svc, fileRepo, store := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 2048)
		stored, _ := fileRepo.GetByID(ctx, fileID)
		store.put(stored.StorageKey, 2048)

		first, err := svc.CompleteUpload(ctx, fileID, owner, "", "")
		require.NoError(t, err)
		second, err := svc.CompleteUpload(ctx, fileID, owner, "", "")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, domain.FileStatusActive, second.Status)
	})

	t.Run("failed record cannot be completed", func(t *testing.T) {
		svc, _, _ := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 2048)
		require.NoError(t, svc.ReportUploadFailed(ctx, fileID, owner))

		_, err := svc.CompleteUpload(ctx, fileID, owner, "", "")
		assert.ErrorIs(t, err, ErrFileNotReserved)
	})
}

// Racing completion calls must promote the record exactly once, and
// every caller must come away with the same active record.
func TestCompleteUploadConcurrent(t *testing.T) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	svc, fileRepo, store := newFileServiceForTest()

	fileID := reserve(t, svc, owner, 4096)
	stored, _ := fileRepo.GetByID(ctx, fileID)
	store.put(stored.StorageKey, 4096)

	const n = 32
	results := make([]*domain.File, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CompleteUpload(ctx, fileID, owner, "", "")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		require.NotNil(t, results[i])
		assert.Equal(t, domain.FileStatusActive, results[i].Status)
		assert.Equal(t, fileID, results[i].ID)
	}

	final, err := fileRepo.GetByID(ctx, fileID)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusActive, final.Status)
}

func TestReportUploadFailed(t *testing.T) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	svc, fileRepo, _ := newFileServiceForTest()

	fileID := reserve(t, svc, owner, 2048)
	require.NoError(t, svc.ReportUploadFailed(ctx, fileID, owner))

	stored, _ := fileRepo.GetByID(ctx, fileID)
	assert.Equal(t, domain.FileStatusFailed, stored.Status)

	// only reserved records can be failed
	assert.ErrorIs(t, svc.ReportUploadFailed(ctx, fileID, owner), ErrFileNotReserved)
	assert.ErrorIs(t, svc.ReportUploadFailed(ctx, fileID, primitive.NewObjectID()), ErrFileAccessDenied)
}

func TestGetDownloadLink(t *testing.T) {
	ctx := context.Background()
	owner := primitive.NewObjectID()

	t.Run("owner gets a link and the counter moves", func(t *testing.T) {
		svc, fileRepo, store := newFileServiceForTest()
		file := fileRepo.addActive(owner, "notes.pdf", "application/pdf", 512)
		store.put(file.StorageKey, 512)

		link, err := svc.GetDownloadLink(ctx, file.ID, owner)
		require.NoError(t, err)
		assert.Contains(t, link.DownloadURL, file.StorageKey)
		assert.Equal(t, "notes.pdf", link.Filename)
		assert.Equal(t, int64(900), link.ExpiresIn)

		stored, _ := fileRepo.GetByID(ctx, file.ID)
		assert.Equal(t, int64(1), stored.DownloadCount)
	})

	t.Run("reserved file has no link", func(t *testing.T) {
		svc, _, _ := newFileServiceForTest()
		fileID := reserve(t, svc, owner, 512)
		_, err := svc.GetDownloadLink(ctx, fileID, owner)
		assert.ErrorIs(t, err, ErrFileNotActive)
	})

	t.Run("non-owner is denied when no grant exists", func(t *testing.T) {
		fileRepo := newFakeFileRepo()
		shareRepo := newFakeShareRepo()
		userRepo := newFakeUserRepo()
		shareSvc := NewShareService(shareRepo, fileRepo, userRepo, &recordingNotifier{})
		svc := NewFileService(fileRepo, newFakeStorage(), shareSvc, testUploadConfig(), "campus-files")

		file := fileRepo.addActive(owner, "secret.pdf", "application/pdf", 512)
		_, err := svc.GetDownloadLink(ctx, file.ID, primitive.NewObjectID())
		assert.ErrorIs(t, err, ErrFileAccessDenied)
	})
}

func TestListAndDeleteFiles(t *testing.T) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	svc, fileRepo, _ := newFileServiceForTest()

	a := fileRepo.addActive(owner, "a.pdf", "application/pdf", 10)
	fileRepo.addActive(owner, "b.pdf", "application/pdf", 20)
	fileRepo.addActive(primitive.NewObjectID(), "other.pdf", "application/pdf", 30)

	files, err := svc.ListMyFiles(ctx, owner, 0)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, svc.DeleteFile(ctx, a.ID, owner))
	// deleting twice is a no-op
	require.NoError(t, svc.DeleteFile(ctx, a.ID, owner))

	files, err = svc.ListMyFiles(ctx, owner, 0)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "b.pdf", files[0].Filename)

	assert.ErrorIs(t, svc.DeleteFile(ctx, files[0].ID, primitive.NewObjectID()), ErrFileAccessDenied)
}
