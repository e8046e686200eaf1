package mongo

import (
	"campuscloud/backend/internal/domain"
	"campuscloud/backend/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const fileCollectionName = "files"

// mongoFileRepository implements repository.FileRepository
type mongoFileRepository struct {
	collection *mongo.Collection
}

// NewMongoFileRepository creates a new file metadata repository backed by MongoDB.
func NewMongoFileRepository(db *mongo.Database) repository.FileRepository {
	return &mongoFileRepository{
		collection: db.Collection(fileCollectionName),
	}
}

// Create inserts new file metadata in reserved state.
func (r *mongoFileRepository) Create(ctx context.Context, file *domain.File) (primitive.ObjectID, error) {
	if file.OwnerID == primitive.NilObjectID || file.StorageKey == "" {
		return primitive.NilObjectID, errors.New("file requires ownerId and storageKey")
	}

	if file.ID == primitive.NilObjectID {
		file.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	file.UploadedAt = now
	file.LastModified = now

	result, err := r.collection.InsertOne(ctx, file)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByID retrieves file metadata by its ID.
func (r *mongoFileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.File, error) {
	var file domain.File
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&file)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// GetByOwnerID retrieves the owner's files, newest first. Soft-deleted
// records are excluded.
func (r *mongoFileRepository) GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]domain.File, error) {
	filter := bson.M{
		"ownerId": ownerID,
		"status":  bson.M{"$ne": domain.FileStatusDeleted},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []domain.File
	if err = cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// PromoteToActive performs the conditional reserved -> active
// transition. The status filter is the compare-and-swap: when two
// completion calls race, exactly one matches the reserved document and
// the loser gets ErrConflict.
func (r *mongoFileRepository) PromoteToActive(ctx context.Context, id primitive.ObjectID, size int64, checksum string) error {
	filter := bson.M{"_id": id, "status": domain.FileStatusReserved}
	update := bson.M{
		"$set": bson.M{
			"status":       domain.FileStatusActive,
			"size":         size,
			"checksum":     checksum,
			"scanStatus":   "pending",
			"lastModified": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

// UpdateStatus sets the lifecycle status unconditionally.
func (r *mongoFileRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.FileStatus) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"status":       status,
			"lastModified": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// IncrementDownloadCount bumps the download counter.
func (r *mongoFileRepository) IncrementDownloadCount(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$inc": bson.M{"downloadCount": 1}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureFileIndexes creates necessary indexes for the files collection.
func EnsureFileIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Owner listing, newest first
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "uploadedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			// Operational queries by lifecycle state and age (cleanup of
			// stale reserved records)
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "uploadedAt", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "storageKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
