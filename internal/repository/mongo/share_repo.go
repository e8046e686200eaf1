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

const shareCollectionName = "shares"

// mongoShareRepository implements repository.ShareRepository
type mongoShareRepository struct {
	collection *mongo.Collection
}

// NewMongoShareRepository creates a new share repository backed by MongoDB.
func NewMongoShareRepository(db *mongo.Database) repository.ShareRepository {
	return &mongoShareRepository{
		collection: db.Collection(shareCollectionName),
	}
}

// Upsert creates a grant, or overwrites the existing grant for the same
// (fileId, recipientId) pair so a file is never shared twice with the
// same recipient.
func (r *mongoShareRepository) Upsert(ctx context.Context, share *domain.Share) (primitive.ObjectID, error) {
	if share.FileID == primitive.NilObjectID || share.RecipientID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("share requires fileId and recipientId")
	}

	if share.ID == primitive.NilObjectID {
		share.ID = primitive.NewObjectID()
	}
	share.SharedAt = time.Now().UTC()

	filter := bson.M{"fileId": share.FileID, "recipientId": share.RecipientID}
	update := bson.M{
		"$set": bson.M{
			"ownerId":        share.OwnerID,
			"recipientEmail": share.RecipientEmail,
			"permission":     share.Permission,
			"status":         share.Status,
			"message":        share.Message,
			"sharedAt":       share.SharedAt,
			"expiresAt":      share.ExpiresAt,
			"revokedAt":      nil,
			"accessCount":    int64(0),
		},
		"$setOnInsert": bson.M{"_id": share.ID},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored domain.Share
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if err != nil {
		return primitive.NilObjectID, err
	}
	share.ID = stored.ID
	return stored.ID, nil
}

// GetByID retrieves a share by its ID.
func (r *mongoShareRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Share, error) {
	var share domain.Share
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&share)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &share, nil
}

// GetByFileAndRecipient retrieves the grant for a (file, recipient) pair.
func (r *mongoShareRepository) GetByFileAndRecipient(ctx context.Context, fileID, recipientID primitive.ObjectID) (*domain.Share, error) {
	var share domain.Share
	filter := bson.M{"fileId": fileID, "recipientId": recipientID}

	err := r.collection.FindOne(ctx, filter).Decode(&share)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &share, nil
}

// GetByFileID retrieves all grants on a file.
func (r *mongoShareRepository) GetByFileID(ctx context.Context, fileID primitive.ObjectID) ([]domain.Share, error) {
	filter := bson.M{"fileId": fileID}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var shares []domain.Share
	if err = cursor.All(ctx, &shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// GetByRecipientID retrieves grants naming the given recipient.
func (r *mongoShareRepository) GetByRecipientID(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]domain.Share, error) {
	filter := bson.M{"recipientId": recipientID}
	findOptions := options.Find().SetSort(bson.D{{Key: "sharedAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var shares []domain.Share
	if err = cursor.All(ctx, &shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// Revoke marks the grant revoked. Counters are left untouched.
func (r *mongoShareRepository) Revoke(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"status":    domain.ShareStatusRevoked,
			"revokedAt": now,
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

// RecordAccess bumps the access counter and last-accessed time.
func (r *mongoShareRepository) RecordAccess(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$inc": bson.M{"accessCount": 1},
		"$set": bson.M{"lastAccessedAt": time.Now().UTC()},
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

// EnsureShareIndexes creates necessary indexes for the shares collection.
// The TTL index physically reclaims expired grants; access checks never
// rely on it and always compare expiresAt against the wall clock.
func EnsureShareIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fileId", Value: 1}, {Key: "recipientId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "recipientId", Value: 1}, {Key: "sharedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
