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

const submissionCollectionName = "submissions"

// mongoSubmissionRepository implements repository.SubmissionRepository
type mongoSubmissionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubmissionRepository creates a new submission repository backed by MongoDB.
func NewMongoSubmissionRepository(db *mongo.Database) repository.SubmissionRepository {
	return &mongoSubmissionRepository{
		collection: db.Collection(submissionCollectionName),
	}
}

// Create inserts a submission. The unique (assignmentId, studentId,
// attemptNumber) index is the conditional write that keeps attempt
// numbers collision-free: when two submissions race for the same slot,
// the second insert fails with a duplicate-key error which is surfaced
// as ErrConflict for the service to retry.
func (r *mongoSubmissionRepository) Create(ctx context.Context, submission *domain.Submission) (primitive.ObjectID, error) {
	if submission.AssignmentID == primitive.NilObjectID ||
		submission.StudentID == primitive.NilObjectID ||
		submission.FileID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("submission requires assignmentId, studentId, and fileId")
	}
	if submission.AttemptNumber < 1 {
		return primitive.NilObjectID, errors.New("attemptNumber must be at least 1")
	}

	submission.ID = primitive.NewObjectID()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, submission)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByID retrieves a submission by its ID.
func (r *mongoSubmissionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error) {
	var submission domain.Submission
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&submission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// GetByAssignmentID retrieves all submissions for an assignment.
func (r *mongoSubmissionRepository) GetByAssignmentID(ctx context.Context, assignmentID primitive.ObjectID) ([]domain.Submission, error) {
	filter := bson.M{"assignmentId": assignmentID}
	findOptions := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var submissions []domain.Submission
	if err = cursor.All(ctx, &submissions); err != nil {
		return nil, err
	}
	return submissions, nil
}

// GetByAssignmentAndStudent retrieves one student's attempts, ordered
// by attempt number.
func (r *mongoSubmissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID primitive.ObjectID) ([]domain.Submission, error) {
	filter := bson.M{"assignmentId": assignmentID, "studentId": studentID}
	findOptions := options.Find().SetSort(bson.D{{Key: "attemptNumber", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var submissions []domain.Submission
	if err = cursor.All(ctx, &submissions); err != nil {
		return nil, err
	}
	return submissions, nil
}

// ApplyGrade overwrites the grading fields and marks the submission
// graded. Invoking it again replaces the previous grade.
func (r *mongoSubmissionRepository) ApplyGrade(ctx context.Context, id primitive.ObjectID, grade, maxGrade float64, feedback string, feedbackFileID *primitive.ObjectID, gradedBy primitive.ObjectID) (*domain.Submission, error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":   domain.SubmissionStatusGraded,
		"grade":    grade,
		"maxGrade": maxGrade,
		"feedback": feedback,
		"gradedBy": gradedBy,
		"gradedAt": now,
	}
	if feedbackFileID != nil {
		set["feedbackFileId"] = *feedbackFileID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var submission domain.Submission
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&submission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// EnsureSubmissionIndexes creates necessary indexes for the submissions collection.
func EnsureSubmissionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Attempt-number uniqueness per (assignment, student)
			Keys: bson.D{
				{Key: "assignmentId", Value: 1},
				{Key: "studentId", Value: 1},
				{Key: "attemptNumber", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "assignmentId", Value: 1}, {Key: "submittedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			// Grading-queue queries by state and submission time
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "submittedAt", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
