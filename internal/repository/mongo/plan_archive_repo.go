package mongo

import (
	"alcyxob/neuralfit/internal/domain"
	"alcyxob/neuralfit/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planArchiveCollectionName = "plan_archives"

// mongoPlanArchiveRepository implements repository.PlanArchiveRepository
type mongoPlanArchiveRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanArchiveRepository creates a new PlanArchive repository backed by MongoDB.
func NewMongoPlanArchiveRepository(db *mongo.Database) repository.PlanArchiveRepository {
	return &mongoPlanArchiveRepository{
		collection: db.Collection(planArchiveCollectionName),
	}
}

// Create inserts archive metadata into the database.
func (r *mongoPlanArchiveRepository) Create(ctx context.Context, archive *domain.PlanArchive) (primitive.ObjectID, error) {
	if archive.UserID == primitive.NilObjectID || archive.PlanID == "" || archive.S3ObjectKey == "" {
		return primitive.NilObjectID, errors.New("plan archive requires userId, planId, and s3ObjectKey")
	}

	archive.ID = primitive.NewObjectID()
	archive.ArchivedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, archive)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrAlreadyExists
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByPlanID retrieves the archive of one of the user's plans.
func (r *mongoPlanArchiveRepository) GetByPlanID(ctx context.Context, userID primitive.ObjectID, planID string) (*domain.PlanArchive, error) {
	var archive domain.PlanArchive
	filter := bson.M{"userId": userID, "planId": planID}

	err := r.collection.FindOne(ctx, filter).Decode(&archive)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &archive, nil
}

// ListByUser returns the user's archives, newest first.
func (r *mongoPlanArchiveRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanArchive, error) {
	archives := []domain.PlanArchive{}
	findOptions := options.Find().SetSort(bson.D{{Key: "archivedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &archives); err != nil {
		return nil, err
	}
	return archives, nil
}

// EnsurePlanArchiveIndexes creates necessary indexes for the plan_archives collection.
func EnsurePlanArchiveIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "planId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "archivedAt", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := db.Collection(planArchiveCollectionName).Indexes().CreateMany(ctx, indexes)
	return err
}
