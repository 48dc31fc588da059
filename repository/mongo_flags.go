package repository

import (
	"context"
	"fmt"

	"civictrack-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoFlags struct {
	collection *mongo.Collection
}

// NewMongoFlagRepository relies on the unique (issueId, flaggedBy) index
// created by config.EnsureIndexes to reject duplicate flags.
func NewMongoFlagRepository(db *mongo.Database) FlagRepository {
	return &mongoFlags{collection: db.Collection("flags")}
}

func (r *mongoFlags) Insert(ctx context.Context, flag *models.Flag) error {
	if flag.ID.IsZero() {
		flag.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, flag); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return wrapTxError(err, "insert flag")
	}
	return nil
}

func (r *mongoFlags) Exists(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"issueId":   issueID,
		"flaggedBy": userID,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check existing flag: %w", err)
	}
	return count > 0, nil
}

func (r *mongoFlags) ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Flag, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"issueId": issueID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find flags: %w", err)
	}
	defer cursor.Close(ctx)

	flags := []models.Flag{}
	if err := cursor.All(ctx, &flags); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	return flags, nil
}

func (r *mongoFlags) Count(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count flags: %w", err)
	}
	return count, nil
}
