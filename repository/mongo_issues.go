package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"civictrack-be/geo"
	"civictrack-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoIssues struct {
	collection *mongo.Collection
}

func NewMongoIssueRepository(db *mongo.Database) IssueRepository {
	return &mongoIssues{collection: db.Collection("issues")}
}

func issueFilterDoc(f IssueFilter) bson.M {
	filter := bson.M{}

	if !f.IncludeHidden {
		filter["isHidden"] = false
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.ReporterID != nil {
		filter["reporterId"] = *f.ReporterID
	}
	if f.FlaggedOnly {
		filter["flagCount"] = bson.M{"$gt": 0}
	}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return filter
}

func sortDoc(sort IssueSort) bson.D {
	switch sort {
	case SortOldest:
		return bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	case SortMostFlagged:
		return bson.D{{Key: "flagCount", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	}
}

func (r *mongoIssues) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (r *mongoIssues) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find issue %s: %w", id.Hex(), err)
	}
	return &issue, nil
}

func (r *mongoIssues) Find(ctx context.Context, f IssueFilter, sort IssueSort, page Page) ([]models.Issue, int64, error) {
	filter := issueFilterDoc(f)

	totalCount, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	findOptions := options.Find().
		SetSort(sortDoc(sort)).
		SetSkip(page.Skip())
	if page.Limit > 0 {
		findOptions.SetLimit(int64(page.Limit))
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, fmt.Errorf("decode issues: %w", err)
	}
	return issues, totalCount, nil
}

func (r *mongoIssues) FindWithinBoundingBox(ctx context.Context, box geo.BoundingBox, f IssueFilter) ([]models.Issue, error) {
	filter := issueFilterDoc(f)
	filter["latitude"] = bson.M{"$gte": box.MinLat, "$lte": box.MaxLat}

	switch len(box.Longitudes) {
	case 0:
	case 1:
		filter["longitude"] = bson.M{"$gte": box.Longitudes[0].Min, "$lte": box.Longitudes[0].Max}
	default:
		ranges := make([]bson.M, 0, len(box.Longitudes))
		for _, lr := range box.Longitudes {
			ranges = append(ranges, bson.M{"longitude": bson.M{"$gte": lr.Min, "$lte": lr.Max}})
		}
		// A search filter may already occupy $or.
		and := []bson.M{{"$or": ranges}}
		if existing, ok := filter["$or"]; ok {
			and = append(and, bson.M{"$or": existing})
			delete(filter, "$or")
		}
		filter["$and"] = and
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find issues in bounding box: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	return issues, nil
}

func (r *mongoIssues) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus) (*models.Issue, error) {
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update issue status: %w", err)
	}
	return &issue, nil
}

func (r *mongoIssues) AtomicIncrementFlagCount(ctx context.Context, id primitive.ObjectID) (FlagTally, error) {
	update := bson.M{
		"$inc": bson.M{"flagCount": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"flagCount": 1, "isHidden": 1})

	var result FlagTally
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return FlagTally{}, ErrNotFound
		}
		return FlagTally{}, wrapTxError(err, "increment flag count")
	}
	return result, nil
}

func (r *mongoIssues) SetHidden(ctx context.Context, id primitive.ObjectID, hidden bool) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"isHidden": hidden, "updatedAt": time.Now()},
	})
	if err != nil {
		return wrapTxError(err, "set issue hidden")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoIssues) Stats(ctx context.Context, days []time.Time, topFlagged int) (*IssueStats, error) {
	stats := &IssueStats{}

	categoryPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$category",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
		{"$sort": bson.M{"name": 1}},
	}

	categoryCursor, err := r.collection.Aggregate(ctx, categoryPipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate categories: %w", err)
	}
	defer categoryCursor.Close(ctx)

	stats.ByCategory = []models.CategoryCount{}
	if err := categoryCursor.All(ctx, &stats.ByCategory); err != nil {
		return nil, fmt.Errorf("decode category analytics: %w", err)
	}

	stats.Daily = make([]int64, len(days))
	for i, day := range days {
		count, err := r.collection.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{
				"$gte": day,
				"$lt":  day.Add(24 * time.Hour),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("count issues for %s: %w", day.Format("2006-01-02"), err)
		}
		stats.Daily[i] = count
	}

	findOptions := options.Find().
		SetSort(sortDoc(SortMostFlagged)).
		SetLimit(int64(topFlagged)).
		SetProjection(bson.M{"_id": 1, "title": 1, "category": 1, "flagCount": 1, "isHidden": 1})

	cursor, err := r.collection.Find(ctx, bson.M{"flagCount": bson.M{"$gt": 0}}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find most flagged issues: %w", err)
	}
	defer cursor.Close(ctx)

	stats.TopFlagged = []models.FlaggedIssue{}
	if err := cursor.All(ctx, &stats.TopFlagged); err != nil {
		return nil, fmt.Errorf("decode most flagged issues: %w", err)
	}

	if stats.Total, err = r.collection.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, fmt.Errorf("count issues: %w", err)
	}
	stats.Open, err = r.collection.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []models.IssueStatus{models.Reported, models.InProgress}},
	})
	if err != nil {
		return nil, fmt.Errorf("count open issues: %w", err)
	}
	if stats.Hidden, err = r.collection.CountDocuments(ctx, bson.M{"isHidden": true}); err != nil {
		return nil, fmt.Errorf("count hidden issues: %w", err)
	}

	return stats, nil
}
