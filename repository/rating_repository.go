package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/annazecevic/song-service/domain"
	"github.com/annazecevic/song-service/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const RatingsCollection = "ratings"

type RatingRepository interface {
	Create(ctx context.Context, rating *domain.Rating) (primitive.ObjectID, error)
	StatsBySongID(ctx context.Context, songID primitive.ObjectID) (*domain.RatingStats, error)

	EnsureIndexes(ctx context.Context) error
}

type ratingRepository struct {
	collection *mongo.Collection
}

func NewRatingRepository(db *mongo.Database) RatingRepository {
	return &ratingRepository{collection: db.Collection(RatingsCollection)}
}

func (r *ratingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "song_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create rating indexes: %w", err)
	}
	return nil
}

func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) (primitive.ObjectID, error) {
	if rating.ID.IsZero() {
		rating.ID = primitive.NewObjectID()
	}
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, rating)
	if err != nil {
		logger.Error(logger.EventDBError, "Error creating rating", logger.Fields(
			"song_id", rating.SongID.Hex(),
			"error", err.Error(),
		))
		return primitive.NilObjectID, fmt.Errorf("failed to create rating: %w", err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected rating id type %T", result.InsertedID)
	}
	return id, nil
}

func (r *ratingRepository) StatsBySongID(ctx context.Context, songID primitive.ObjectID) (*domain.RatingStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "song_id", Value: songID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg_rating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "min_rating", Value: bson.D{{Key: "$min", Value: "$rating"}}},
			{Key: "max_rating", Value: bson.D{{Key: "$max", Value: "$rating"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		logger.Error(logger.EventDBError, "Error aggregating ratings", logger.Fields(
			"song_id", songID.Hex(),
			"error", err.Error(),
		))
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		AvgRating *float64 `bson:"avg_rating"`
		MinRating *int     `bson:"min_rating"`
		MaxRating *int     `bson:"max_rating"`
		Count     int64    `bson:"count"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation result: %w", err)
	}

	if len(result) == 0 {
		return &domain.RatingStats{}, nil
	}
	return &domain.RatingStats{
		Average: result[0].AvgRating,
		Lowest:  result[0].MinRating,
		Highest: result[0].MaxRating,
		Count:   result[0].Count,
	}, nil
}
