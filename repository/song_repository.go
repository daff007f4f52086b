package repository

import (
	"context"
	"fmt"

	"github.com/annazecevic/song-service/domain"
	"github.com/annazecevic/song-service/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SongsCollection = "songs"

// songListProjection keeps list payloads small on large catalogs.
var songListProjection = bson.D{
	{Key: "artist", Value: 1},
	{Key: "title", Value: 1},
	{Key: "difficulty", Value: 1},
	{Key: "level", Value: 1},
	{Key: "released", Value: 1},
}

type SongRepository interface {
	FindPage(ctx context.Context, skip, limit int64) ([]*domain.Song, error)
	Count(ctx context.Context) (int64, error)
	AverageDifficulty(ctx context.Context, level *int) (*domain.DifficultyStats, error)
	Search(ctx context.Context, pattern string) ([]*domain.Song, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Song, error)

	InsertMany(ctx context.Context, docs []interface{}) (int, error)
	EnsureIndexes(ctx context.Context) error
}

type songRepository struct {
	collection *mongo.Collection
}

func NewSongRepository(db *mongo.Database) SongRepository {
	return &songRepository{collection: db.Collection(SongsCollection)}
}

func (r *songRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "artist", Value: "text"}, {Key: "title", Value: "text"}},
		},
		{
			Keys: bson.D{{Key: "level", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create song indexes: %w", err)
	}
	return nil
}

func (r *songRepository) FindPage(ctx context.Context, skip, limit int64) ([]*domain.Song, error) {
	opts := options.Find().
		SetProjection(songListProjection).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		logger.Error(logger.EventDBError, "Error listing songs", logger.Fields(
			"skip", skip,
			"limit", limit,
			"error", err.Error(),
		))
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	defer cursor.Close(ctx)

	songs := []*domain.Song{}
	if err := cursor.All(ctx, &songs); err != nil {
		return nil, fmt.Errorf("failed to decode songs: %w", err)
	}
	return songs, nil
}

func (r *songRepository) Count(ctx context.Context) (int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return total, nil
}

func (r *songRepository) AverageDifficulty(ctx context.Context, level *int) (*domain.DifficultyStats, error) {
	match := bson.D{}
	if level != nil {
		match = bson.D{{Key: "level", Value: *level}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg_difficulty", Value: bson.D{{Key: "$avg", Value: "$difficulty"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		logger.Error(logger.EventDBError, "Error aggregating song difficulty", logger.Fields("error", err.Error()))
		return nil, fmt.Errorf("failed to aggregate difficulty: %w", err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		AvgDifficulty *float64 `bson:"avg_difficulty"`
		Count         int64    `bson:"count"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation result: %w", err)
	}

	if len(result) == 0 {
		return &domain.DifficultyStats{}, nil
	}
	return &domain.DifficultyStats{
		AverageDifficulty: result[0].AvgDifficulty,
		Count:             result[0].Count,
	}, nil
}

// Search matches pattern case-insensitively against artist or title. The
// pattern is used as a regular expression as is; callers escape user input.
func (r *songRepository) Search(ctx context.Context, pattern string) ([]*domain.Song, error) {
	regex := primitive.Regex{Pattern: pattern, Options: "i"}
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "artist", Value: regex}},
		bson.D{{Key: "title", Value: regex}},
	}}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		logger.Error(logger.EventDBError, "Error searching songs", logger.Fields("error", err.Error()))
		return nil, fmt.Errorf("failed to search songs: %w", err)
	}
	defer cursor.Close(ctx)

	songs := []*domain.Song{}
	if err := cursor.All(ctx, &songs); err != nil {
		return nil, fmt.Errorf("failed to decode songs: %w", err)
	}
	return songs, nil
}

func (r *songRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Song, error) {
	var song domain.Song
	err := r.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&song)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		logger.Error(logger.EventDBError, "Error fetching song", logger.Fields(
			"song_id", id.Hex(),
			"error", err.Error(),
		))
		return nil, fmt.Errorf("failed to fetch song: %w", err)
	}
	return &song, nil
}

func (r *songRepository) InsertMany(ctx context.Context, docs []interface{}) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert songs: %w", err)
	}
	return len(result.InsertedIDs), nil
}
