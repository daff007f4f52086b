package service

import (
	"context"
	"errors"
	"regexp"

	"github.com/annazecevic/song-service/domain"
	"github.com/annazecevic/song-service/logger"
	"github.com/annazecevic/song-service/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrSongNotFound     = errors.New("Song not found")
	ErrRatingOutOfRange = errors.New("Rating must be between 1 and 5")
)

const (
	MinRating = 1
	MaxRating = 5
)

type SongService interface {
	ListSongs(ctx context.Context, page, perPage int) (*domain.SongPage, error)
	AverageDifficulty(ctx context.Context, level *int) (*domain.DifficultyStats, error)
	SearchSongs(ctx context.Context, query string) ([]*domain.Song, error)
	AddRating(ctx context.Context, songID primitive.ObjectID, value int) (primitive.ObjectID, error)
	SongRatingStats(ctx context.Context, songID primitive.ObjectID) (*domain.RatingStats, error)
}

type songService struct {
	songs          repository.SongRepository
	ratings        repository.RatingRepository
	defaultPerPage int
}

func NewSongService(songs repository.SongRepository, ratings repository.RatingRepository, defaultPerPage int) SongService {
	if defaultPerPage <= 0 {
		defaultPerPage = 10
	}
	return &songService{
		songs:          songs,
		ratings:        ratings,
		defaultPerPage: defaultPerPage,
	}
}

// ListSongs expects page >= 1. A perPage of zero or less selects the
// configured default.
func (s *songService) ListSongs(ctx context.Context, page, perPage int) (*domain.SongPage, error) {
	if perPage <= 0 {
		perPage = s.defaultPerPage
	}
	skip := int64(page-1) * int64(perPage)

	songs, err := s.songs.FindPage(ctx, skip, int64(perPage))
	if err != nil {
		return nil, err
	}

	total, err := s.songs.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.SongPage{
		Songs:   songs,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pageCount(total, int64(perPage)),
	}, nil
}

func pageCount(total, perPage int64) int64 {
	pages := total / perPage
	if total%perPage > 0 {
		pages++
	}
	return pages
}

func (s *songService) AverageDifficulty(ctx context.Context, level *int) (*domain.DifficultyStats, error) {
	return s.songs.AverageDifficulty(ctx, level)
}

// SearchSongs matches query literally, ignoring case, against artist and title.
func (s *songService) SearchSongs(ctx context.Context, query string) ([]*domain.Song, error) {
	if query == "" {
		return []*domain.Song{}, nil
	}
	return s.songs.Search(ctx, regexp.QuoteMeta(query))
}

func (s *songService) AddRating(ctx context.Context, songID primitive.ObjectID, value int) (primitive.ObjectID, error) {
	if value < MinRating || value > MaxRating {
		return primitive.NilObjectID, ErrRatingOutOfRange
	}

	if err := s.ensureSongExists(ctx, songID); err != nil {
		return primitive.NilObjectID, err
	}

	id, err := s.ratings.Create(ctx, &domain.Rating{
		SongID: songID,
		Value:  value,
	})
	if err != nil {
		return primitive.NilObjectID, err
	}

	logger.Info(logger.EventRatingCreated, "Rating created", logger.Fields(
		"rating_id", id.Hex(),
		"song_id", songID.Hex(),
		"value", value,
	))

	return id, nil
}

func (s *songService) SongRatingStats(ctx context.Context, songID primitive.ObjectID) (*domain.RatingStats, error) {
	if err := s.ensureSongExists(ctx, songID); err != nil {
		return nil, err
	}
	return s.ratings.StatsBySongID(ctx, songID)
}

func (s *songService) ensureSongExists(ctx context.Context, songID primitive.ObjectID) error {
	song, err := s.songs.FindByID(ctx, songID)
	if err != nil {
		return err
	}
	if song == nil {
		return ErrSongNotFound
	}
	return nil
}
