package dto

import "github.com/annazecevic/song-service/domain"

type AddRatingResponse struct {
	Success  bool   `json:"success"`
	RatingID string `json:"rating_id"`
}

type SearchResponse struct {
	Songs []*domain.Song `json:"songs"`
	Count int            `json:"count"`
}
