package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Rating struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	SongID    primitive.ObjectID `bson:"song_id" json:"song_id"`
	Value     int                `bson:"rating" json:"rating"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// RatingStats summarises the ratings of one song. All pointers are nil when
// the song has not been rated yet.
type RatingStats struct {
	Average *float64 `json:"average"`
	Lowest  *int     `json:"lowest"`
	Highest *int     `json:"highest"`
	Count   int64    `json:"count"`
}
