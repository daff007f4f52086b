package domain

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Song is a catalog entry. Songs read from the store keep their whole stored
// document, so fields outside the catalog attributes and values of any BSON
// type (released is opaque) survive into the JSON response.
type Song struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Artist     string             `bson:"artist" json:"artist"`
	Title      string             `bson:"title" json:"title"`
	Difficulty float64            `bson:"difficulty" json:"difficulty"`
	Level      int                `bson:"level" json:"level"`
	Released   interface{}        `bson:"released" json:"released"`

	doc bson.M
}

type plainSong Song

// UnmarshalBSON never rejects a document for the type of a single field:
// attributes with an unexpected type are left at their zero value.
func (s *Song) UnmarshalBSON(data []byte) error {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}

	*s = Song{doc: doc}
	s.ID, _ = doc["_id"].(primitive.ObjectID)
	s.Artist, _ = doc["artist"].(string)
	s.Title, _ = doc["title"].(string)
	s.Difficulty, _ = number(doc["difficulty"])
	if level, ok := number(doc["level"]); ok {
		s.Level = int(level)
	}
	s.Released = doc["released"]
	return nil
}

// MarshalJSON renders the stored document as is when there is one.
func (s Song) MarshalJSON() ([]byte, error) {
	if s.doc != nil {
		return json.Marshal(jsonValue(s.doc))
	}
	return json.Marshal(plainSong(s))
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// jsonValue turns nested BSON containers into plain maps and slices.
func jsonValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = jsonValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = jsonValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = jsonValue(e)
		}
		return out
	default:
		return v
	}
}

// SongPage is one page of the catalog plus the metadata needed to walk it.
type SongPage struct {
	Songs   []*Song `json:"songs"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
	Total   int64   `json:"total"`
	Pages   int64   `json:"pages"`
}

// DifficultyStats has a nil average when no song matched.
type DifficultyStats struct {
	AverageDifficulty *float64 `json:"average_difficulty"`
	Count             int64    `json:"count"`
}
