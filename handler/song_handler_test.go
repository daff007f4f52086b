package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/annazecevic/song-service/domain"
	"github.com/annazecevic/song-service/metrics"
	"github.com/annazecevic/song-service/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockService struct {
	ListSongsResp  *domain.SongPage
	AverageResp    *domain.DifficultyStats
	SearchResp     []*domain.Song
	AddRatingResp  primitive.ObjectID
	StatsResp      *domain.RatingStats
	Err            error
	knownSong      primitive.ObjectID
	calls          int
	gotPage        int
	gotPerPage     int
	gotLevel       *int
	gotQuery       string
	gotSongID      primitive.ObjectID
	gotRatingValue int
}

func (m *mockService) ListSongs(ctx context.Context, page, perPage int) (*domain.SongPage, error) {
	m.calls++
	m.gotPage, m.gotPerPage = page, perPage
	return m.ListSongsResp, m.Err
}

func (m *mockService) AverageDifficulty(ctx context.Context, level *int) (*domain.DifficultyStats, error) {
	m.calls++
	m.gotLevel = level
	return m.AverageResp, m.Err
}

func (m *mockService) SearchSongs(ctx context.Context, query string) ([]*domain.Song, error) {
	m.calls++
	m.gotQuery = query
	return m.SearchResp, m.Err
}

func (m *mockService) AddRating(ctx context.Context, songID primitive.ObjectID, value int) (primitive.ObjectID, error) {
	m.calls++
	m.gotSongID, m.gotRatingValue = songID, value
	if m.Err != nil {
		return primitive.NilObjectID, m.Err
	}
	if songID != m.knownSong {
		return primitive.NilObjectID, service.ErrSongNotFound
	}
	return m.AddRatingResp, nil
}

func (m *mockService) SongRatingStats(ctx context.Context, songID primitive.ObjectID) (*domain.RatingStats, error) {
	m.calls++
	m.gotSongID = songID
	if m.Err != nil {
		return nil, m.Err
	}
	if songID != m.knownSong {
		return nil, service.ErrSongNotFound
	}
	return m.StatsResp, nil
}

func setup(svc *mockService) (*gin.Engine, *metrics.Metrics) {
	m := metrics.NewMetrics()
	r := gin.New()
	NewSongHandler(svc, m).RegisterRoutes(r)
	return r, m
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestListSongs(t *testing.T) {
	page := &domain.SongPage{
		Songs:   []*domain.Song{{ID: primitive.NewObjectID(), Title: "The Answer", Level: 13}},
		Page:    2,
		PerPage: 5,
		Total:   11,
		Pages:   3,
	}

	t.Run("Defaults", func(t *testing.T) {
		svc := &mockService{ListSongsResp: page}
		r, _ := setup(svc)

		rec, body := do(r, http.MethodGet, "/api/songs", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.gotPage != 1 || svc.gotPerPage != 0 {
			t.Errorf("expected page 1 with default per page, got %d/%d", svc.gotPage, svc.gotPerPage)
		}
		for _, key := range []string{"songs", "page", "per_page", "total", "pages"} {
			if _, ok := body[key]; !ok {
				t.Errorf("expected %q in response", key)
			}
		}
		songs := body["songs"].([]interface{})
		if first := songs[0].(map[string]interface{}); first["_id"] != page.Songs[0].ID.Hex() {
			t.Errorf("expected hex _id, got %v", first["_id"])
		}
	})

	t.Run("Custom Page Size", func(t *testing.T) {
		svc := &mockService{ListSongsResp: page}
		r, _ := setup(svc)

		rec, _ := do(r, http.MethodGet, "/api/songs?page=2&per_page=5", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.gotPage != 2 || svc.gotPerPage != 5 {
			t.Errorf("expected 2/5, got %d/%d", svc.gotPage, svc.gotPerPage)
		}
	})

	t.Run("Surrounding Whitespace", func(t *testing.T) {
		svc := &mockService{ListSongsResp: page}
		r, _ := setup(svc)

		rec, _ := do(r, http.MethodGet, "/api/songs?page=%202&per_page=5%20", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.gotPage != 2 || svc.gotPerPage != 5 {
			t.Errorf("expected 2/5, got %d/%d", svc.gotPage, svc.gotPerPage)
		}
	})

	t.Run("Invalid Parameters", func(t *testing.T) {
		cases := map[string]string{
			"/api/songs?page=0":             msgPageNotPositive,
			"/api/songs?page=-3":            msgPageNotPositive,
			"/api/songs?page=abc":           msgInvalidPagination,
			"/api/songs?page=":              msgInvalidPagination,
			"/api/songs?page=1.5":           msgInvalidPagination,
			"/api/songs?per_page=ten":       msgInvalidPagination,
			"/api/songs?page=1&per_page=0":  msgInvalidPagination,
			"/api/songs?page=1&per_page=-5": msgInvalidPagination,
			"/api/songs?page=0&per_page=0":  msgPageNotPositive,
			"/api/songs?page=%20":           msgInvalidPagination,
		}
		for path, want := range cases {
			svc := &mockService{ListSongsResp: page}
			r, _ := setup(svc)

			rec, body := do(r, http.MethodGet, path, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", path, rec.Code)
			}
			if body["error"] != want {
				t.Errorf("%s: expected %q, got %v", path, want, body["error"])
			}
			if svc.calls != 0 {
				t.Errorf("%s: service should not be called", path)
			}
		}
	})

	t.Run("Backend Failure", func(t *testing.T) {
		r, _ := setup(&mockService{Err: errors.New("server selection timeout")})

		rec, body := do(r, http.MethodGet, "/api/songs", "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if body["error"] != "server selection timeout" {
			t.Errorf("expected backend message, got %v", body["error"])
		}
	})
}

func TestAverageDifficulty(t *testing.T) {
	avg := 10.32
	stats := &domain.DifficultyStats{AverageDifficulty: &avg, Count: 11}

	t.Run("All Songs", func(t *testing.T) {
		svc := &mockService{AverageResp: stats}
		r, _ := setup(svc)

		rec, body := do(r, http.MethodGet, "/api/songs/avg/difficulty", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.gotLevel != nil {
			t.Errorf("expected no level filter, got %d", *svc.gotLevel)
		}
		if body["average_difficulty"] != 10.32 || body["count"] != float64(11) {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("Level Filter", func(t *testing.T) {
		svc := &mockService{AverageResp: stats}
		r, _ := setup(svc)

		rec, _ := do(r, http.MethodGet, "/api/songs/avg/difficulty?level=13", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.gotLevel == nil || *svc.gotLevel != 13 {
			t.Errorf("expected level 13, got %v", svc.gotLevel)
		}
	})

	t.Run("Level With Whitespace", func(t *testing.T) {
		svc := &mockService{AverageResp: stats}
		r, _ := setup(svc)

		rec, _ := do(r, http.MethodGet, "/api/songs/avg/difficulty?level=%2013%20", "")
		if rec.Code != http.StatusOK || svc.gotLevel == nil || *svc.gotLevel != 13 {
			t.Errorf("expected level 13, got %d %v", rec.Code, svc.gotLevel)
		}

		rec, body := do(r, http.MethodGet, "/api/songs/avg/difficulty?level=%20", "")
		if rec.Code != http.StatusBadRequest || body["error"] != msgLevelNotInteger {
			t.Errorf("expected 400 %q for blank level, got %d %v", msgLevelNotInteger, rec.Code, body)
		}
	})

	t.Run("Empty Level Is Ignored", func(t *testing.T) {
		svc := &mockService{AverageResp: stats}
		r, _ := setup(svc)

		rec, _ := do(r, http.MethodGet, "/api/songs/avg/difficulty?level=", "")
		if rec.Code != http.StatusOK || svc.gotLevel != nil {
			t.Errorf("expected unfiltered 200, got %d level %v", rec.Code, svc.gotLevel)
		}
	})

	t.Run("No Matches Serialises Null", func(t *testing.T) {
		r, _ := setup(&mockService{AverageResp: &domain.DifficultyStats{}})

		rec, _ := do(r, http.MethodGet, "/api/songs/avg/difficulty?level=99", "")
		if got := strings.TrimSpace(rec.Body.String()); got != `{"average_difficulty":null,"count":0}` {
			t.Errorf("unexpected body %s", got)
		}
	})

	t.Run("Invalid Level", func(t *testing.T) {
		svc := &mockService{AverageResp: stats}
		r, _ := setup(svc)

		rec, body := do(r, http.MethodGet, "/api/songs/avg/difficulty?level=abc", "")
		if rec.Code != http.StatusBadRequest || body["error"] != msgLevelNotInteger {
			t.Errorf("expected 400 %q, got %d %v", msgLevelNotInteger, rec.Code, body)
		}
		if svc.calls != 0 {
			t.Error("service should not be called")
		}
	})
}

func TestSearchSongs(t *testing.T) {
	songs := []*domain.Song{
		{ID: primitive.NewObjectID(), Title: "The Answer"},
		{ID: primitive.NewObjectID(), Title: "Wishing In The Night"},
	}

	t.Run("Found", func(t *testing.T) {
		svc := &mockService{SearchResp: songs}
		r, _ := setup(svc)

		rec, body := do(r, http.MethodGet, "/api/songs/search?message=the", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.gotQuery != "the" {
			t.Errorf("expected query 'the', got %q", svc.gotQuery)
		}
		if body["count"] != float64(2) || len(body["songs"].([]interface{})) != 2 {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("Nothing Found", func(t *testing.T) {
		r, _ := setup(&mockService{SearchResp: []*domain.Song{}})

		rec, _ := do(r, http.MethodGet, "/api/songs/search?message=zzz", "")
		if got := strings.TrimSpace(rec.Body.String()); got != `{"songs":[],"count":0}` {
			t.Errorf("unexpected body %s", got)
		}
	})

	t.Run("Missing Message", func(t *testing.T) {
		for _, path := range []string{"/api/songs/search", "/api/songs/search?message="} {
			svc := &mockService{}
			r, _ := setup(svc)

			rec, body := do(r, http.MethodGet, path, "")
			if rec.Code != http.StatusBadRequest || body["error"] != msgSearchRequired {
				t.Errorf("%s: expected 400 %q, got %d %v", path, msgSearchRequired, rec.Code, body)
			}
			if svc.calls != 0 {
				t.Errorf("%s: service should not be called", path)
			}
		}
	})
}

func TestAddRating(t *testing.T) {
	known := primitive.NewObjectID()
	ratingID := primitive.NewObjectID()

	t.Run("Created", func(t *testing.T) {
		svc := &mockService{knownSong: known, AddRatingResp: ratingID}
		r, m := setup(svc)

		rec, body := do(r, http.MethodPost, "/api/songs/rating", `{"song_id":"`+known.Hex()+`","rating":4}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%v)", rec.Code, body)
		}
		if body["success"] != true || body["rating_id"] != ratingID.Hex() {
			t.Errorf("unexpected body %v", body)
		}
		if svc.gotSongID != known || svc.gotRatingValue != 4 {
			t.Errorf("unexpected service call %s/%d", svc.gotSongID.Hex(), svc.gotRatingValue)
		}
		if got := testutil.ToFloat64(m.RatingsCreated); got != 1 {
			t.Errorf("expected ratings counter 1, got %v", got)
		}
	})

	t.Run("Numeric String Rating", func(t *testing.T) {
		svc := &mockService{knownSong: known, AddRatingResp: ratingID}
		r, _ := setup(svc)

		rec, _ := do(r, http.MethodPost, "/api/songs/rating", `{"song_id":"`+known.Hex()+`","rating":"5"}`)
		if rec.Code != http.StatusCreated || svc.gotRatingValue != 5 {
			t.Errorf("expected 201 with rating 5, got %d/%d", rec.Code, svc.gotRatingValue)
		}
	})

	t.Run("Rejected Before Service", func(t *testing.T) {
		id := known.Hex()
		cases := []struct {
			name, body, want string
		}{
			{"empty body", ``, msgNoData},
			{"empty object", `{}`, msgNoData},
			{"not json", `song_id=1`, msgNoData},
			{"missing song id", `{"rating":3}`, msgSongIDRequired},
			{"empty song id", `{"song_id":"","rating":3}`, msgSongIDRequired},
			{"missing rating", `{"song_id":"` + id + `"}`, msgRatingRequired},
			{"null rating", `{"song_id":"` + id + `","rating":null}`, msgRatingRequired},
			{"zero rating", `{"song_id":"` + id + `","rating":0}`, msgRatingRequired},
			{"word rating", `{"song_id":"` + id + `","rating":"great"}`, msgRatingNotInteger},
			{"fractional rating", `{"song_id":"` + id + `","rating":3.5}`, msgRatingNotInteger},
			{"list rating", `{"song_id":"` + id + `","rating":[4]}`, msgRatingNotInteger},
			{"rating too high", `{"song_id":"` + id + `","rating":6}`, msgRatingOutOfRange},
			{"negative rating", `{"song_id":"` + id + `","rating":-1}`, msgRatingOutOfRange},
			{"string zero rating", `{"song_id":"` + id + `","rating":"0"}`, msgRatingOutOfRange},
			{"malformed id", `{"song_id":"invalid_id","rating":3}`, msgInvalidSongID},
			{"numeric id", `{"song_id":12345,"rating":3}`, msgInvalidSongID},
			{"range before format", `{"song_id":"invalid_id","rating":9}`, msgRatingOutOfRange},
		}

		for _, tc := range cases {
			svc := &mockService{knownSong: known, AddRatingResp: ratingID}
			r, _ := setup(svc)

			rec, body := do(r, http.MethodPost, "/api/songs/rating", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
			}
			if body["error"] != tc.want {
				t.Errorf("%s: expected %q, got %v", tc.name, tc.want, body["error"])
			}
			if svc.calls != 0 {
				t.Errorf("%s: service should not be called", tc.name)
			}
		}
	})

	t.Run("Unknown Song", func(t *testing.T) {
		svc := &mockService{knownSong: known}
		r, m := setup(svc)

		rec, body := do(r, http.MethodPost, "/api/songs/rating", `{"song_id":"`+primitive.NewObjectID().Hex()+`","rating":3}`)
		if rec.Code != http.StatusBadRequest || body["error"] != "Song not found" {
			t.Errorf("expected 400 Song not found, got %d %v", rec.Code, body)
		}
		if got := testutil.ToFloat64(m.RatingsCreated); got != 0 {
			t.Errorf("expected no ratings counted, got %v", got)
		}
	})

	t.Run("Backend Failure", func(t *testing.T) {
		r, _ := setup(&mockService{Err: errors.New("write concern timeout")})

		rec, body := do(r, http.MethodPost, "/api/songs/rating", `{"song_id":"`+known.Hex()+`","rating":3}`)
		if rec.Code != http.StatusInternalServerError || body["error"] != "write concern timeout" {
			t.Errorf("expected 500 with message, got %d %v", rec.Code, body)
		}
	})
}

func TestSongRatings(t *testing.T) {
	known := primitive.NewObjectID()
	avg, low, high := 3.0, 1, 5

	t.Run("Stats", func(t *testing.T) {
		svc := &mockService{knownSong: known, StatsResp: &domain.RatingStats{Average: &avg, Lowest: &low, Highest: &high, Count: 3}}
		r, _ := setup(svc)

		rec, body := do(r, http.MethodGet, "/api/songs/"+known.Hex()+"/ratings", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body["average"] != 3.0 || body["lowest"] != float64(1) || body["highest"] != float64(5) || body["count"] != float64(3) {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("No Ratings", func(t *testing.T) {
		r, _ := setup(&mockService{knownSong: known, StatsResp: &domain.RatingStats{}})

		rec, _ := do(r, http.MethodGet, "/api/songs/"+known.Hex()+"/ratings", "")
		want := `{"average":null,"lowest":null,"highest":null,"count":0}`
		if got := strings.TrimSpace(rec.Body.String()); rec.Code != http.StatusOK || got != want {
			t.Errorf("expected 200 %s, got %d %s", want, rec.Code, got)
		}
	})

	t.Run("Malformed Id", func(t *testing.T) {
		svc := &mockService{knownSong: known}
		r, _ := setup(svc)

		rec, body := do(r, http.MethodGet, "/api/songs/invalid_id/ratings", "")
		if rec.Code != http.StatusBadRequest || body["error"] != msgInvalidSongID {
			t.Errorf("expected 400 %q, got %d %v", msgInvalidSongID, rec.Code, body)
		}
		if svc.calls != 0 {
			t.Error("service should not be called")
		}
	})

	t.Run("Unknown Song", func(t *testing.T) {
		r, _ := setup(&mockService{knownSong: known})

		rec, body := do(r, http.MethodGet, "/api/songs/"+primitive.NewObjectID().Hex()+"/ratings", "")
		if rec.Code != http.StatusBadRequest || body["error"] != "Song not found" {
			t.Errorf("expected 400 Song not found, got %d %v", rec.Code, body)
		}
	})
}

func TestHealth(t *testing.T) {
	r, _ := setup(&mockService{})

	rec, body := do(r, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("expected healthy, got %d %v", rec.Code, body)
	}
}
