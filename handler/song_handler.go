package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/annazecevic/song-service/dto"
	"github.com/annazecevic/song-service/logger"
	"github.com/annazecevic/song-service/metrics"
	"github.com/annazecevic/song-service/service"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	msgInvalidPagination = "Invalid pagination parameters"
	msgPageNotPositive   = "Page number must be positive"
	msgLevelNotInteger   = "Level must be an integer"
	msgSearchRequired    = "Search message is required"
	msgNoData            = "No data provided"
	msgSongIDRequired    = "Song ID is required"
	msgRatingRequired    = "Rating is required"
	msgRatingNotInteger  = "Rating must be an integer"
	msgRatingOutOfRange  = "Rating must be between 1 and 5"
	msgInvalidSongID     = "Invalid song ID format"
)

type SongHandler struct {
	service service.SongService
	metrics *metrics.Metrics
}

func NewSongHandler(service service.SongService, m *metrics.Metrics) *SongHandler {
	return &SongHandler{
		service: service,
		metrics: m,
	}
}

// GET /api/songs?page=&per_page=
func (h *SongHandler) ListSongs(c *gin.Context) {
	page, err := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("page", "1")))
	if err != nil {
		h.badRequest(c, msgInvalidPagination)
		return
	}

	perPage := 0
	rawPerPage := c.Query("per_page")
	if rawPerPage != "" {
		perPage, err = strconv.Atoi(strings.TrimSpace(rawPerPage))
		if err != nil {
			h.badRequest(c, msgInvalidPagination)
			return
		}
	}

	if page < 1 {
		h.badRequest(c, msgPageNotPositive)
		return
	}
	if rawPerPage != "" && perPage < 1 {
		h.badRequest(c, msgInvalidPagination)
		return
	}

	result, err := h.service.ListSongs(c.Request.Context(), page, perPage)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GET /api/songs/avg/difficulty?level=
func (h *SongHandler) AverageDifficulty(c *gin.Context) {
	var level *int
	if raw := c.Query("level"); raw != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			h.badRequest(c, msgLevelNotInteger)
			return
		}
		level = &parsed
	}

	result, err := h.service.AverageDifficulty(c.Request.Context(), level)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GET /api/songs/search?message=
func (h *SongHandler) SearchSongs(c *gin.Context) {
	message := c.Query("message")
	if message == "" {
		h.badRequest(c, msgSearchRequired)
		return
	}

	songs, err := h.service.SearchSongs(c.Request.Context(), message)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SearchResponse{Songs: songs, Count: len(songs)})
}

// POST /api/songs/rating
//
// Body: {"song_id": "<hex id>", "rating": 1-5}. Fields are checked in a fixed
// order: presence, rating type, rating range, id format, song existence.
func (h *SongHandler) AddRating(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		h.badRequest(c, msgNoData)
		return
	}

	rawSongID, rawRating := body["song_id"], body["rating"]
	if isBlank(rawSongID) {
		h.badRequest(c, msgSongIDRequired)
		return
	}
	if isBlank(rawRating) {
		h.badRequest(c, msgRatingRequired)
		return
	}

	rating, ok := parseRating(rawRating)
	if !ok {
		h.badRequest(c, msgRatingNotInteger)
		return
	}
	if rating < service.MinRating || rating > service.MaxRating {
		h.badRequest(c, msgRatingOutOfRange)
		return
	}

	hex, _ := rawSongID.(string)
	songID, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		h.badRequest(c, msgInvalidSongID)
		return
	}

	ratingID, err := h.service.AddRating(c.Request.Context(), songID, rating)
	if err != nil {
		if errors.Is(err, service.ErrSongNotFound) || errors.Is(err, service.ErrRatingOutOfRange) {
			h.badRequest(c, err.Error())
			return
		}
		h.internalError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RatingsCreated.Inc()
	}

	c.JSON(http.StatusCreated, dto.AddRatingResponse{Success: true, RatingID: ratingID.Hex()})
}

// GET /api/songs/:songId/ratings
func (h *SongHandler) SongRatings(c *gin.Context) {
	songID, err := primitive.ObjectIDFromHex(c.Param("songId"))
	if err != nil {
		h.badRequest(c, msgInvalidSongID)
		return
	}

	stats, err := h.service.SongRatingStats(c.Request.Context(), songID)
	if err != nil {
		if errors.Is(err, service.ErrSongNotFound) {
			h.badRequest(c, err.Error())
			return
		}
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *SongHandler) badRequest(c *gin.Context, message string) {
	logger.Warn(logger.EventValidationFailure, message, logger.Fields(
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	))
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func (h *SongHandler) internalError(c *gin.Context, err error) {
	logger.Error(logger.EventDBError, "Request failed", logger.Fields(
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
		"error", err.Error(),
	))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// isBlank reports values a client would consider "not provided": null, the
// empty string, zero and false.
func isBlank(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case float64:
		return val == 0
	case bool:
		return !val
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}

func parseRating(v interface{}) (int, bool) {
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) || math.Abs(val) > math.MaxInt32 {
			return 0, false
		}
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func (h *SongHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		songs := api.Group("/songs")
		{
			songs.GET("", h.ListSongs)
			songs.GET("/avg/difficulty", h.AverageDifficulty)
			songs.GET("/search", h.SearchSongs)
			songs.POST("/rating", h.AddRating)
			songs.GET("/:songId/ratings", h.SongRatings)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
