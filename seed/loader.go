package seed

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/annazecevic/song-service/logger"
	"github.com/annazecevic/song-service/metrics"
	"go.mongodb.org/mongo-driver/bson"
)

const maxLineSize = 1024 * 1024

var errLineTooLong = errors.New("line exceeds 1 MiB")

type SongStore interface {
	Count(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, docs []interface{}) (int, error)
	EnsureIndexes(ctx context.Context) error
}

type IndexStore interface {
	EnsureIndexes(ctx context.Context) error
}

// Loader imports the song catalog from a newline-delimited JSON file into an
// empty songs collection.
type Loader struct {
	songs   SongStore
	ratings IndexStore
	metrics *metrics.Metrics
}

func NewLoader(songs SongStore, ratings IndexStore, m *metrics.Metrics) *Loader {
	return &Loader{
		songs:   songs,
		ratings: ratings,
		metrics: m,
	}
}

// Run creates the collection indexes and, when the songs collection is empty,
// inserts every well-formed line of path. It returns the number of songs
// inserted; an already populated collection yields 0 without reading path.
func (l *Loader) Run(ctx context.Context, path string) (int, error) {
	if err := l.songs.EnsureIndexes(ctx); err != nil {
		return 0, err
	}
	if err := l.ratings.EnsureIndexes(ctx); err != nil {
		return 0, err
	}

	existing, err := l.songs.Count(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		logger.Info(logger.EventSeedImport, "Songs collection already populated, skipping import", logger.Fields(
			"existing", existing,
		))
		return 0, nil
	}

	docs, err := l.readFile(path)
	if err != nil {
		return 0, err
	}

	inserted, err := l.songs.InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}

	if l.metrics != nil {
		l.metrics.SeedSongsImported.Add(float64(inserted))
	}
	logger.Info(logger.EventSeedImport, "Songs imported", logger.Fields(
		"file", path,
		"inserted", inserted,
	))

	return inserted, nil
}

func (l *Loader) readFile(path string) ([]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)

	var docs []interface{}
	for lineNo := 1; ; lineNo++ {
		line, tooLong, readErr := readLine(reader)
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("failed to read seed file: %w", readErr)
		}

		switch line = bytes.TrimSpace(line); {
		case tooLong:
			l.skipLine(path, lineNo, errLineTooLong)
		case len(line) > 0:
			var doc bson.D
			if err := bson.UnmarshalExtJSON(line, false, &doc); err != nil {
				l.skipLine(path, lineNo, err)
				break
			}
			docs = append(docs, doc)
		}

		if readErr == io.EOF {
			return docs, nil
		}
	}
}

// readLine returns the next line. A line longer than maxLineSize is consumed
// and reported as tooLong with no content.
func readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		var chunk []byte
		chunk, err = r.ReadSlice('\n')
		if !tooLong && len(line)+len(chunk) <= maxLineSize {
			line = append(line, chunk...)
		} else {
			tooLong, line = true, nil
		}
		if err != bufio.ErrBufferFull {
			return line, tooLong, err
		}
	}
}

func (l *Loader) skipLine(path string, lineNo int, err error) {
	if l.metrics != nil {
		l.metrics.SeedLinesSkipped.Inc()
	}
	logger.Warn(logger.EventSeedLineSkipped, "Skipping malformed seed line", logger.Fields(
		"file", path,
		"line", lineNo,
		"error", err.Error(),
	))
}
