// Package export writes the rolling log to a file, either as CSV or as a
// SQLite database.
package export

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/history"
	"codeberg.org/mutker/fansim/internal/logger"
)

const (
	// DefaultPath is used when no export path is configured.
	DefaultPath = "temp_speed_log.csv"

	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

type Format string

const (
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// Meta describes the session a table belongs to. Only the SQLite format
// stores it.
type Meta struct {
	SessionID string
	MaxRPMs   []float64
	CreatedAt time.Time
	Logger    logger.Logger
}

// FormatFor picks the output format from the file extension. Anything that is
// not a SQLite extension is written as CSV.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// ToFile writes table to path. An empty table is not an error condition for
// callers: it returns ErrUnavailable and nothing is written.
func ToFile(path string, table history.Table, meta Meta) error {
	errFactory := errors.New()

	if len(table.Rows) == 0 {
		return errFactory.New(ErrUnavailable)
	}

	if path == "" {
		path = DefaultPath
	}

	log := meta.Logger
	if log == nil {
		log = logger.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return errFactory.WithData(ErrFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  path,
			Error: err.Error(),
		})
	}

	format := FormatFor(path)

	var err error
	switch format {
	case FormatSQLite:
		err = writeSQLiteFile(path, table, meta, log)
	default:
		err = writeCSVFile(path, table)
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("path", path).
		Str("format", string(format)).
		Int("rows", len(table.Rows)).
		Msg("Data written")

	return nil
}
