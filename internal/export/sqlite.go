package export

import (
	"database/sql"
	"time"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/history"
	"codeberg.org/mutker/fansim/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

func writeSQLiteFile(path string, table history.Table, meta Meta, log logger.Logger) error {
	errFactory := errors.New()

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return errFactory.WithData(ErrFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "open_database",
			Path:  path,
			Error: err.Error(),
		})
	}
	defer db.Close()

	if err := ValidateAndUpdateSchema(db, path, log); err != nil {
		return errFactory.Wrap(ErrFailed, err)
	}

	return WriteSQLite(db, table, meta, log)
}

// WriteSQLite stores the session and its samples in long format, one row per
// temperature and fan speed value. Writing the same session again replaces
// its previous samples.
func WriteSQLite(db *sql.DB, table history.Table, meta Meta, log logger.Logger) error {
	errFactory := errors.New()

	if len(table.Rows) == 0 {
		return errFactory.New(ErrUnavailable)
	}

	subsystems := len(table.Rows[0].Temperatures)
	fans := len(table.Rows[0].Speeds)
	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to roll back transaction")
			}
		}
	}()

	for _, name := range dataTables[:2] {
		if _, err := tx.Exec("DELETE FROM "+name+" WHERE session_id = ?", meta.SessionID); err != nil {
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if _, err := tx.Exec(insertSessionSQL,
		meta.SessionID, createdAt.UTC().Format(time.RFC3339), subsystems, fans); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	for i, maxRPM := range meta.MaxRPMs {
		if _, err := tx.Exec(insertFanSQL, meta.SessionID, i+1, maxRPM); err != nil {
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, row := range table.Rows {
		for i, v := range row.Temperatures {
			if _, err := stmt.Exec(meta.SessionID, row.Elapsed, row.Time, kindTemperature, i+1, v); err != nil {
				return errFactory.Wrap(ErrTransactionFailed, err)
			}
		}
		for i, v := range row.Speeds {
			if _, err := stmt.Exec(meta.SessionID, row.Elapsed, row.Time, kindFanSpeed, i+1, v); err != nil {
				return errFactory.Wrap(ErrTransactionFailed, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	log.Debug().
		Str("session_id", meta.SessionID).
		Int("rows", len(table.Rows)).
		Msg("Samples written to database")

	return nil
}
