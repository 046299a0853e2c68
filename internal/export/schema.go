package export

import (
	"database/sql"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS sessions (
	       id          TEXT PRIMARY KEY,
	       created_at  TEXT NOT NULL,
	       subsystems  INTEGER NOT NULL CHECK (subsystems > 0),
	       fans        INTEGER NOT NULL CHECK (fans > 0)
	   );
	   CREATE TABLE IF NOT EXISTS fans (
	       session_id  TEXT NOT NULL REFERENCES sessions(id),
	       fan         INTEGER NOT NULL,
	       max_rpm     REAL NOT NULL,
	       PRIMARY KEY (session_id, fan)
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       session_id  TEXT NOT NULL REFERENCES sessions(id),
	       elapsed     REAL NOT NULL,
	       time        TEXT NOT NULL,
	       kind        TEXT NOT NULL CHECK (kind IN ('temperature', 'fan_speed')),
	       idx         INTEGER NOT NULL,
	       value       REAL NOT NULL,
	       PRIMARY KEY (session_id, elapsed, kind, idx)
	   );`

	insertSessionSQL = `
    INSERT OR REPLACE INTO sessions (id, created_at, subsystems, fans)
    VALUES (?, ?, ?, ?)`

	insertFanSQL = `
    INSERT INTO fans (session_id, fan, max_rpm)
    VALUES (?, ?, ?)`

	insertSampleSQL = `
    INSERT INTO samples (session_id, elapsed, time, kind, idx, value)
    VALUES (?, ?, ?, ?, ?, ?)`

	kindTemperature = "temperature"
	kindFanSpeed    = "fan_speed"
)

var dataTables = []string{"samples", "fans", "sessions"}

// InitSchema creates the export tables and records the schema version.
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Debug().
		Int("version", SchemaVersion).
		Msg("Export schema initialized")

	return nil
}

// GetSchemaVersion returns the recorded schema version, or 0 for a database
// without one.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

func TableExists(db *sql.DB, table string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, table).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: table,
			Error: err.Error(),
		})
	}

	return exists, nil
}
