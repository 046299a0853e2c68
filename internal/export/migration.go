package export

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/logger"
)

// backupDatabase copies the database next to path before an incompatible
// schema is replaced.
func backupDatabase(db *sql.DB, path string, version int, log logger.Logger) (string, error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	ext := filepath.Ext(path)
	backupPath := fmt.Sprintf("%s.v%d_%s%s", strings.TrimSuffix(path, ext), version, timestamp, ext)

	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		return "", errors.New().WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup",
			Path:  backupPath,
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", backupPath).
		Int("version", version).
		Msg("Export database backup created")

	return backupPath, nil
}

// ValidateAndUpdateSchema prepares db for writing. A database with another
// schema version is backed up and recreated; path is used to place the
// backup.
func ValidateAndUpdateSchema(db *sql.DB, path string, log logger.Logger) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}

	if version == SchemaVersion {
		log.Debug().Int("version", version).Msg("Export schema version is current")
		return nil
	}

	if version != 0 {
		if _, err := backupDatabase(db, path, version, log); err != nil {
			return err
		}
	}

	if err := dropTables(db, log); err != nil {
		return err
	}

	return InitSchema(db, log)
}

func dropTables(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback drop tables")
			}
		}
	}()

	for _, table := range append(dataTables, "schema_versions") {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return errFactory.WithData(ErrSchemaMigrationFailed, struct {
				Phase string
				Table string
				Error string
			}{
				Phase: "drop_table",
				Table: table,
				Error: err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}
	committed = true

	return nil
}
