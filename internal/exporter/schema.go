package exporter

import (
	"database/sql"

	"codeberg.org/tessen/netdom/internal/errors"
)

const (
	schemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS dom_metrics (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp   INTEGER NOT NULL,
	       device      TEXT NOT NULL,
	       name        TEXT NOT NULL,
	       value       REAL NOT NULL,
	       tags        TEXT NOT NULL DEFAULT '{}'
	   );
	   CREATE INDEX IF NOT EXISTS idx_dom_metrics_series
	       ON dom_metrics (device, name, timestamp);`

	insertMetricSQL = `
    INSERT INTO dom_metrics (timestamp, device, name, value, tags)
    VALUES (?, ?, ?, ?, ?)`
)

func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	current, err := getSchemaVersion(db)
	if err != nil {
		return err
	}
	if current == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(errors.ErrExportInit, err)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.Wrap(errors.ErrExportInit, err)
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, schemaVersion); err != nil {
		return errFactory.Wrap(errors.ErrExportInit, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(errors.ErrExportInit, err)
	}
	committed = true

	return nil
}

func getSchemaVersion(db *sql.DB) (int, error) {
	exists, err := tableExists(db, "schema_versions")
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
		return 0, errors.New().Wrap(errors.ErrExportInit, err)
	}

	return version, nil
}

func tableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().Wrap(errors.ErrExportInit, err)
	}

	return exists, nil
}
