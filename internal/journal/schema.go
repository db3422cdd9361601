package journal

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS anomalies (
	       id          TEXT PRIMARY KEY,
	       sample_id   TEXT NOT NULL,
	       detected    INTEGER NOT NULL CHECK (typeof(detected) = 'integer'),
	       machine     TEXT NOT NULL,
	       kind        TEXT NOT NULL,
	       sensor      TEXT NOT NULL,
	       value       REAL NOT NULL,
	       range_min   REAL NOT NULL,
	       range_max   REAL NOT NULL CHECK (range_max >= range_min),
	       score       REAL NOT NULL DEFAULT 0
	   );
	   CREATE INDEX IF NOT EXISTS idx_anomalies_detected ON anomalies (detected);`

	insertAnomalySQL = `
    INSERT INTO anomalies (
        id, sample_id, detected,
        machine, kind, sensor,
        value, range_min, range_max, score
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	recentAnomaliesSQL = `
    SELECT id, sample_id, detected, machine, kind, sensor,
           value, range_min, range_max, score
    FROM anomalies
    ORDER BY detected DESC, rowid DESC
    LIMIT ?`

	countAnomaliesSQL = `SELECT COUNT(*) FROM anomalies`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating journal schema...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	// Track transaction state
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				if !errors.Is(err, sql.ErrTxDone) {
					log.Debug().Err(err).Msg("Failed to rollback transaction")
				}
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Debug().
		Int("version", SchemaVersion).
		Msg("Journal schema initialized")

	return nil
}

// EnsureSchema initializes an empty database and rejects one carrying a
// different schema version
func EnsureSchema(db *sql.DB, log logger.Logger) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}

	switch version {
	case 0:
		return InitSchema(db, log)
	case SchemaVersion:
		return nil
	default:
		return errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase    string
			Found    int
			Expected int
		}{
			Phase:    "check_version",
			Found:    version,
			Expected: SchemaVersion,
		})
	}
}

// GetSchemaVersion returns the current schema version
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
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

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(context.Background(), `
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
