package storage

// SchemaVersion is the version migrate brings every database to.
const SchemaVersion = 2

const (
	createVersionsSQL = `
	CREATE TABLE IF NOT EXISTS schema_versions (
	    version     INTEGER PRIMARY KEY,
	    name        TEXT NOT NULL,
	    applied_at  TEXT NOT NULL
	)`

	selectVersionSQL = `SELECT COALESCE(MAX(version), 0) FROM schema_versions`

	recordVersionSQL = `
	INSERT INTO schema_versions (version, name, applied_at)
	VALUES (?, ?, datetime('now'))`

	selectValueSQL = `SELECT value FROM kv WHERE key = ?`

	upsertValueSQL = `
	INSERT INTO kv (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
	    value = excluded.value,
	    updated_at = excluded.updated_at`

	deleteValueSQL = `DELETE FROM kv WHERE key = ?`

	swapValueSQL = `UPDATE kv SET value = ?, updated_at = ? WHERE key = ? AND value = ?`

	insertAbsentSQL = `
	INSERT INTO kv (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO NOTHING`
)

type migration struct {
	version int
	name    string
	stmt    string
}

// migrations are applied in order; each runs once per database.
var migrations = []migration{
	{
		version: 1,
		name:    "create_kv",
		stmt: `
		CREATE TABLE kv (
		    key         TEXT PRIMARY KEY,
		    value       BLOB NOT NULL,
		    updated_at  INTEGER NOT NULL
		)`,
	},
	{
		version: 2,
		name:    "index_kv_updated_at",
		stmt:    `CREATE INDEX kv_updated_at ON kv (updated_at)`,
	},
}
