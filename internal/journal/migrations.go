package journal

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS batches (
	id            TEXT PRIMARY KEY,
	mode          TEXT NOT NULL,
	smtp_server   TEXT NOT NULL DEFAULT '',
	sender_name   TEXT NOT NULL DEFAULT '',
	total         INTEGER NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	no_email      INTEGER NOT NULL DEFAULT 0,
	dispatched_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
	batch_id     TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	teacher_name TEXT NOT NULL,
	email        TEXT NOT NULL DEFAULT '',
	row_count    INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (batch_id, position)
);

CREATE INDEX IF NOT EXISTS idx_batches_dispatched_at ON batches(dispatched_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
