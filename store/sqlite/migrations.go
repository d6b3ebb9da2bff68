package sqlite

// schema is applied idempotently by Migrate. SQLite stores the whole
// durable surface: role singletons, balances, supply, allowances,
// subscription records, the tier table and the event log.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		admin      TEXT    NOT NULL,
		minter     TEXT    NOT NULL,
		paused     INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT    NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS balances (
		account TEXT    PRIMARY KEY,
		micro   INTEGER NOT NULL CHECK (micro >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS supply (
		id    INTEGER PRIMARY KEY CHECK (id = 1),
		micro INTEGER NOT NULL CHECK (micro >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS allowances (
		owner   TEXT    NOT NULL,
		spender TEXT    NOT NULL,
		micro   INTEGER NOT NULL CHECK (micro >= 0),
		PRIMARY KEY (owner, spender)
	)`,

	`CREATE TABLE IF NOT EXISTS subscriptions (
		account      TEXT    PRIMARY KEY,
		id           TEXT    NOT NULL,
		tier         INTEGER NOT NULL,
		start_height INTEGER NOT NULL,
		duration     INTEGER NOT NULL,
		auto_renew   INTEGER NOT NULL,
		active       INTEGER NOT NULL,
		created_at   TEXT    NOT NULL,
		updated_at   TEXT    NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS tiers (
		tier     INTEGER PRIMARY KEY,
		duration INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT    NOT NULL,
		type       TEXT    NOT NULL,
		actor      TEXT    NOT NULL,
		height     INTEGER NOT NULL,
		payload    TEXT,
		created_at TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_type ON events (type)`,
	`CREATE INDEX IF NOT EXISTS idx_events_actor ON events (actor)`,
}
