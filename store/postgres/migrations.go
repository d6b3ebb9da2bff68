package postgres

// schema is applied idempotently by Migrate.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS subledger_roles (
		id         INT PRIMARY KEY CHECK (id = 1),
		admin      TEXT NOT NULL,
		minter     TEXT NOT NULL,
		paused     BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS subledger_balances (
		account TEXT PRIMARY KEY,
		micro   BIGINT NOT NULL CHECK (micro >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS subledger_supply (
		id    INT PRIMARY KEY CHECK (id = 1),
		micro BIGINT NOT NULL CHECK (micro >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS subledger_allowances (
		owner   TEXT NOT NULL,
		spender TEXT NOT NULL,
		micro   BIGINT NOT NULL CHECK (micro >= 0),
		PRIMARY KEY (owner, spender)
	)`,

	`CREATE TABLE IF NOT EXISTS subledger_subscriptions (
		account      TEXT PRIMARY KEY,
		id           TEXT NOT NULL,
		tier         SMALLINT NOT NULL,
		start_height BIGINT NOT NULL,
		duration     BIGINT NOT NULL,
		auto_renew   BOOLEAN NOT NULL,
		active       BOOLEAN NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS subledger_tiers (
		tier     SMALLINT PRIMARY KEY,
		duration BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS subledger_events (
		seq        BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL,
		type       TEXT NOT NULL,
		actor      TEXT NOT NULL,
		height     BIGINT NOT NULL,
		payload    JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_subledger_events_type ON subledger_events (type)`,
	`CREATE INDEX IF NOT EXISTS idx_subledger_events_actor ON subledger_events (actor)`,
}
