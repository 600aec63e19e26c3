package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	command_id TEXT PRIMARY KEY,
	queue_id TEXT NOT NULL DEFAULT '',
	account_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	entry_price REAL NOT NULL,
	stop_price REAL NOT NULL,
	take_profit REAL NOT NULL,
	size REAL NOT NULL,
	risk_amount REAL NOT NULL,
	strategy TEXT NOT NULL,
	sentiment TEXT NOT NULL,
	reference_url TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL CHECK (status IN ('pending','filled','failed')),
	execution_id TEXT NOT NULL DEFAULT '',
	fill_price REAL NOT NULL DEFAULT 0,
	filled_volume REAL NOT NULL DEFAULT 0,
	failure_reason TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	submitted_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	closed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
`
