package store

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    at TIMESTAMP NOT NULL,
    action TEXT NOT NULL,
    filesystem TEXT NOT NULL,
    snapshot TEXT,
    ok BOOLEAN NOT NULL,
    detail TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_filesystem ON events(filesystem);
CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
`
