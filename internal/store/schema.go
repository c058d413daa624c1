package store

// The database doubles as transient in-memory state for the core and optional
// on-disk state for the surrounding app; the schema is applied on every open.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    description TEXT,
    labels_json TEXT,
    guidelines TEXT,
    hourly_rate REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS work_items (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id),
    payload_json TEXT,
    status TEXT NOT NULL,
    prediction_json TEXT,
    human_label_json TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_work_items_status ON work_items(status);
CREATE INDEX IF NOT EXISTS idx_work_items_project ON work_items(project_id);
`
