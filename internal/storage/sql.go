package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time TIMESTAMP NOT NULL,
    run_id     TEXT      NOT NULL,
    source     TEXT      NOT NULL,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS samples (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL REFERENCES sessions (id),
    timestamp  INTEGER NOT NULL, -- unix nanoseconds, UTC
    topic      TEXT    NOT NULL,
    frame_id   TEXT    NOT NULL,
    payload    TEXT    NOT NULL  -- JSON message
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_samples_session_topic_time ON samples (session_id, topic, timestamp);
CREATE INDEX IF NOT EXISTS idx_samples_session_time ON samples (session_id, timestamp);`

	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      run_id,
                      source,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT 
    id, 
    start_time, 
    run_id, 
    source, 
    config 
FROM sessions 
WHERE 
    id = ?`

	selectSessionsSQL = `
SELECT 
    id, 
    start_time, 
    run_id, 
    source, 
    config 
FROM sessions
ORDER BY start_time, id`

	insertSamplesSQL = `
INSERT INTO samples (session_id,
                     timestamp,
                     topic,
                     frame_id,
                     payload)
VALUES `

	selectSamplesSQL = `
SELECT
    id,
    session_id,
    timestamp,
    topic,
    frame_id,
    payload
FROM samples
WHERE
    session_id = ?`
)
