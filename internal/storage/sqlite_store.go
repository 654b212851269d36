package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
)

// maxRowsPerInsert keeps a batch insert below SQLite's bound parameter limit.
const maxRowsPerInsert = 100

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the Sqlite database at dbPath.
// Connections are opened on first use; the schema is created by the first
// write. A store that only reads an existing file never opens the writer.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // single writer

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

// getReadDB opens a read-only connection. An existing database is left
// untouched; a missing one is created with its schema by the writer first.
func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	if _, err := os.Stat(s.dbPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("checking database file: %w", err)
		}
		if _, err = s.getWriteDB(); err != nil {
			return nil, err
		}
	}

	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, runID, source string, config any) (sessionID int64, err error) {
	configData, err := toConfigData(config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, runID, source, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func scanSession(row interface{ Scan(dest ...any) error }) (*Session, error) {
	var sess Session
	var config sql.NullString
	if err := row.Scan(&sess.ID, &sess.StartTime, &sess.RunID, &sess.Source, &config); err != nil {
		return nil, err
	}
	if config.Valid {
		sess.Config = &config.String
	}
	sess.StartTime = sess.StartTime.UTC()
	return &sess, nil
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	if session, err = scanSession(stmt.QueryRowContext(ctx, id)); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
	}
	return
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *Session
		if sess, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, sess)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating sessions: %w", err)
	}
	return
}

func (s *SqliteStore) StoreSamples(ctx context.Context, sessionID int64, samples []*Sample) (err error) {
	if len(samples) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	valuesPlaceholder := "(?, ?, ?, ?, ?)"

	for chunk := range slices.Chunk(samples, maxRowsPerInsert) {
		values := make([]any, 0, len(chunk)*5)

		var sb strings.Builder
		sb.WriteString(insertSamplesSQL)

		for i, sample := range chunk {
			data := toSampleData(sessionID, sample)
			values = append(values,
				data.SessionID,
				data.Timestamp,
				data.Topic,
				data.FrameID,
				data.Payload,
			)

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(valuesPlaceholder)
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting samples: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) Samples(ctx context.Context, sessionID int64, opts ...QueryOption) (samples []*Sample, err error) {
	var q sampleQuery
	for _, opt := range opts {
		opt(&q)
	}

	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	query, args := q.build(sessionID)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		err = fmt.Errorf("querying samples: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sample Sample
		var timestamp int64
		var payload string
		if err = rows.Scan(&sample.ID, &sample.SessionID, &timestamp, &sample.Topic, &sample.FrameID, &payload); err != nil {
			err = fmt.Errorf("scanning sample: %w", err)
			return
		}
		sample.Timestamp = fromUnixNano(timestamp)
		sample.Payload = json.RawMessage(payload)
		samples = append(samples, &sample)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating samples: %w", err)
	}
	return
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
