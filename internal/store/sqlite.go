package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ensemble/pkg/interfaces"
	"ensemble/pkg/types"
)

// SQLite persists participant profiles and session logs. All writes go
// through a single goroutine; SQLite handles concurrent reads but contends
// badly on concurrent writers.
type SQLite struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id     TEXT PRIMARY KEY,
	screen_name TEXT NOT NULL,
	instrument  TEXT NOT NULL,
	personality TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS session_logs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	room_name TEXT NOT NULL,
	attempt   INTEGER NOT NULL,
	log       TEXT NOT NULL,
	ended_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_logs_room ON session_logs(room_name, attempt);
`

// Open creates the store, applies the schema, and starts the writer.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &SQLite{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// writeLoop processes all write operations in a single goroutine, retrying
// a failed write once.
func (s *SQLite) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("Store write failed, retrying: %v", err)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("Store write failed after retry: %v", err)
				}
			}
			op.result <- err
		case <-s.shutdown:
			return
		}
	}
}

func (s *SQLite) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-s.shutdown:
		return ErrClosed
	}
}

// SaveProfile inserts or replaces one participant profile.
func (s *SQLite) SaveProfile(ctx context.Context, profile types.Profile) error {
	personality, err := json.Marshal(profile.Personality)
	if err != nil {
		return fmt.Errorf("failed to marshal personality: %w", err)
	}

	return s.executeWrite(ctx, func(db *sql.DB) error {
		query := `
			INSERT INTO profiles (user_id, screen_name, instrument, personality, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				screen_name = excluded.screen_name,
				instrument  = excluded.instrument,
				personality = excluded.personality,
				updated_at  = excluded.updated_at
		`
		_, err := db.ExecContext(ctx, query,
			profile.UserID, profile.ScreenName, profile.Instrument,
			string(personality), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		return nil
	})
}

// GetProfile loads one participant profile.
func (s *SQLite) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	query := `SELECT user_id, screen_name, instrument, personality FROM profiles WHERE user_id = ?`

	var profile types.Profile
	var personality string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &profile.ScreenName, &profile.Instrument, &personality)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if err := json.Unmarshal([]byte(personality), &profile.Personality); err != nil {
		return nil, fmt.Errorf("failed to unmarshal personality: %w", err)
	}
	return &profile, nil
}

// SaveSessionLog appends one finished attempt's log. The record body is
// stored as JSON; room name and attempt are broken out for querying.
func (s *SQLite) SaveSessionLog(ctx context.Context, sessionLog *types.SessionLog) error {
	body, err := json.Marshal(sessionLog)
	if err != nil {
		return fmt.Errorf("failed to marshal session log: %w", err)
	}

	return s.executeWrite(ctx, func(db *sql.DB) error {
		query := `INSERT INTO session_logs (room_name, attempt, log, ended_at) VALUES (?, ?, ?, ?)`
		_, err := db.ExecContext(ctx, query,
			sessionLog.RoomName, sessionLog.Attempt, string(body), sessionLog.EndedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to save session log: %w", err)
		}
		return nil
	})
}

// ListSessionLogs loads every persisted attempt for a room, oldest first.
func (s *SQLite) ListSessionLogs(ctx context.Context, roomName string) ([]*types.SessionLog, error) {
	query := `SELECT log FROM session_logs WHERE room_name = ? ORDER BY attempt, id`

	rows, err := s.db.QueryContext(ctx, query, roomName)
	if err != nil {
		return nil, fmt.Errorf("failed to list session logs: %w", err)
	}
	defer rows.Close()

	var logs []*types.SessionLog
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan session log: %w", err)
		}
		var sessionLog types.SessionLog
		if err := json.Unmarshal([]byte(body), &sessionLog); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session log: %w", err)
		}
		logs = append(logs, &sessionLog)
	}
	return logs, rows.Err()
}

// Close stops the writer and closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}
