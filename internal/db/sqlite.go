package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/SP-Shreya-SP/MyChat-app/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// schemaVersion 1 shipped without the session index; opening an old file
// adds it in place without touching rows.
const schemaVersion = 2

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);`

type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(dbPath string, logger *zap.Logger) (*SQLite, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrate(sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &SQLite{db: sqlDB, logger: logger}, nil
}

// Open returns a degraded no-op store instead of an error when the file
// cannot be opened, so the caller stays usable with in-memory state only.
func Open(dbPath string, logger *zap.Logger) Store {
	store, err := New(dbPath, logger)
	if err != nil {
		logger.Warn("durable store unavailable, running without persistence",
			zap.Error(err),
			zap.String("dbPath", dbPath))
		return Noop{}
	}
	return store
}

func migrate(sqlDB *sql.DB, logger *zap.Logger) error {
	var version int
	if err := sqlDB.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	switch {
	case version == 0:
		if _, err := sqlDB.Exec(schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	case version < schemaVersion:
		// v1 predates the session index; existing rows stay as-is.
		logger.Info("upgrading store schema",
			zap.Int("from", version),
			zap.Int("to", schemaVersion))
		if _, err := sqlDB.Exec("CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id)"); err != nil {
			return fmt.Errorf("failed to upgrade schema: %w", err)
		}
	}

	if version < schemaVersion {
		if _, err := sqlDB.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateSession(title string) (int64, error) {
	query := `
        INSERT INTO sessions (title, timestamp)
        VALUES (?, ?)
        RETURNING id`

	var id int64
	err := s.db.QueryRow(query, title, time.Now().UnixMilli()).Scan(&id)
	return id, err
}

func (s *SQLite) GetAllSessions() ([]models.Session, error) {
	query := `
        SELECT id, title, timestamp
        FROM sessions
        ORDER BY timestamp DESC, id DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return []models.Session{}, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Timestamp); err != nil {
			return []models.Session{}, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLite) GetSessionMessages(sessionID int64) ([]models.Message, error) {
	query := `
        SELECT id, session_id, role, content, timestamp
        FROM messages
        WHERE session_id = ?
        ORDER BY id ASC`

	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return []models.Message{}, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return []models.Message{}, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLite) SaveMessage(msg *models.Message) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	query := `
        INSERT INTO messages (session_id, role, content, timestamp)
        VALUES (?, ?, ?, ?)
        RETURNING id`

	return s.db.QueryRow(query, msg.SessionID, msg.Role, msg.Content, msg.Timestamp).Scan(&msg.ID)
}

func (s *SQLite) UpdateSessionTitle(sessionID int64, title string) error {
	res, err := s.db.Exec("UPDATE sessions SET title = ? WHERE id = ?", title, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLite) DeleteSession(sessionID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Delete messages first so the cascade is all-or-nothing.
	if _, err := tx.Exec("DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLite) ClearAllData() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages"); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM sessions"); err != nil {
		return err
	}

	return tx.Commit()
}
