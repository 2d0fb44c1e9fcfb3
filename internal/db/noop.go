package db

import "github.com/SP-Shreya-SP/MyChat-app/internal/models"

// Noop is the degraded store used when no durable backend is available.
// Writes are dropped, reads come back empty, nothing errors.
type Noop struct{}

func (Noop) CreateSession(title string) (int64, error) { return -1, nil }

func (Noop) GetAllSessions() ([]models.Session, error) { return []models.Session{}, nil }

func (Noop) GetSessionMessages(sessionID int64) ([]models.Message, error) {
	return []models.Message{}, nil
}

func (Noop) SaveMessage(msg *models.Message) error { return nil }

func (Noop) UpdateSessionTitle(sessionID int64, title string) error { return nil }

func (Noop) DeleteSession(sessionID int64) error { return nil }

func (Noop) ClearAllData() error { return nil }
