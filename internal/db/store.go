package db

import (
	"errors"

	"github.com/SP-Shreya-SP/MyChat-app/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Store is durable CRUD for sessions and messages. Implementations must
// cascade message deletion atomically with session deletion.
type Store interface {
	CreateSession(title string) (int64, error)
	GetAllSessions() ([]models.Session, error)
	GetSessionMessages(sessionID int64) ([]models.Message, error)
	SaveMessage(msg *models.Message) error
	UpdateSessionTitle(sessionID int64, title string) error
	DeleteSession(sessionID int64) error
	ClearAllData() error
}
