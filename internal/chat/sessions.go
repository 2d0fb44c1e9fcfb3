package chat

import "github.com/SP-Shreya-SP/MyChat-app/internal/models"

// ListSessions returns every session, newest first. With no sessions on
// record, a default one is created first so the caller always has
// somewhere to type.
func (c *Controller) ListSessions() ([]models.Session, error) {
	sessions, err := c.store.GetAllSessions()
	if err != nil {
		return nil, err
	}
	if len(sessions) > 0 {
		return sessions, nil
	}

	id, err := c.store.CreateSession(defaultTitle)
	if err != nil {
		return nil, err
	}
	if id < 0 {
		// Degraded store; nothing to re-read.
		return sessions, nil
	}
	return c.store.GetAllSessions()
}

// Messages reloads a session's history from the store, which stays
// authoritative over any in-memory mirror.
func (c *Controller) Messages(sessionID int64) ([]models.Message, error) {
	return c.store.GetSessionMessages(sessionID)
}

func (c *Controller) NewSession(title string) (int64, error) {
	if title == "" {
		title = defaultTitle
	}
	return c.store.CreateSession(title)
}

func (c *Controller) RenameSession(sessionID int64, title string) error {
	return c.store.UpdateSessionTitle(sessionID, title)
}

func (c *Controller) DeleteSession(sessionID int64) error {
	return c.store.DeleteSession(sessionID)
}

func (c *Controller) Reset() error {
	return c.store.ClearAllData()
}
