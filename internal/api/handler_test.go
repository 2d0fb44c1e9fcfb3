package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SP-Shreya-SP/MyChat-app/internal/chat"
	"github.com/SP-Shreya-SP/MyChat-app/internal/db"
	"github.com/SP-Shreya-SP/MyChat-app/internal/models"
	"github.com/SP-Shreya-SP/MyChat-app/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInference struct {
	deltas []string
}

func (f *fakeInference) StreamChat(ctx context.Context, msgs []models.ChatMessage, maxTokens int) (io.ReadCloser, error) {
	var sb strings.Builder
	for _, d := range f.deltas {
		frame, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]string{"content": d}}},
		})
		fmt.Fprintf(&sb, "data: %s\n", frame)
	}
	sb.WriteString("data: [DONE]\n")
	return io.NopCloser(strings.NewReader(sb.String())), nil
}

func (f *fakeInference) EnhancePrompt(ctx context.Context, prompt string) (string, error) {
	return prompt, nil
}

func (f *fakeInference) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return "data:image/webp;base64,QUJD", nil
}

type fakeSearcher struct{}

func (fakeSearcher) Search(ctx context.Context, query string) []search.Result { return nil }

func newTestHandler(t *testing.T, deltas ...string) (*Handler, db.Store) {
	t.Helper()
	store, err := db.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	controller := chat.NewController(store, &fakeInference{deltas: deltas}, fakeSearcher{}, chat.Options{}, zap.NewNop())
	return NewHandler(controller, zap.NewNop()), store
}

func TestHandleMessageStreamsAndPersists(t *testing.T) {
	handler, store := newTestHandler(t, "Hel", "lo")

	sessID, err := store.CreateSession("New Chat")
	require.NoError(t, err)

	body := strings.NewReader(`{"content":"hi there"}`)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/message?session_id=%d", sessID), body)
	rec := httptest.NewRecorder()

	handler.HandleMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	out := rec.Body.String()
	assert.Contains(t, out, `data: {"content":"Hel"}`)
	assert.Contains(t, out, `data: {"content":"lo"}`)
	assert.Contains(t, out, "data: [DONE]")

	msgs, err := store.GetSessionMessages(sessID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, "Hello", msgs[1].Content)
}

func TestHandleMessageRejectsBadSession(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"content":"x"}`))
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	handler, _ := newTestHandler(t)

	// Create.
	rec := httptest.NewRecorder()
	handler.GetSessions(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"title":"My Topic"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"]
	assert.Greater(t, id, int64(0))

	// List.
	rec = httptest.NewRecorder()
	handler.GetSessions(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "My Topic", sessions[0].Title)

	// Rename.
	rec = httptest.NewRecorder()
	handler.UpdateSession(rec, httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/api/sessions/update?session_id=%d", id), strings.NewReader(`{"title":"Renamed"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	// Delete.
	rec = httptest.NewRecorder()
	handler.DeleteSession(rec, httptest.NewRequest(http.MethodDelete,
		fmt.Sprintf("/api/sessions/delete?session_id=%d", id), nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSessionDefaultsTitle(t *testing.T) {
	handler, store := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.GetSessions(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	sessions, err := store.GetAllSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "New Chat", sessions[0].Title)
}

func TestUpdateSessionNotFound(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.UpdateSession(rec, httptest.NewRequest(http.MethodPut,
		"/api/sessions/update?session_id=424242", strings.NewReader(`{"title":"x"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMessages(t *testing.T) {
	handler, store := newTestHandler(t)

	sessID, err := store.CreateSession("chat")
	require.NoError(t, err)
	require.NoError(t, store.SaveMessage(&models.Message{
		SessionID: sessID, Role: models.RoleUser, Content: "hello",
	}))

	rec := httptest.NewRecorder()
	handler.GetMessages(rec, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/messages?session_id=%d", sessID), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestReset(t *testing.T) {
	handler, store := newTestHandler(t)

	sessID, err := store.CreateSession("chat")
	require.NoError(t, err)
	require.NoError(t, store.SaveMessage(&models.Message{
		SessionID: sessID, Role: models.RoleUser, Content: "bye",
	}))

	rec := httptest.NewRecorder()
	handler.Reset(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	sessions, err := store.GetAllSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, httptest.NewRequest(http.MethodGet, "/api/message?session_id=1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	handler.DeleteSession(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/delete?session_id=1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
