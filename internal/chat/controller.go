// Package chat orchestrates conversation turns: it owns the store handle,
// builds scrubbed outbound payloads, drives the stream assembler and turns
// every failure into a visible conversation entry.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SP-Shreya-SP/MyChat-app/internal/db"
	"github.com/SP-Shreya-SP/MyChat-app/internal/inference"
	"github.com/SP-Shreya-SP/MyChat-app/internal/models"
	"github.com/SP-Shreya-SP/MyChat-app/internal/search"
	"github.com/SP-Shreya-SP/MyChat-app/internal/stream"
	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// ErrTurnInFlight rejects a second concurrent turn for the same session.
var ErrTurnInFlight = errors.New("a turn is already in flight for this session")

const (
	defaultTitle   = "New Chat"
	titleLength    = 30
	imagePlacehold = "[Image Data]"
)

// Prior turns may embed whole images as base64 data URLs; sending those
// back upstream blows the token budget, so history gets scrubbed.
var dataURLImage = regexp.MustCompile(`!\[.*?\]\(data:image/.*?;base64,.*?\)`)

// Searcher is the search collaborator boundary.
type Searcher interface {
	Search(ctx context.Context, query string) []search.Result
}

// Options tune turn handling; zero values get sane defaults.
type Options struct {
	MaxTokens          int
	HistoryTokenBudget int
	StreamIdleTimeout  time.Duration
}

type Controller struct {
	store     db.Store
	inference inference.Client
	searcher  Searcher
	logger    *zap.Logger
	encoder   *tiktoken.Tiktoken

	maxTokens   int
	tokenBudget int
	idleTimeout time.Duration

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewController(store db.Store, inf inference.Client, searcher Searcher, opts Options, logger *zap.Logger) *Controller {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.HistoryTokenBudget <= 0 {
		opts.HistoryTokenBudget = 3000
	}
	if opts.StreamIdleTimeout <= 0 {
		opts.StreamIdleTimeout = 90 * time.Second
	}

	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("token encoder unavailable, falling back to length estimate", zap.Error(err))
		encoder = nil
	}

	return &Controller{
		store:       store,
		inference:   inf,
		searcher:    searcher,
		logger:      logger,
		encoder:     encoder,
		maxTokens:   opts.MaxTokens,
		tokenBudget: opts.HistoryTokenBudget,
		idleTimeout: opts.StreamIdleTimeout,
		inflight:    make(map[int64]struct{}),
	}
}

// Send runs one turn end to end and returns the persisted assistant
// message (a real answer or an error notice). onDelta, when non-nil, is
// called with each streamed fragment in arrival order.
func (c *Controller) Send(ctx context.Context, turn models.Turn, onDelta func(string)) (*models.Message, error) {
	if !c.begin(turn.SessionID) {
		return nil, ErrTurnInFlight
	}
	defer c.end(turn.SessionID)

	logger := c.logger.With(
		zap.String("turn", uuid.NewString()),
		zap.Int64("session", turn.SessionID))

	raw := turn.SubmittedContent
	submitted := raw
	display := turn.DisplayContent
	if display == "" {
		display = raw
	}
	if turn.Quote != "" {
		submitted = "> " + turn.Quote + "\n\n" + submitted
		if turn.DisplayContent == "" {
			display = submitted
		}
	}

	history, err := c.store.GetSessionMessages(turn.SessionID)
	if err != nil {
		logger.Warn("failed to load session history", zap.Error(err))
		history = nil
	}

	// Auto-title on the first turn, from the raw text before quoting.
	if len(history) == 0 {
		title := firstChars(raw, titleLength)
		if strings.TrimSpace(title) == "" {
			title = defaultTitle
		}
		if err := c.store.UpdateSessionTitle(turn.SessionID, title); err != nil && !errors.Is(err, db.ErrSessionNotFound) {
			logger.Warn("failed to auto-title session", zap.Error(err))
		}
	}

	// The user message goes in before anything leaves the building.
	userMsg := &models.Message{
		SessionID: turn.SessionID,
		Role:      models.RoleUser,
		Content:   display,
	}
	if err := c.store.SaveMessage(userMsg); err != nil {
		logger.Warn("failed to persist user message", zap.Error(err))
	}

	if turn.Mode == models.ModeImage {
		return c.imageTurn(ctx, logger, turn.SessionID, raw)
	}

	payload := c.buildPayload(history, submitted)
	return c.streamTurn(ctx, logger, turn.SessionID, payload, onDelta)
}

// buildPayload scrubs embedded image data out of history, trims it
// oldest-first to the token budget and appends the new user content. Only
// role and content cross the boundary.
func (c *Controller) buildPayload(history []models.Message, submitted string) []models.ChatMessage {
	scrubbed := make([]models.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		content := Scrub(m.Content)
		if strings.TrimSpace(content) == "" {
			continue
		}
		scrubbed = append(scrubbed, models.ChatMessage{Role: m.Role, Content: content})
	}

	budget := c.tokenBudget - c.countTokens(submitted)
	total := 0
	for _, m := range scrubbed {
		total += c.countTokens(m.Content)
	}
	for len(scrubbed) > 0 && total > budget {
		total -= c.countTokens(scrubbed[0].Content)
		scrubbed = scrubbed[1:]
	}

	return append(scrubbed, models.ChatMessage{Role: models.RoleUser, Content: submitted})
}

func (c *Controller) streamTurn(ctx context.Context, logger *zap.Logger, sessionID int64, payload []models.ChatMessage, onDelta func(string)) (*models.Message, error) {
	body, err := c.inference.StreamChat(ctx, payload, c.maxTokens)
	if err != nil {
		logger.Error("chat call failed", zap.Error(err))
		return c.errorTurn(logger, sessionID, describeFailure(err))
	}
	defer body.Close()

	// Idle watchdog: closing the body unblocks a stalled read. Any chunk
	// counts as liveness, keep-alives included, so overall turn length
	// stays unbounded as long as the transport keeps delivering.
	var stalled atomic.Bool
	watchdog := time.AfterFunc(c.idleTimeout, func() {
		stalled.Store(true)
		body.Close()
	})
	defer watchdog.Stop()

	asm := stream.New(&idleResetReader{rc: body, reset: func() {
		watchdog.Reset(c.idleTimeout)
	}}, logger)
	var sb strings.Builder
	for {
		delta, err := asm.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Error("stream aborted", zap.Error(err), zap.Bool("stalled", stalled.Load()))
			if stalled.Load() {
				return c.errorTurn(logger, sessionID,
					"⚠️ **Error:** The AI stopped responding mid-answer. Please try again.")
			}
			return c.errorTurn(logger, sessionID,
				"❌ **Connection Error:** Failed to get a response from the AI.")
		}
		sb.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}

	final := sb.String()
	if strings.TrimSpace(final) == "" {
		return c.errorTurn(logger, sessionID,
			"⚠️ **Error:** AI returned an empty response. This can happen if the model is busy or the prompt is too complex. Please try again.")
	}

	assistantMsg := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   final,
	}
	if err := c.store.SaveMessage(assistantMsg); err != nil {
		logger.Warn("failed to persist assistant message", zap.Error(err))
	}
	return assistantMsg, nil
}

func (c *Controller) imageTurn(ctx context.Context, logger *zap.Logger, sessionID int64, prompt string) (*models.Message, error) {
	enhanced, err := c.inference.EnhancePrompt(ctx, prompt)
	if err != nil {
		// Enhancement is best-effort; the original prompt still works.
		logger.Warn("prompt enhancement failed, using original", zap.Error(err))
		enhanced = prompt
	}

	dataURL, err := c.inference.GenerateImage(ctx, enhanced)
	if err != nil {
		logger.Error("image synthesis failed", zap.Error(err))
		return c.errorTurn(logger, sessionID, describeImageFailure(err))
	}

	assistantMsg := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   fmt.Sprintf("![generated image](%s)", dataURL),
	}
	if err := c.store.SaveMessage(assistantMsg); err != nil {
		logger.Warn("failed to persist image message", zap.Error(err))
	}
	return assistantMsg, nil
}

// idleResetReader feeds the watchdog on every successful read, so a
// stream that only carries keep-alive frames still counts as alive.
type idleResetReader struct {
	rc    io.ReadCloser
	reset func()
}

func (r *idleResetReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if n > 0 {
		r.reset()
	}
	return n, err
}

// errorTurn converts a failure into a persisted assistant message so the
// user is never left facing a blank state.
func (c *Controller) errorTurn(logger *zap.Logger, sessionID int64, content string) (*models.Message, error) {
	msg := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   content,
	}
	if err := c.store.SaveMessage(msg); err != nil {
		logger.Warn("failed to persist error turn", zap.Error(err))
	}
	return msg, nil
}

func describeFailure(err error) string {
	var upstream *inference.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return fmt.Sprintf("⚠️ **API Error:** Failed to fetch from the AI service. \n\n> *Details: %d %s*",
			upstream.Status, upstream.Body)
	case errors.Is(err, inference.ErrNotConfigured):
		return "⚠️ **API Error:** The AI service is not configured. Set an API token and restart."
	default:
		return "❌ **Connection Error:** Failed to get a response from the AI."
	}
}

func describeImageFailure(err error) string {
	var upstream *inference.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return fmt.Sprintf("❌ **Error:** Image API Error: %d %s. Please try again in a moment.",
			upstream.Status, upstream.Body)
	case errors.Is(err, inference.ErrNotConfigured):
		return "❌ **Error:** The image service is not configured. Set an API token and restart."
	default:
		return "❌ **Connection Error:** Could not reach the image generation service."
	}
}

// Scrub replaces embedded data-URL image markdown with a short
// placeholder. The stored copy is never touched, only outbound payloads.
func Scrub(content string) string {
	if !strings.Contains(content, "data:image") {
		return content
	}
	return dataURLImage.ReplaceAllString(content, imagePlacehold)
}

func (c *Controller) countTokens(text string) int {
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	// Rough estimate when the encoder could not be loaded.
	return len(text) / 4
}

func firstChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (c *Controller) begin(sessionID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[sessionID]; busy {
		return false
	}
	c.inflight[sessionID] = struct{}{}
	return true
}

func (c *Controller) end(sessionID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, sessionID)
}
