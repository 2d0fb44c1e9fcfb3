// Package inference talks to the hosted inference router: streaming chat
// completions, a non-streaming completion used for image prompt
// enhancement, and raw image synthesis.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SP-Shreya-SP/MyChat-app/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// ErrNotConfigured means no API token is set; the request is dead on
// arrival and must not be retried.
var ErrNotConfigured = errors.New("inference token not configured")

// UpstreamError carries a non-2xx answer verbatim so the controller can
// surface status and body in the conversation.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
}

const enhanceSystemPrompt = "You are an expert image prompt engineer. Expand the user simple prompt " +
	"into a highly detailed, descriptive, and artistic prompt for an image generator. Focus on " +
	"lighting, texture, atmosphere, and specific details like gender, clothing, and background. " +
	"Keep the final prompt under 70 words. Respond ONLY with the enhanced prompt."

const enhanceMaxTokens = 100

// Client is the inference boundary. An interface so the controller can be
// exercised against a fake in tests.
type Client interface {
	StreamChat(ctx context.Context, msgs []models.ChatMessage, maxTokens int) (io.ReadCloser, error)
	EnhancePrompt(ctx context.Context, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type HF struct {
	httpClient *http.Client
	llm        llms.LLM
	token      string
	baseURL    string
	chatModel  string
	imageModel string
	logger     *zap.Logger
}

func NewHF(baseURL, token, chatModel, imageModel string, logger *zap.Logger) (*HF, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	// The client constructor rejects an empty token, but an unconfigured
	// server should still start; calls are guarded individually.
	llmToken := token
	if llmToken == "" {
		llmToken = "unset"
	}

	llm, err := openai.New(
		openai.WithToken(llmToken),
		openai.WithBaseURL(baseURL+"/v1"),
		openai.WithModel(chatModel),
	)
	if err != nil {
		return nil, err
	}

	return &HF{
		httpClient: &http.Client{},
		llm:        llm,
		token:      token,
		baseURL:    baseURL,
		chatModel:  chatModel,
		imageModel: imageModel,
		logger:     logger,
	}, nil
}

type chatRequest struct {
	Model     string               `json:"model"`
	Messages  []models.ChatMessage `json:"messages"`
	MaxTokens int                  `json:"max_tokens"`
	Stream    bool                 `json:"stream"`
}

// StreamChat opens a streaming completion and hands back the raw event
// stream. The caller owns closing the body.
func (h *HF) StreamChat(ctx context.Context, msgs []models.ChatMessage, maxTokens int) (io.ReadCloser, error) {
	if h.token == "" {
		return nil, ErrNotConfigured
	}

	// Empty-content messages trigger 400s upstream.
	filtered := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) != "" {
			filtered = append(filtered, m)
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:     h.chatModel,
		Messages:  filtered,
		MaxTokens: maxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		h.logger.Error("chat completion rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("model", h.chatModel))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(detail)}
	}

	return resp.Body, nil
}

// EnhancePrompt expands a short image prompt into a detailed one. Callers
// treat any failure as soft and fall back to the original prompt.
func (h *HF) EnhancePrompt(ctx context.Context, prompt string) (string, error) {
	if h.token == "" {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	fullPrompt := enhanceSystemPrompt + "\n\nPrompt: " + prompt
	completion, err := llms.GenerateFromSinglePrompt(ctx, h.llm, fullPrompt,
		llms.WithMaxTokens(enhanceMaxTokens))
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	enhanced := strings.TrimSpace(completion)
	if enhanced == "" {
		return "", errors.New("empty enhancement")
	}
	return enhanced, nil
}

type imageRequest struct {
	Inputs  string `json:"inputs"`
	Options struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

// GenerateImage synthesizes an image and returns it as a self-contained
// data URL.
func (h *HF) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if h.token == "" {
		return "", ErrNotConfigured
	}

	var reqBody imageRequest
	reqBody.Inputs = prompt
	reqBody.Options.WaitForModel = true

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := h.baseURL + "/hf-inference/models/" + h.imageModel
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		h.logger.Error("image synthesis rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("model", h.imageModel))
		return "", &UpstreamError{Status: resp.StatusCode, Body: string(detail)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/webp"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
