// Package groq wraps the Groq inference API, which exposes OpenAI-compatible
// chat completion and Whisper transcription endpoints. One Client holds one
// API credential; the caller owns multi-credential fallback.
//
// Errors are classified so fallback logic can tell a credential that is
// exhausted for the day (rate limit, bad key) from a transient failure worth
// retrying with the next model.
package groq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL is the Groq OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// DefaultWhisperModel is the hosted transcription model.
const DefaultWhisperModel = "whisper-large-v3"

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// ChatRequest are the knobs for one completion call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client talks to the Groq API with a single credential.
type Client struct {
	api openai.Client
}

// NewClient creates a Client for the given API key. An empty baseURL uses
// the Groq endpoint; tests point it at a local server.
func NewClient(apiKey, baseURL string, opts ...option.RequestOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}, opts...)
	return &Client{api: openai.NewClient(opts...)}
}

// Chat runs one completion and returns the trimmed assistant text.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("groq: chat %s: %w", req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Transcribe sends recorded audio to the hosted Whisper model and returns
// the transcript. The filename extension tells the API the container format.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	resp, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: DefaultWhisperModel,
		File:  openai.File(bytes.NewReader(audio), filename, "application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("groq: transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// ErrorKind classifies a failed API call for fallback decisions.
type ErrorKind int

const (
	// KindRetriable covers transient failures; try the next model.
	KindRetriable ErrorKind = iota
	// KindRateLimited means the credential hit its quota; every model on
	// this credential shares the quota, so skip the credential entirely.
	KindRateLimited
	// KindAuth means the credential is rejected; skip it entirely.
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	default:
		return "retriable"
	}
}

// Classify maps an error from Chat or Transcribe to its ErrorKind.
func Classify(err error) ErrorKind {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return KindRateLimited
		case 401, 403:
			return KindAuth
		}
	}
	return KindRetriable
}
