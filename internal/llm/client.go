package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxErrorBody acota lo que se lee de un cuerpo de error para loguearlo.
const maxErrorBody = 4 << 10

// ChatMessage es un mensaje en el formato de chat completions.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamClient abre una respuesta en streaming contra el gateway del modelo.
type StreamClient interface {
	Stream(ctx context.Context, messages []ChatMessage) (io.ReadCloser, error)
	Model() string
}

// StatusError describe una respuesta no 2xx del gateway. Body queda para logs.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm http error: status=%d", e.StatusCode)
}

// HTTPClient implementa StreamClient usando la API OpenAI-compatible.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando a la API de chat completions.
// responseTimeout limita la espera de los headers; el stream en sí solo se corta con el contexto.
func NewHTTPClient(baseURL, apiKey, model string, responseTimeout time.Duration, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if responseTimeout > 0 {
		transport.ResponseHeaderTimeout = responseTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Transport: transport},
		logger:  logger,
	}
}

func (c *HTTPClient) Model() string { return c.model }

// Stream envía {model, messages, stream: true} y devuelve el cuerpo SSE sin tocar.
// El caller debe cerrar el ReadCloser.
func (c *HTTPClient) Stream(ctx context.Context, messages []ChatMessage) (io.ReadCloser, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("llm error response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return resp.Body, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}
