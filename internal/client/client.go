package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"docs-chat/internal/conversation"
	"docs-chat/internal/document"
	"docs-chat/internal/domain"
	"docs-chat/internal/stream"
)

// maxErrorBody acota la lectura de respuestas de error del proxy.
const maxErrorBody = 64 << 10

// Callbacks recibe el progreso de un turno. OnDone y OnError son excluyentes
// y se llaman como mucho una vez.
type Callbacks struct {
	OnDelta func(text string)
	OnDone  func()
	OnError func(message string)
}

// Client es la API que usa la UI: conectar un documento y hacer preguntas.
type Client struct {
	baseURL string
	http    *http.Client
	state   *conversation.State
	logger  *zap.Logger
}

func New(baseURL string, httpClient *http.Client, state *conversation.State, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if state == nil {
		state = conversation.NewState()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		state:   state,
		logger:  logger,
	}
}

// State devuelve el estado de la sesión para renderizar.
func (c *Client) State() *conversation.State {
	return c.state
}

type documentResponse struct {
	DocumentID string `json:"documentId"`
	Bytes      int    `json:"bytes"`
}

// ConnectDocument valida la URL localmente y pide al proxy que confirme el acceso.
// Deja el documento en connected o error.
func (c *Client) ConnectDocument(ctx context.Context, rawURL string) error {
	if err := c.state.BeginConnect(rawURL); err != nil {
		return err
	}
	if _, err := document.ResolveID(rawURL); err != nil {
		c.state.ConnectFailed(domain.CodeOf(err).PublicMessage())
		return err
	}

	payload, _ := json.Marshal(map[string]string{"documentUrl": strings.TrimSpace(rawURL)})
	resp, err := c.post(ctx, "/api/document", payload)
	if err != nil {
		c.state.ConnectFailed(domain.CodeConnectionError.PublicMessage())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := readAPIError(resp)
		c.state.ConnectFailed(apiErr.Message)
		return apiErr
	}

	var doc documentResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		c.state.ConnectFailed(domain.CodeConnectionError.PublicMessage())
		return domain.Wrap(domain.CodeConnectionError, fmt.Errorf("decode document response: %w", err))
	}
	c.logger.Debug("document connected", zap.String("document_id", doc.DocumentID), zap.Int("bytes", doc.Bytes))
	c.state.ConnectSucceeded()
	return nil
}

type chatPayload struct {
	Question            string           `json:"question"`
	DocumentURL         string           `json:"documentUrl"`
	ConversationHistory []domain.Message `json:"conversationHistory"`
}

// SubmitQuestion envía la pregunta con el historial y entrega la respuesta de a
// deltas. Bloquea hasta que el turno termina. No reintenta.
func (c *Client) SubmitQuestion(ctx context.Context, question string, cb Callbacks) error {
	turnID, history, err := c.state.BeginTurn(question)
	if err != nil {
		return err
	}

	fail := func(err error, msg string) error {
		_ = c.state.FailTurn(turnID, msg)
		if cb.OnError != nil {
			cb.OnError(msg)
		}
		return err
	}

	payload, err := json.Marshal(chatPayload{
		Question:            strings.TrimSpace(question),
		DocumentURL:         c.state.DocumentURL(),
		ConversationHistory: stripIDs(history),
	})
	if err != nil {
		return fail(err, domain.CodeInvalidRequest.PublicMessage())
	}

	resp, err := c.post(ctx, "/api/chat", payload)
	if err != nil {
		return fail(err, domain.CodeConnectionError.PublicMessage())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := readAPIError(resp)
		return fail(apiErr, apiErr.Message)
	}

	dec, err := stream.Decode(ctx, resp.Body, stream.Handler{
		OnDelta: func(text string) {
			if err := c.state.AppendDelta(turnID, text); err != nil {
				c.logger.Warn("delta dropped", zap.String("turn_id", turnID), zap.Error(err))
				return
			}
			if cb.OnDelta != nil {
				cb.OnDelta(text)
			}
		},
	})
	if dec.Skipped() > 0 {
		c.logger.Debug("skipped malformed stream records", zap.Int("count", dec.Skipped()))
	}
	if err != nil {
		return fail(domain.Wrap(domain.CodeConnectionError, err), domain.CodeConnectionError.PublicMessage())
	}

	_ = c.state.CompleteTurn(turnID)
	if cb.OnDone != nil {
		cb.OnDone()
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.Wrap(domain.CodeConnectionError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.CodeConnectionError, fmt.Errorf("do request: %w", err))
	}
	return resp, nil
}

// APIError es una respuesta de error del proxy.
type APIError struct {
	Status  int
	Code    domain.ErrorCode
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("proxy error: status=%d code=%s", e.Status, e.Code)
}

// Is permite comparar con los sentinels de domain por código.
func (e *APIError) Is(target error) bool {
	var de *domain.Error
	if errors.As(target, &de) {
		return de.Code == e.Code
	}
	return false
}

func readAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Code: domain.CodeUpstreamError}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Code != "" {
			apiErr.Code = domain.ErrorCode(body.Code)
		}
		apiErr.Message = body.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = apiErr.Code.PublicMessage()
	}
	return apiErr
}

func stripIDs(history []domain.Message) []domain.Message {
	out := make([]domain.Message, len(history))
	for i, m := range history {
		out[i] = domain.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
