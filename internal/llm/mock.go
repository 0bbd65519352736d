package llm

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// MockClient permite tests y desarrollo local sin llamar a un LLM real.
// Emite Chunks como frames SSE seguidos de `data: [DONE]`. Chunks y Err no se
// modifican mientras el cliente está en uso; es seguro para requests concurrentes.
type MockClient struct {
	Chunks []string
	Err    error

	mu           sync.Mutex
	lastMessages []ChatMessage
}

func (m *MockClient) Model() string { return "mock-docs-chat" }

// LastMessages devuelve los mensajes del último Stream, nil si no hubo ninguno.
func (m *MockClient) LastMessages() []ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessages
}

func (m *MockClient) Stream(ctx context.Context, messages []ChatMessage) (io.ReadCloser, error) {
	m.mu.Lock()
	m.lastMessages = messages
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return io.NopCloser(strings.NewReader(EncodeSSE(m.Chunks))), nil
}

// EncodeSSE serializa fragmentos de texto como un stream de chat completions.
func EncodeSSE(chunks []string) string {
	var b strings.Builder
	for _, chunk := range chunks {
		payload, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"delta": map[string]string{"content": chunk}},
			},
		})
		b.WriteString("data: ")
		b.Write(payload)
		b.WriteString("\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}
