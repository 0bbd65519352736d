package service

import (
	"strings"

	"docs-chat/internal/domain"
	"docs-chat/internal/llm"
)

// DefaultHistoryWindow es la cantidad de mensajes previos (5 pares) que se envían al modelo.
const DefaultHistoryWindow = 10

const DefaultSystemPrompt = `You are an assistant that answers questions about a single Google Docs document.

Rules:
- Answer ONLY with information contained in the document provided by the user.
- If the document does not contain the answer, say clearly that the document does not cover it. Do not guess and do not use outside knowledge.
- Quote short passages from the document when it helps the user verify the answer.
- Keep answers concise and well structured; use Markdown lists when listing several items.
- Reply in the same language as the user's question.`

const (
	documentPreamble  = "Here is the full content of the document. Use it as the only source for your answers.\n\n<document>\n"
	documentPostamble = "\n</document>\n\nAnswer the questions that follow using only this document."
)

// ContextAssembler arma la lista de mensajes que recibe el modelo en cada turno.
type ContextAssembler struct {
	systemPrompt  string
	historyWindow int
}

func NewContextAssembler(systemPrompt string, historyWindow int) *ContextAssembler {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if historyWindow < 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &ContextAssembler{
		systemPrompt:  systemPrompt,
		historyWindow: historyWindow,
	}
}

// Build devuelve: instrucciones de sistema, el documento completo, los últimos
// historyWindow mensajes del historial (del más viejo al más nuevo) y la pregunta.
// El documento va entero: no se resume ni se parte.
func (a *ContextAssembler) Build(question, documentText string, history []domain.Message) []llm.ChatMessage {
	recent := history
	if len(recent) > a.historyWindow {
		recent = recent[len(recent)-a.historyWindow:]
	}

	messages := make([]llm.ChatMessage, 0, len(recent)+3)
	messages = append(messages,
		llm.ChatMessage{Role: "system", Content: a.systemPrompt},
		llm.ChatMessage{Role: string(domain.RoleUser), Content: documentPreamble + documentText + documentPostamble},
	)
	for _, m := range recent {
		messages = append(messages, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: string(domain.RoleUser), Content: question})
	return messages
}
