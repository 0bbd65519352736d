package conversation

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"docs-chat/internal/domain"
)

// DocumentStatus es el estado de la conexión con el documento.
type DocumentStatus string

const (
	DocumentIdle       DocumentStatus = "idle"
	DocumentConnecting DocumentStatus = "connecting"
	DocumentConnected  DocumentStatus = "connected"
	DocumentError      DocumentStatus = "error"
)

// TurnStatus es el estado del turno en curso.
type TurnStatus string

const (
	TurnIdle      TurnStatus = "idle"
	TurnSending   TurnStatus = "sending"
	TurnStreaming TurnStatus = "streaming"
	TurnError     TurnStatus = "error"
)

var (
	ErrTurnInProgress    = errors.New("turn in progress")
	ErrUnknownTurn       = errors.New("unknown turn")
	ErrEmptyQuestion     = errors.New("empty question")
	ErrNotConnected      = errors.New("document not connected")
	ErrConnectInProgress = errors.New("document connect in progress")
)

// Snapshot es una copia inmutable del estado para renderizar.
type Snapshot struct {
	DocumentURL    string
	DocumentStatus DocumentStatus
	TurnStatus     TurnStatus
	LastError      string
	Messages       []domain.Message
}

// State guarda el log de mensajes de la sesión de UI y las dos máquinas de estado.
type State struct {
	mu sync.Mutex

	messages []domain.Message

	// docURL es el último documento conectado; pendingURL el que se está probando.
	docURL     string
	pendingURL string
	docStatus  DocumentStatus

	turnStatus TurnStatus
	turnID     string
	// assistantIdx es la posición del mensaje del asistente del turno activo, -1 si aún no hay.
	assistantIdx int
	lastError    string
}

func NewState() *State {
	return &State{
		docStatus:    DocumentIdle,
		turnStatus:   TurnIdle,
		assistantIdx: -1,
	}
}

// BeginConnect pasa el documento a connecting. No se puede cambiar de documento
// con un turno en curso.
func (s *State) BeginConnect(rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docStatus == DocumentConnecting {
		return ErrConnectInProgress
	}
	if s.turnStatus == TurnSending || s.turnStatus == TurnStreaming {
		return ErrTurnInProgress
	}
	s.pendingURL = strings.TrimSpace(rawURL)
	s.docStatus = DocumentConnecting
	s.lastError = ""
	return nil
}

// ConnectSucceeded cierra la conexión en connected. Si el documento cambió, el
// log se vacía: el historial de otro documento no sirve como contexto.
func (s *State) ConnectSucceeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docStatus != DocumentConnecting {
		return
	}
	if s.pendingURL != s.docURL {
		s.messages = s.messages[:0]
		s.turnStatus = TurnIdle
	}
	s.docURL = s.pendingURL
	s.pendingURL = ""
	s.docStatus = DocumentConnected
}

// ConnectFailed cierra la conexión en error.
func (s *State) ConnectFailed(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docStatus == DocumentConnecting {
		s.docStatus = DocumentError
		s.lastError = msg
	}
}

// DocumentURL devuelve la URL conectada, vacía si no hay documento conectado.
func (s *State) DocumentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docStatus != DocumentConnected {
		return ""
	}
	return s.docURL
}

// BeginTurn agrega la pregunta y abre un turno. Devuelve el id del turno y el
// historial previo a la pregunta.
func (s *State) BeginTurn(question string) (string, []domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, ErrEmptyQuestion
	}
	if s.docStatus != DocumentConnected {
		return "", nil, ErrNotConnected
	}
	if s.turnStatus == TurnSending || s.turnStatus == TurnStreaming {
		return "", nil, ErrTurnInProgress
	}

	history := make([]domain.Message, len(s.messages))
	copy(history, s.messages)

	s.turnID = uuid.NewString()
	s.turnStatus = TurnSending
	s.assistantIdx = -1
	s.lastError = ""
	s.messages = append(s.messages, domain.Message{
		ID:      uuid.NewString(),
		Role:    domain.RoleUser,
		Content: question,
	})
	return s.turnID, history, nil
}

// AppendDelta agrega texto al mensaje del asistente del turno. El primer delta
// crea el mensaje y pasa el turno a streaming.
func (s *State) AppendDelta(turnID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(turnID) {
		return ErrUnknownTurn
	}
	if s.assistantIdx < 0 {
		s.messages = append(s.messages, domain.Message{
			ID:   turnID,
			Role: domain.RoleAssistant,
		})
		s.assistantIdx = len(s.messages) - 1
		s.turnStatus = TurnStreaming
	}
	s.messages[s.assistantIdx].Content += text
	return nil
}

// CompleteTurn vuelve a idle.
func (s *State) CompleteTurn(turnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(turnID) {
		return ErrUnknownTurn
	}
	s.turnStatus = TurnIdle
	s.turnID = ""
	s.assistantIdx = -1
	return nil
}

// FailTurn deja el turno en error. El texto ya recibido se conserva.
func (s *State) FailTurn(turnID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(turnID) {
		return ErrUnknownTurn
	}
	s.turnStatus = TurnError
	s.turnID = ""
	s.assistantIdx = -1
	s.lastError = msg
	return nil
}

func (s *State) activeLocked(turnID string) bool {
	return turnID != "" && turnID == s.turnID &&
		(s.turnStatus == TurnSending || s.turnStatus == TurnStreaming)
}

// Messages devuelve una copia del log en orden de conversación.
func (s *State) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]domain.Message, len(s.messages))
	copy(msgs, s.messages)
	url := s.docURL
	if s.pendingURL != "" {
		url = s.pendingURL
	}
	return Snapshot{
		DocumentURL:    url,
		DocumentStatus: s.docStatus,
		TurnStatus:     s.turnStatus,
		LastError:      s.lastError,
		Messages:       msgs,
	}
}

// Reset borra la conversación y mantiene el documento conectado.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = s.messages[:0]
	s.turnStatus = TurnIdle
	s.turnID = ""
	s.assistantIdx = -1
	s.lastError = ""
}
