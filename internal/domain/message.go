package domain

// Role identifica al autor de un mensaje de la conversación.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid indica si el rol puede formar parte del historial enviado al modelo.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message es una entrada del historial. El ID solo se usa del lado del cliente
// para identificar el mensaje del asistente que se está construyendo.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
