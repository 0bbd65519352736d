package conversation

import (
	"errors"
	"testing"

	"docs-chat/internal/domain"
)

func connectedState(t *testing.T) *State {
	t.Helper()
	s := NewState()
	if err := s.BeginConnect("https://docs.google.com/document/d/ABC123/edit"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.ConnectSucceeded()
	return s
}

func TestDocumentTransitions(t *testing.T) {
	s := NewState()
	if s.Snapshot().DocumentStatus != DocumentIdle {
		t.Fatalf("expected idle")
	}
	_ = s.BeginConnect(" https://docs.google.com/document/d/X ")
	if err := s.BeginConnect("otra"); !errors.Is(err, ErrConnectInProgress) {
		t.Fatalf("expected ErrConnectInProgress, got %v", err)
	}
	s.ConnectFailed("private")
	snap := s.Snapshot()
	if snap.DocumentStatus != DocumentError || snap.LastError != "private" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if s.DocumentURL() != "" {
		t.Fatalf("document url must be empty while not connected")
	}

	_ = s.BeginConnect("https://docs.google.com/document/d/X")
	s.ConnectSucceeded()
	if s.DocumentURL() != "https://docs.google.com/document/d/X" {
		t.Fatalf("unexpected url %q", s.DocumentURL())
	}
}

func TestTurnLifecycle(t *testing.T) {
	s := connectedState(t)

	turnID, history, err := s.BeginTurn("¿De qué trata?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}
	if s.Snapshot().TurnStatus != TurnSending {
		t.Fatalf("expected sending")
	}

	for _, d := range []string{"Trata ", "de ", "gatos."} {
		if err := s.AppendDelta(turnID, d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if s.Snapshot().TurnStatus != TurnStreaming {
		t.Fatalf("expected streaming")
	}
	if err := s.CompleteTurn(turnID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant || msgs[1].Content != "Trata de gatos." {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if msgs[1].ID != turnID {
		t.Fatalf("assistant message must carry the turn id")
	}

	_, history, err = s.BeginTurn("¿Y el autor?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected history of previous turn, got %d", len(history))
	}
}

func TestTurnGuards(t *testing.T) {
	s := NewState()
	if _, _, err := s.BeginTurn("hola"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	s = connectedState(t)
	if _, _, err := s.BeginTurn("   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}

	first, _, err := s.BeginTurn("uno")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := s.BeginTurn("dos"); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("expected ErrTurnInProgress, got %v", err)
	}
	if err := s.AppendDelta("otro-turno", "x"); !errors.Is(err, ErrUnknownTurn) {
		t.Fatalf("expected ErrUnknownTurn, got %v", err)
	}

	_ = s.AppendDelta(first, "parcial")
	if err := s.FailTurn(first, "Could not reach the server."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AppendDelta(first, "tarde"); !errors.Is(err, ErrUnknownTurn) {
		t.Fatalf("late deltas must be rejected, got %v", err)
	}

	snap := s.Snapshot()
	if snap.TurnStatus != TurnError || snap.LastError == "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Messages[len(snap.Messages)-1].Content != "parcial" {
		t.Fatalf("partial answer must be kept")
	}

	if _, _, err := s.BeginTurn("tres"); err != nil {
		t.Fatalf("a failed turn must allow a new one: %v", err)
	}
}

func TestReset(t *testing.T) {
	s := connectedState(t)
	id, _, _ := s.BeginTurn("hola")
	_ = s.AppendDelta(id, "respuesta")
	_ = s.CompleteTurn(id)

	s.Reset()
	if len(s.Messages()) != 0 {
		t.Fatalf("expected empty log")
	}
	if s.DocumentURL() == "" {
		t.Fatalf("reset must keep the connected document")
	}
}

func TestConnectAnotherDocumentClearsLog(t *testing.T) {
	s := connectedState(t)
	id, _, _ := s.BeginTurn("hola")
	_ = s.CompleteTurn(id)

	_ = s.BeginConnect("https://docs.google.com/document/d/ABC123/edit")
	s.ConnectSucceeded()
	if len(s.Messages()) != 1 {
		t.Fatalf("reconnecting the same document must keep the log")
	}

	_ = s.BeginConnect("https://docs.google.com/document/d/OTHER/edit")
	if len(s.Messages()) != 1 {
		t.Fatalf("the log must survive until the new document connects")
	}
	s.ConnectSucceeded()
	if len(s.Messages()) != 0 {
		t.Fatalf("expected log to be cleared for a new document")
	}
	if s.DocumentURL() != "https://docs.google.com/document/d/OTHER/edit" {
		t.Fatalf("unexpected url %q", s.DocumentURL())
	}
}

func TestFailedConnectKeepsLog(t *testing.T) {
	s := connectedState(t)
	id, _, _ := s.BeginTurn("hola")
	_ = s.AppendDelta(id, "respuesta")
	_ = s.CompleteTurn(id)

	_ = s.BeginConnect("https://docs.gogle.com/document/d/TYPO")
	s.ConnectFailed("invalid url")
	if len(s.Messages()) != 2 {
		t.Fatalf("a failed connect must not clear the log, got %d messages", len(s.Messages()))
	}
	if snap := s.Snapshot(); snap.DocumentURL != "https://docs.gogle.com/document/d/TYPO" {
		t.Fatalf("snapshot must show the attempted url, got %q", snap.DocumentURL)
	}

	_ = s.BeginConnect("https://docs.google.com/document/d/ABC123/edit")
	s.ConnectSucceeded()
	if len(s.Messages()) != 2 {
		t.Fatalf("reconnecting the previous document must keep the log")
	}
}

func TestConnectRejectedDuringTurn(t *testing.T) {
	s := connectedState(t)
	id, _, _ := s.BeginTurn("hola")

	if err := s.BeginConnect("https://docs.google.com/document/d/OTHER/edit"); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("expected ErrTurnInProgress while sending, got %v", err)
	}
	if err := s.AppendDelta(id, "hola"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.BeginConnect("https://docs.google.com/document/d/OTHER/edit"); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("expected ErrTurnInProgress while streaming, got %v", err)
	}
	if err := s.AppendDelta(id, " mundo"); err != nil {
		t.Fatalf("the active turn must keep streaming: %v", err)
	}
	_ = s.CompleteTurn(id)

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[1].Content != "hola mundo" {
		t.Fatalf("all deltas must land in one message, got %+v", msgs)
	}
	if s.Snapshot().DocumentStatus != DocumentConnected {
		t.Fatalf("rejected connect must not change the document status")
	}
	if err := s.BeginConnect("https://docs.google.com/document/d/OTHER/edit"); err != nil {
		t.Fatalf("connect must be allowed once the turn ends: %v", err)
	}
}
