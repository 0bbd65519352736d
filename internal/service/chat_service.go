package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"docs-chat/internal/document"
	"docs-chat/internal/domain"
	"docs-chat/internal/llm"
)

// DocumentFetcher obtiene el texto de un documento a partir de la URL del usuario.
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (document.Document, error)
}

// ChatRequest es un turno tal como llega del cliente.
type ChatRequest struct {
	Question    string
	DocumentURL string
	History     []domain.Message
}

// ChatService orquesta un turno: valida, descarga el documento, arma el
// contexto y abre el stream del modelo. No guarda estado entre llamadas.
type ChatService struct {
	logger    *zap.Logger
	fetcher   DocumentFetcher
	assembler *ContextAssembler
	llmClient llm.StreamClient
	usage     UsageRecorder
}

func NewChatService(logger *zap.Logger, fetcher DocumentFetcher, assembler *ContextAssembler, llmClient llm.StreamClient, usage UsageRecorder) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if assembler == nil {
		assembler = NewContextAssembler("", DefaultHistoryWindow)
	}
	return &ChatService{
		logger:    logger,
		fetcher:   fetcher,
		assembler: assembler,
		llmClient: llmClient,
		usage:     usage,
	}
}

// Model devuelve el modelo configurado del gateway.
func (s *ChatService) Model() string {
	return s.llmClient.Model()
}

// OpenStream devuelve el cuerpo SSE del modelo sin modificar. El caller debe cerrarlo.
// Los errores son *domain.Error; la causa interna solo se loguea.
func (s *ChatService) OpenStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	body, err := s.openStream(ctx, req)
	s.record(ctx, err)
	return body, err
}

func (s *ChatService) openStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	question := strings.TrimSpace(req.Question)
	docURL := strings.TrimSpace(req.DocumentURL)
	if question == "" || docURL == "" {
		return nil, domain.ErrMissingField
	}
	for i, m := range req.History {
		if !m.Role.Valid() {
			return nil, domain.Wrap(domain.CodeInvalidRequest, fmt.Errorf("history[%d]: role %q", i, m.Role))
		}
	}

	doc, err := s.fetchDocument(ctx, docURL)
	if err != nil {
		return nil, err
	}

	messages := s.assembler.Build(question, doc.Text, req.History)

	body, err := s.llmClient.Stream(ctx, messages)
	if err != nil {
		mapped := mapUpstreamError(err)
		s.logger.Error("llm stream failed",
			zap.String("document_id", doc.ID),
			zap.String("code", string(mapped.Code)),
			zap.Error(err),
		)
		return nil, mapped
	}

	s.logger.Info("llm stream opened",
		zap.String("document_id", doc.ID),
		zap.Int("document_bytes", len(doc.Text)),
		zap.Int("history", len(req.History)),
	)
	return body, nil
}

// CheckDocument descarga el documento para confirmar que es accesible.
func (s *ChatService) CheckDocument(ctx context.Context, rawURL string) (document.Document, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return document.Document{}, domain.ErrMissingField
	}
	return s.fetchDocument(ctx, rawURL)
}

// Usage devuelve los contadores del día, o nil si no hay recorder configurado.
func (s *ChatService) Usage(ctx context.Context) (map[string]int64, error) {
	if s.usage == nil {
		return nil, nil
	}
	return s.usage.Counts(ctx, time.Now())
}

func (s *ChatService) fetchDocument(ctx context.Context, rawURL string) (document.Document, error) {
	// La URL se revalida acá aunque el cliente ya lo haya hecho.
	if _, err := document.ValidateURL(rawURL); err != nil {
		s.logger.Warn("rejected document url", zap.Error(err))
		return document.Document{}, err
	}
	doc, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.logger.Warn("document fetch failed", zap.String("code", string(domain.CodeOf(err))), zap.Error(err))
		var de *domain.Error
		if !errors.As(err, &de) {
			return document.Document{}, domain.Wrap(domain.CodeFetchFailed, err)
		}
		return document.Document{}, err
	}
	return doc, nil
}

func (s *ChatService) record(ctx context.Context, err error) {
	if s.usage == nil {
		return
	}
	if err == nil {
		s.usage.Record(ctx, OutcomeOK)
		return
	}
	s.usage.Record(ctx, string(domain.CodeOf(err)))
}

func mapUpstreamError(err error) *domain.Error {
	var se *llm.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests:
			return domain.Wrap(domain.CodeRateLimited, err)
		case http.StatusPaymentRequired:
			return domain.Wrap(domain.CodeQuotaExceeded, err)
		}
	}
	return domain.Wrap(domain.CodeUpstreamError, err)
}
