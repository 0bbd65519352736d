package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docs-chat/internal/domain"
	"docs-chat/internal/service"
)

const relayBufferSize = 32 << 10

// ChatHandler expone el proxy de chat y los endpoints auxiliares.
type ChatHandler struct {
	logger  *zap.Logger
	chatSvc *service.ChatService
}

func NewChatHandler(logger *zap.Logger, chatSvc *service.ChatService) *ChatHandler {
	return &ChatHandler{
		logger:  logger,
		chatSvc: chatSvc,
	}
}

type chatRequest struct {
	Question            string           `json:"question"`
	DocumentURL         string           `json:"documentUrl"`
	ConversationHistory []domain.Message `json:"conversationHistory"`
}

type documentRequest struct {
	DocumentURL string `json:"documentUrl"`
}

// Chat maneja POST /api/chat y relaya el stream del modelo tal cual llega.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		h.writeError(c, domain.Wrap(domain.CodeInvalidRequest, err))
		return
	}

	body, err := h.chatSvc.OpenStream(c.Request.Context(), service.ChatRequest{
		Question:    req.Question,
		DocumentURL: req.DocumentURL,
		History:     req.ConversationHistory,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer body.Close()

	h.relay(c, body)
}

// CheckDocument maneja POST /api/document: confirma que el documento es accesible.
func (h *ChatHandler) CheckDocument(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid document request", zap.Error(err))
		h.writeError(c, domain.Wrap(domain.CodeInvalidRequest, err))
		return
	}

	doc, err := h.chatSvc.CheckDocument(c.Request.Context(), req.DocumentURL)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documentId": doc.ID, "bytes": len(doc.Text)})
}

// Health maneja GET /health.
func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "model": h.chatSvc.Model()})
}

// Usage maneja GET /api/usage con los contadores del día.
func (h *ChatHandler) Usage(c *gin.Context) {
	counts, err := h.chatSvc.Usage(c.Request.Context())
	if err != nil {
		h.logger.Error("usage counts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read usage"})
		return
	}
	if counts == nil {
		counts = map[string]int64{}
	}
	c.JSON(http.StatusOK, gin.H{"day": time.Now().UTC().Format("2006-01-02"), "counts": counts})
}

func (h *ChatHandler) relay(c *gin.Context, body io.Reader) {
	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ctx := c.Request.Context()
	buf := make([]byte, relayBufferSize)
	relayed := 0
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				h.logger.Info("client went away", zap.Error(werr), zap.Int("bytes", relayed))
				return
			}
			c.Writer.Flush()
			relayed += n
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				h.logger.Info("stream cancelled by client", zap.Int("bytes", relayed))
				return
			}
			h.logger.Error("upstream stream interrupted", zap.Error(err), zap.Int("bytes", relayed))
			abortConnection(c)
			return
		}
	}
}

// abortConnection cierra la conexión sin terminar la respuesta chunked, para que
// el cliente vea un corte de transporte y no un stream completo.
func abortConnection(c *gin.Context) {
	hj, ok := c.Writer.(http.Hijacker)
	if !ok {
		return
	}
	// gin asume que el writer subyacente soporta Hijack y entra en pánico si no.
	defer func() { _ = recover() }()
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}

func (h *ChatHandler) writeError(c *gin.Context, err error) {
	code := domain.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Error("chat request failed", zap.String("code", string(code)), zap.Error(err))
	} else {
		h.logger.Info("chat request rejected", zap.String("code", string(code)), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code.PublicMessage(), "code": code})
}
