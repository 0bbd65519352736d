package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"docs-chat/internal/domain"
)

const (
	DefaultMaxBytes      int64 = 5_242_880
	DefaultFetchTimeout        = 10 * time.Second
	DefaultExportBaseURL       = "https://docs.google.com"
)

// allowedHosts es la lista cerrada de hosts aceptados; el fetch sale del
// servidor, así que cualquier otro host sería un vector de SSRF.
var allowedHosts = map[string]struct{}{
	"docs.google.com":  {},
	"drive.google.com": {},
}

// idPatterns se evalúan en orden; gana el primero que matchea.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/d/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`^([A-Za-z0-9_-]+)$`),
}

// Document es el texto plano de un Google Doc, válido solo durante un request.
type Document struct {
	ID   string
	Text string
}

// Limits agrupa los límites del fetch.
type Limits struct {
	MaxBytes int64
	Timeout  time.Duration
}

// Fetcher descarga documentos como texto plano usando el endpoint de export.
type Fetcher struct {
	client        *http.Client
	exportBaseURL string
	limits        Limits
	logger        *zap.Logger
}

// NewFetcher construye un Fetcher. Valores cero en limits usan los defaults.
func NewFetcher(httpClient *http.Client, exportBaseURL string, limits Limits, logger *zap.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if exportBaseURL == "" {
		exportBaseURL = DefaultExportBaseURL
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}
	if limits.Timeout <= 0 {
		limits.Timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:        httpClient,
		exportBaseURL: strings.TrimRight(exportBaseURL, "/"),
		limits:        limits,
		logger:        logger,
	}
}

// ValidateURL exige https y un host de la lista permitida.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, domain.Wrap(domain.CodeInvalidURL, err)
	}
	if u.Scheme != "https" {
		return nil, domain.Wrap(domain.CodeInvalidURL, fmt.Errorf("scheme %q not allowed", u.Scheme))
	}
	if _, ok := allowedHosts[strings.ToLower(u.Hostname())]; !ok || u.Port() != "" {
		return nil, domain.Wrap(domain.CodeInvalidURL, fmt.Errorf("host %q not allowed", u.Host))
	}
	return u, nil
}

// ExtractDocumentID obtiene el id del documento: id en el path, luego query `id=`, luego id pelado.
func ExtractDocumentID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, re := range idPatterns {
		if m := re.FindStringSubmatch(raw); len(m) == 2 {
			return m[1], nil
		}
	}
	return "", domain.ErrInvalidDocumentFormat
}

// ResolveID valida la URL y devuelve el id del documento sin tocar la red.
func ResolveID(raw string) (string, error) {
	if _, err := ValidateURL(raw); err != nil {
		return "", err
	}
	return ExtractDocumentID(raw)
}

// ExportURL arma el endpoint de export en texto plano para un id.
func (f *Fetcher) ExportURL(id string) string {
	return f.exportBaseURL + "/document/d/" + url.PathEscape(id) + "/export?format=txt"
}

// Fetch valida la URL, descarga el documento y aplica los límites de tamaño y tiempo.
// Hace una sola llamada de red y no reintenta.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	id, err := ResolveID(rawURL)
	if err != nil {
		return Document{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.limits.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ExportURL(id), nil)
	if err != nil {
		return Document{}, domain.Wrap(domain.CodeFetchFailed, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return Document{}, domain.Wrap(domain.CodeFetchTimeout, err)
		}
		return Document{}, domain.Wrap(domain.CodeFetchFailed, fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Document{}, domain.Wrap(domain.CodeDocumentNotFound, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusForbidden:
		return Document{}, domain.Wrap(domain.CodeDocumentPrivate, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		f.logger.Warn("document fetch failed",
			zap.String("document_id", id),
			zap.Int("status", resp.StatusCode),
		)
		return Document{}, domain.Wrap(domain.CodeFetchFailed, fmt.Errorf("status %d", resp.StatusCode))
	}

	if resp.ContentLength > f.limits.MaxBytes {
		return Document{}, domain.Wrap(domain.CodeDocumentTooLarge,
			fmt.Errorf("content-length %d exceeds %d", resp.ContentLength, f.limits.MaxBytes))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.limits.MaxBytes+1))
	if err != nil {
		if isTimeout(ctx, err) {
			return Document{}, domain.Wrap(domain.CodeFetchTimeout, err)
		}
		return Document{}, domain.Wrap(domain.CodeFetchFailed, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > f.limits.MaxBytes {
		return Document{}, domain.Wrap(domain.CodeDocumentTooLarge,
			fmt.Errorf("body exceeds %d bytes", f.limits.MaxBytes))
	}

	body = bytes.TrimPrefix(body, []byte("\ufeff"))
	text := string(body)
	if strings.TrimSpace(text) == "" {
		return Document{}, domain.ErrEmptyDocument
	}

	f.logger.Debug("document fetched", zap.String("document_id", id), zap.Int("bytes", len(body)))
	return Document{ID: id, Text: text}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
