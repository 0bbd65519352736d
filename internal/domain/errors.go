package domain

import (
	"errors"
	"net/http"
)

// ErrorCode clasifica los errores que pueden llegar al usuario.
type ErrorCode string

const (
	CodeInvalidURL            ErrorCode = "InvalidUrl"
	CodeInvalidDocumentFormat ErrorCode = "InvalidDocumentFormat"
	CodeDocumentNotFound      ErrorCode = "DocumentNotFound"
	CodeDocumentPrivate       ErrorCode = "DocumentPrivate"
	CodeDocumentTooLarge      ErrorCode = "DocumentTooLarge"
	CodeEmptyDocument         ErrorCode = "EmptyDocument"
	CodeFetchTimeout          ErrorCode = "FetchTimeout"
	CodeFetchFailed           ErrorCode = "FetchFailed"
	CodeMissingField          ErrorCode = "MissingField"
	CodeInvalidRequest        ErrorCode = "InvalidRequest"
	CodeRateLimited           ErrorCode = "RateLimited"
	CodeQuotaExceeded         ErrorCode = "QuotaExceeded"
	CodeUpstreamError         ErrorCode = "UpstreamError"
	CodeConnectionError       ErrorCode = "ConnectionError"
	CodeStreamParseSkip       ErrorCode = "StreamParseSkip"
)

var publicMessages = map[ErrorCode]string{
	CodeInvalidURL:            "Only https links to docs.google.com or drive.google.com are allowed.",
	CodeInvalidDocumentFormat: "Could not find a document id in that link.",
	CodeDocumentNotFound:      "Document not found. Check the link.",
	CodeDocumentPrivate:       "The document is private. Share it as \"Anyone with the link can view\".",
	CodeDocumentTooLarge:      "The document is too large (max 5 MB).",
	CodeEmptyDocument:         "The document is empty.",
	CodeFetchTimeout:          "Fetching the document timed out. Try again.",
	CodeFetchFailed:           "Could not fetch the document.",
	CodeMissingField:          "question and documentUrl are required.",
	CodeInvalidRequest:        "Invalid request.",
	CodeRateLimited:           "Too many requests. Please wait a moment and try again.",
	CodeQuotaExceeded:         "AI usage quota exceeded.",
	CodeUpstreamError:         "The AI service failed to answer.",
	CodeConnectionError:       "Could not reach the server.",
	CodeStreamParseSkip:       "Skipped a malformed stream record.",
}

var httpStatuses = map[ErrorCode]int{
	CodeInvalidURL:            http.StatusBadRequest,
	CodeInvalidDocumentFormat: http.StatusBadRequest,
	CodeMissingField:          http.StatusBadRequest,
	CodeInvalidRequest:        http.StatusBadRequest,
	CodeDocumentNotFound:      http.StatusNotFound,
	CodeDocumentPrivate:       http.StatusForbidden,
	CodeDocumentTooLarge:      http.StatusRequestEntityTooLarge,
	CodeEmptyDocument:         http.StatusUnprocessableEntity,
	CodeFetchTimeout:          http.StatusGatewayTimeout,
	CodeFetchFailed:           http.StatusBadGateway,
	CodeRateLimited:           http.StatusTooManyRequests,
	CodeQuotaExceeded:         http.StatusPaymentRequired,
	CodeUpstreamError:         http.StatusBadGateway,
}

// PublicMessage devuelve el texto seguro para mostrar al usuario.
func (c ErrorCode) PublicMessage() string {
	if msg, ok := publicMessages[c]; ok {
		return msg
	}
	return "Internal error."
}

// HTTPStatus devuelve el status con el que el proxy responde este código.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := httpStatuses[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error asocia un código público con la causa interna, que solo va a logs.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is compara por código, así errors.Is(err, ErrDocumentPrivate) funciona con causas envueltas.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidURL            = &Error{Code: CodeInvalidURL}
	ErrInvalidDocumentFormat = &Error{Code: CodeInvalidDocumentFormat}
	ErrDocumentNotFound      = &Error{Code: CodeDocumentNotFound}
	ErrDocumentPrivate       = &Error{Code: CodeDocumentPrivate}
	ErrDocumentTooLarge      = &Error{Code: CodeDocumentTooLarge}
	ErrEmptyDocument         = &Error{Code: CodeEmptyDocument}
	ErrFetchTimeout          = &Error{Code: CodeFetchTimeout}
	ErrFetchFailed           = &Error{Code: CodeFetchFailed}
	ErrMissingField          = &Error{Code: CodeMissingField}
	ErrInvalidRequest        = &Error{Code: CodeInvalidRequest}
	ErrRateLimited           = &Error{Code: CodeRateLimited}
	ErrQuotaExceeded         = &Error{Code: CodeQuotaExceeded}
	ErrUpstreamError         = &Error{Code: CodeUpstreamError}
	ErrConnectionError       = &Error{Code: CodeConnectionError}
)

// Wrap crea un *Error con código y causa.
func Wrap(code ErrorCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf extrae el código de un error; los errores sin clasificar se tratan como UpstreamError.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUpstreamError
}
