package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	cause := errors.New("status 403")
	err := fmt.Errorf("fetch: %w", Wrap(CodeDocumentPrivate, cause))

	if !errors.Is(err, ErrDocumentPrivate) {
		t.Fatalf("expected errors.Is to match DocumentPrivate")
	}
	if errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("did not expect match with DocumentNotFound")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected the cause to stay reachable")
	}
	if CodeOf(err) != CodeDocumentPrivate {
		t.Fatalf("expected DocumentPrivate, got %s", CodeOf(err))
	}
}

func TestCodeOfUnknownError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeUpstreamError {
		t.Fatalf("expected UpstreamError, got %s", got)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeMissingField:     http.StatusBadRequest,
		CodeDocumentPrivate:  http.StatusForbidden,
		CodeDocumentTooLarge: http.StatusRequestEntityTooLarge,
		CodeRateLimited:      http.StatusTooManyRequests,
		CodeQuotaExceeded:    http.StatusPaymentRequired,
		CodeUpstreamError:    http.StatusBadGateway,
		ErrorCode("other"):   http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Fatalf("%s: expected %d, got %d", code, want, got)
		}
	}
}

func TestPublicMessageDoesNotLeakCause(t *testing.T) {
	err := Wrap(CodeUpstreamError, errors.New("secret upstream body"))
	msg := CodeOf(err).PublicMessage()
	if msg == "" || msg == err.Error() {
		t.Fatalf("unexpected public message %q", msg)
	}
}
