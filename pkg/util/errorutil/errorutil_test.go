package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestFromStore(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"no rows", pgx.ErrNoRows, "NOT_FOUND", http.StatusNotFound},
		{"wrapped no rows", fmt.Errorf("get ticket: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "chat_messages_ticket_id_fkey"}, "NOT_FOUND", http.StatusNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, "CONFLICT", http.StatusBadRequest},
		{"other pg error", &pgconn.PgError{Code: "57014"}, "STORE_ERROR", http.StatusInternalServerError},
		{"plain error", errors.New("connection reset"), "STORE_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(FromStore(tt.err, "ticket"))
			if got.Code != tt.wantCode {
				t.Errorf("code: got %s, want %s", got.Code, tt.wantCode)
			}
			if got.HTTPStatus != tt.wantStatus {
				t.Errorf("status: got %d, want %d", got.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestFromStore_PassesDomainErrorsThrough(t *testing.T) {
	orig := NewValidationError("title required", nil)
	if got := FromStore(orig, "ticket"); got != orig {
		t.Fatalf("got %v, want original error", got)
	}
	if FromStore(nil, "ticket") != nil {
		t.Fatal("nil should stay nil")
	}
}

func TestFromStore_NotFoundMessageNamesResource(t *testing.T) {
	err := FromStore(pgx.ErrNoRows, "ticket")
	if err.Error() != "ticket not found" {
		t.Fatalf("message: got %q", err.Error())
	}
	if !IsNotFound(err) {
		t.Fatal("IsNotFound should be true")
	}
}

func TestToDomainError_UnknownIsInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	if de.Code != "INTERNAL_ERROR" || de.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("got %s/%d", de.Code, de.HTTPStatus)
	}
	if de.Unwrap() == nil {
		t.Fatal("internal error should keep cause")
	}
}
