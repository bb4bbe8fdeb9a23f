package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{CodeWebhookSignature, http.StatusUnauthorized},
		{CodeMissingFields, http.StatusBadRequest},
		{CodeAlreadySettled, http.StatusBadRequest},
		{CodeBelowMinimum, http.StatusUnprocessableEntity},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeDuplicateSettlement, http.StatusConflict},
		{CodeGatewayTimeout, http.StatusBadGateway},
		{CodeIntegrity, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := New(tt.code, "x").HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecoverable(t *testing.T) {
	if !New(CodeMissingFields, "x").Recoverable() {
		t.Error("validation error not recoverable")
	}
	if !New(CodeBelowMinimum, "x").Recoverable() {
		t.Error("business error not recoverable")
	}
	if New(CodeIntegrity, "x").Recoverable() {
		t.Error("credential error reported recoverable")
	}
}

func TestSecuritySensitive(t *testing.T) {
	if !New(CodeIntegrity, "x").SecuritySensitive() {
		t.Error("CRED error not security sensitive")
	}
	if !New(CodeWebhookSignature, "x").SecuritySensitive() {
		t.Error("webhook signature failure not security sensitive")
	}
	if New(CodeBelowMinimum, "x").SecuritySensitive() {
		t.Error("business error reported security sensitive")
	}
}

func TestFromAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := fmt.Errorf("saving: %w", Wrap(CodeInternal, "persist failed", cause))

	appErr := From(wrapped)
	if appErr.Code != CodeInternal {
		t.Errorf("From() code = %s, want %s", appErr.Code, CodeInternal)
	}
	if !errors.Is(wrapped, appErr) {
		t.Error("errors.Is does not match through wrapping")
	}
	if !errors.Is(appErr, cause) {
		t.Error("Unwrap chain lost the cause")
	}

	plain := From(errors.New("boom"))
	if plain.Code != CodeInternal {
		t.Errorf("From(plain) code = %s, want %s", plain.Code, CodeInternal)
	}
}

func TestIsMatchesOnCode(t *testing.T) {
	err := New(CodeDuplicateSettlement, "one message")
	target := New(CodeDuplicateSettlement, "another message")
	if !errors.Is(err, target) {
		t.Error("errors with the same code do not match")
	}
	if errors.Is(err, New(CodeSettlementNotFound, "x")) {
		t.Error("errors with different codes matched")
	}
}

func TestResponseDetailsGating(t *testing.T) {
	err := New(CodeMissingFields, "missing key_secret").
		WithUser("Some required fields are missing.", "Provide key_secret.").
		WithDetails(map[string]any{"missing_fields": []string{"key_secret"}})

	public := err.Response(false)
	if _, ok := public["details"]; ok {
		t.Error("details leaked to non-admin response")
	}
	if public["user_message"] == "" {
		t.Error("user message missing from response")
	}

	admin := err.Response(true)
	if _, ok := admin["details"]; !ok {
		t.Error("details missing from admin response")
	}
}
