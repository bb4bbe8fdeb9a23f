// Package apperrors defines the prefix-coded error taxonomy shared by the
// settlement and credential subsystems. The code prefix determines the HTTP
// status and the propagation policy: VAL_/BIZ_ errors surface directly to the
// caller, everything else is audit-logged before it propagates.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes.
const (
	CodeWebhookSignature = "AUTH_WEBHOOK_SIGNATURE"

	CodeInvalidRequest = "VAL_INVALID_REQUEST"
	CodeMissingFields  = "VAL_MISSING_FIELDS"
	CodeUnknownGateway = "VAL_UNKNOWN_GATEWAY"

	CodeBankDetailsMissing     = "BIZ_BANK_DETAILS_MISSING"
	CodeGatewayNotConfigured   = "BIZ_GATEWAY_NOT_CONFIGURED"
	CodeGatewayDisabled        = "BIZ_GATEWAY_DISABLED"
	CodeNoEligibleTransactions = "BIZ_NO_ELIGIBLE_TRANSACTIONS"
	CodeBelowMinimum           = "BIZ_SETTLEMENT_BELOW_MINIMUM"

	CodeRateLimited = "RATE_LIMITED"

	CodeDuplicateSettlement   = "DATA_DUPLICATE_SETTLEMENT"
	CodeSettlementInProgress  = "DATA_SETTLEMENT_IN_PROGRESS"
	CodeSettlementNotFound    = "DATA_SETTLEMENT_NOT_FOUND"

	CodeInvalidTransition  = "TRANS_INVALID_TRANSITION"
	CodeAlreadySettled     = "TRANS_ALREADY_SETTLED"

	CodeKeyMissing        = "CRED_KEY_MISSING"
	CodeKeyInvalid        = "CRED_KEY_INVALID"
	CodeIntegrity         = "CRED_INTEGRITY"
	CodeAlgorithmMismatch = "CRED_ALGORITHM_MISMATCH"
	CodeEncryptionFailed  = "CRED_ENCRYPTION_FAILED"

	CodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	CodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	CodeGatewayRejected    = "GATEWAY_REJECTED"

	CodeInternal = "SYS_INTERNAL"
)

// Error is a classified domain error. Code prefix drives HTTP mapping and
// logging policy; UserMessage and Suggestions are safe for end users.
type Error struct {
	Code        string
	Message     string
	UserMessage string
	Suggestions []string
	Details     map[string]any
	cause       error
}

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) WithUser(msg string, suggestions ...string) *Error {
	e.UserMessage = msg
	e.Suggestions = suggestions
	return e
}

func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func (e *Error) prefix() string {
	if i := strings.IndexByte(e.Code, '_'); i > 0 {
		return e.Code[:i]
	}
	return e.Code
}

// HTTPStatus maps the code prefix to a response status.
func (e *Error) HTTPStatus() int {
	switch e.prefix() {
	case "AUTH":
		return http.StatusUnauthorized
	case "VAL", "TRANS":
		return http.StatusBadRequest
	case "BIZ":
		return http.StatusUnprocessableEntity
	case "RATE":
		return http.StatusTooManyRequests
	case "DATA":
		return http.StatusConflict
	case "GATEWAY":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Recoverable reports whether the error is an expected caller mistake
// (validation or business rule) rather than an incident.
func (e *Error) Recoverable() bool {
	p := e.prefix()
	return p == "VAL" || p == "BIZ"
}

// SecuritySensitive reports whether the error must raise a security event in
// addition to the audit trail.
func (e *Error) SecuritySensitive() bool {
	return e.prefix() == "CRED" || e.Code == CodeWebhookSignature
}

// Response is the wire shape of an error. Details are included only for
// admin/debug callers.
func (e *Error) Response(includeDetails bool) map[string]any {
	resp := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if e.UserMessage != "" {
		resp["user_message"] = e.UserMessage
	}
	if len(e.Suggestions) > 0 {
		resp["suggestions"] = e.Suggestions
	}
	if includeDetails && len(e.Details) > 0 {
		resp["details"] = e.Details
	}
	return resp
}

// From extracts an *Error from err, or wraps it as SYS_INTERNAL.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(CodeInternal, "internal error", err)
}

// Is matches on code so callers can use errors.Is with sentinel values.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}
