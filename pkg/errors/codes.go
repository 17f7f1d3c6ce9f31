package errors

import "net/http"

// Code is the stable, client-visible identifier of a failure class.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Booking and settlement codes.
const (
	CodeInvalidTransition      Code = "INVALID_STATE_TRANSITION"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeOTPInvalid             Code = "OTP_INVALID"
	CodeOTPExpired             Code = "OTP_EXPIRED"
	CodeOTPAlreadyConsumed     Code = "OTP_ALREADY_CONSUMED"
	CodeOTPLocked              Code = "OTP_LOCKED"
	CodeSignatureRejected      Code = "SIGNATURE_REJECTED"
	CodeReconciliationTimeout  Code = "RECONCILIATION_TIMEOUT"
)

// PaymentPendingMessage is the only text callers see for unresolved settlements.
const PaymentPendingMessage = "payment could not be confirmed yet, please check back"

// Metadata is how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
	CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
	CodeIdempotency:   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
	CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
	CodeInternal:      {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},

	CodeInvalidTransition:      {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "booking is not in a state that allows this action", DetailsAllowed: true},
	CodeConcurrentModification: {HTTPStatus: http.StatusConflict, Retryable: true, PublicMessage: "booking was modified concurrently, refresh and retry"},
	CodeOTPInvalid:             {HTTPStatus: http.StatusBadRequest, PublicMessage: "completion code is incorrect", DetailsAllowed: true},
	CodeOTPExpired:             {HTTPStatus: http.StatusGone, PublicMessage: "completion code has expired"},
	CodeOTPAlreadyConsumed:     {HTTPStatus: http.StatusConflict, PublicMessage: "completion code was already used"},
	CodeOTPLocked:              {HTTPStatus: http.StatusLocked, PublicMessage: "too many attempts, request a new completion code"},
	CodeSignatureRejected:      {HTTPStatus: http.StatusBadRequest, PublicMessage: "payment could not be verified"},
	CodeReconciliationTimeout:  {HTTPStatus: http.StatusAccepted, Retryable: true, PublicMessage: PaymentPendingMessage},
}

// MetadataFor returns the rendering for code. Unknown codes render as internal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}
