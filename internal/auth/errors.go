package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Error kinds returned by the auth engine. Callers classify with errors.Is;
// the concrete errors are oops-wrapped and carry a stable code plus context.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmailTaken      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrBadCredential   = errors.New("invalid email or password")
	ErrAlreadyVerified = errors.New("account already verified")
	ErrNoPendingCode   = errors.New("no pending verification code")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrCodeMismatch    = errors.New("invalid verification code")

	ErrUnauthenticated = errors.New("not authorized login again")
	ErrMissingToken    = unauthenticated("missing token")
	ErrInvalidToken    = unauthenticated("invalid token")
	ErrExpiredToken    = unauthenticated("token expired")
	ErrMissingClaim    = unauthenticated("token missing subject")
)

// Codes attached to oops errors. They are stable and safe to log or assert on.
const (
	CodeInvalidInput    = "AUTH_INVALID_INPUT"
	CodeEmailTaken      = "AUTH_EMAIL_TAKEN"
	CodeUserNotFound    = "AUTH_USER_NOT_FOUND"
	CodeBadCredential   = "AUTH_BAD_CREDENTIAL"
	CodeUnauthenticated = "AUTH_UNAUTHENTICATED"
	CodeAlreadyVerified = "AUTH_ALREADY_VERIFIED"
	CodeNoPendingCode   = "OTP_NO_PENDING_CODE"
	CodeCodeExpired     = "OTP_EXPIRED"
	CodeCodeMismatch    = "OTP_MISMATCH"
	CodeDeliveryFailed  = "OTP_DELIVERY_FAILED"
	CodeStoreFailed     = "STORE_FAILED"
	CodeTokenFailed     = "TOKEN_FAILED"
	CodeInternal        = "INTERNAL"
)

// unauthError is a token failure that is also an ErrUnauthenticated.
type unauthError struct{ msg string }

func unauthenticated(msg string) error { return &unauthError{msg: msg} }

func (e *unauthError) Error() string { return e.msg }

func (e *unauthError) Is(target error) bool { return target == ErrUnauthenticated }

// ValidationError describes malformed caller input. Its Reason is safe to show
// to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func invalidInput(op, reason string) error {
	return oops.Code(CodeInvalidInput).With("operation", op).Wrap(&ValidationError{Reason: reason})
}

// fail wraps a sentinel kind with its code and the operation context.
func fail(op string, kind error, kv ...any) error {
	return oops.Code(KindCode(kind)).With("operation", op).With(kv...).Wrap(kind)
}

// KindCode returns the code of the kind err belongs to, or CodeInternal.
func KindCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrEmailTaken):
		return CodeEmailTaken
	case errors.Is(err, ErrUserNotFound):
		return CodeUserNotFound
	case errors.Is(err, ErrBadCredential):
		return CodeBadCredential
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrAlreadyVerified):
		return CodeAlreadyVerified
	case errors.Is(err, ErrNoPendingCode):
		return CodeNoPendingCode
	case errors.Is(err, ErrCodeExpired):
		return CodeCodeExpired
	case errors.Is(err, ErrCodeMismatch):
		return CodeCodeMismatch
	default:
		return CodeInternal
	}
}

// IsCallerFacing reports whether err belongs to a kind whose message can be
// returned to the client as-is.
func IsCallerFacing(err error) bool {
	for _, kind := range []error{
		ErrInvalidInput, ErrEmailTaken, ErrUserNotFound, ErrBadCredential,
		ErrUnauthenticated, ErrAlreadyVerified, ErrNoPendingCode,
		ErrCodeExpired, ErrCodeMismatch,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// PublicMessage returns the client-facing text for a caller-facing error.
// For everything else it returns the empty string.
func PublicMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	if errors.Is(err, ErrUnauthenticated) {
		return ErrUnauthenticated.Error()
	}
	for _, kind := range []error{
		ErrEmailTaken, ErrUserNotFound, ErrBadCredential, ErrAlreadyVerified,
		ErrNoPendingCode, ErrCodeExpired, ErrCodeMismatch,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ""
}
