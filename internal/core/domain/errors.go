package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the category of a classified action failure.
type ErrorKind string

const (
	// ErrorKindUnauthenticated indicates no valid session was found.
	ErrorKindUnauthenticated ErrorKind = "unauthenticated"

	// ErrorKindInvalidSession indicates the session lacks required identity fields.
	ErrorKindInvalidSession ErrorKind = "invalid_session"

	// ErrorKindEntitlementRequired indicates the caller's plan is insufficient.
	ErrorKindEntitlementRequired ErrorKind = "entitlement_required"

	// ErrorKindBanned indicates a banned account reached a role-gated action.
	ErrorKindBanned ErrorKind = "banned"

	// ErrorKindInvalidInput indicates the action input failed validation.
	ErrorKindInvalidInput ErrorKind = "invalid_input"

	// ErrorKindMalformedInput indicates the input body could not be decoded.
	ErrorKindMalformedInput ErrorKind = "malformed_input"

	// ErrorKindTimeout indicates the invocation ran past its deadline.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindInvalidMetadata indicates the action was declared with invalid metadata.
	ErrorKindInvalidMetadata ErrorKind = "invalid_metadata"

	// ErrorKindDomain indicates an error raised deliberately by an action handler.
	ErrorKindDomain ErrorKind = "domain"

	// ErrorKindUnknown covers every unrecognized failure.
	ErrorKindUnknown ErrorKind = "unknown"
)

// DefaultServerErrorMessage is shown for every failure that is not safe to
// pass through to the caller.
const DefaultServerErrorMessage = "Something went wrong while executing the operation."

// Sentinel errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrNoInstances  = errors.New("no instances available")
)

// AccessError is raised by the access-control stages.
type AccessError struct {
	Kind    ErrorKind
	Message string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrUnauthenticated creates the error for a missing session.
func ErrUnauthenticated() *AccessError {
	return &AccessError{Kind: ErrorKindUnauthenticated, Message: "Session not found"}
}

// ErrInvalidSession creates the error for a session without a usable user id.
func ErrInvalidSession() *AccessError {
	return &AccessError{Kind: ErrorKindInvalidSession, Message: "Session is not valid"}
}

// ErrEntitlementRequired creates the error for a caller below the required plan.
func ErrEntitlementRequired(required Plan) *AccessError {
	return &AccessError{
		Kind:    ErrorKindEntitlementRequired,
		Message: fmt.Sprintf("Upgrade to %s to access the feature.", required),
	}
}

// ErrBanned creates the error for a banned account.
func ErrBanned() *AccessError {
	return &AccessError{Kind: ErrorKindBanned, Message: "Account is banned"}
}

// ActionError is an error raised by an action handler whose message is safe
// to show to the caller.
type ActionError struct {
	Message string
	Err     error
}

// NewActionError creates an ActionError with a caller-visible message.
func NewActionError(message string) *ActionError {
	return &ActionError{Message: message}
}

// WrapActionError attaches a caller-visible message to an internal error.
func WrapActionError(message string, err error) *ActionError {
	return &ActionError{Message: message, Err: err}
}

func (e *ActionError) Error() string {
	return e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// UserAlreadyRegisteredError is returned when an email is already taken.
type UserAlreadyRegisteredError struct {
	Email string
}

func (e *UserAlreadyRegisteredError) Error() string {
	return "UserAlreadyRegistered: " + e.Email
}

// ValidationError reports invalid action input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DecodeError reports an input body that could not be decoded into the
// action's input type. The decoder detail is kept for logs only.
type DecodeError struct {
	Action string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s input: %v", e.Action, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MetadataError reports an action declared with invalid metadata.
type MetadataError struct {
	Reason string
}

func (e *MetadataError) Error() string {
	return "invalid action metadata: " + e.Reason
}

// MissingContextError is returned when a stage reads a context field that no
// earlier stage added.
type MissingContextError struct {
	Key   ContextKey
	Stage string
}

func (e *MissingContextError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("stage %s requires context field %q which no earlier stage provides", e.Stage, e.Key)
	}
	return fmt.Sprintf("context field %q is not set", e.Key)
}

// FieldExistsError is returned when a stage tries to overwrite a context field.
type FieldExistsError struct {
	Key ContextKey
}

func (e *FieldExistsError) Error() string {
	return fmt.Sprintf("context field %q is already set", e.Key)
}

// ClassifiedError is the caller-safe form of a failure.
type ClassifiedError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// HTTPStatusCode returns the HTTP status used to report the failure.
func (e ClassifiedError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindUnauthenticated, ErrorKindInvalidSession:
		return http.StatusUnauthorized
	case ErrorKindEntitlementRequired:
		return http.StatusPaymentRequired
	case ErrorKindBanned:
		return http.StatusForbidden
	case ErrorKindInvalidInput, ErrorKindMalformedInput, ErrorKindDomain:
		return http.StatusBadRequest
	case ErrorKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Classify maps any error to its caller-safe form. It never fails: errors it
// does not recognize map to DefaultServerErrorMessage.
func Classify(err error) ClassifiedError {
	var (
		accessErr     *AccessError
		registeredErr *UserAlreadyRegisteredError
		actionErr     *ActionError
		validationErr *ValidationError
		decodeErr     *DecodeError
		metadataErr   *MetadataError
	)

	switch {
	case err == nil:
		return ClassifiedError{Kind: ErrorKindUnknown, Message: DefaultServerErrorMessage}
	case errors.As(err, &accessErr):
		return ClassifiedError{Kind: accessErr.Kind, Message: accessErr.Message}
	case errors.As(err, &registeredErr):
		return ClassifiedError{Kind: ErrorKindDomain, Message: registeredErr.Error()}
	case errors.As(err, &actionErr):
		return ClassifiedError{Kind: ErrorKindDomain, Message: actionErr.Message}
	case errors.As(err, &validationErr):
		return ClassifiedError{Kind: ErrorKindInvalidInput, Message: validationErr.Error()}
	case errors.As(err, &decodeErr):
		return ClassifiedError{Kind: ErrorKindMalformedInput, Message: DefaultServerErrorMessage}
	case errors.As(err, &metadataErr):
		return ClassifiedError{Kind: ErrorKindInvalidMetadata, Message: DefaultServerErrorMessage}
	case errors.Is(err, context.DeadlineExceeded):
		return ClassifiedError{Kind: ErrorKindTimeout, Message: DefaultServerErrorMessage}
	default:
		return ClassifiedError{Kind: ErrorKindUnknown, Message: DefaultServerErrorMessage}
	}
}

// ClassifyMessage returns only the caller-visible message of Classify.
func ClassifyMessage(err error) string {
	return Classify(err).Message
}
