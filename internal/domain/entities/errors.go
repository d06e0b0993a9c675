package entities

import "errors"

// ErrorKind classifies domain failures so adapters can translate them without string matching.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindConflict
	KindAuthentication
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	default:
		return "internal"
	}
}

// DomainError is returned by every task operation that fails for a domain reason.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Details []string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...string) *DomainError {
	return &DomainError{Kind: KindValidation, Message: message, Details: details}
}

func NewNotFoundError(message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: message}
}

func NewAuthorizationError(message string) *DomainError {
	return &DomainError{Kind: KindAuthorization, Message: message}
}

func NewConflictError(message string) *DomainError {
	return &DomainError{Kind: KindConflict, Message: message}
}

func NewAuthenticationError(message string) *DomainError {
	return &DomainError{Kind: KindAuthentication, Message: message}
}

// Common errors
var (
	ErrTaskNotFound     = NewNotFoundError("task not found")
	ErrUserNotFound     = NewNotFoundError("user not found")
	ErrSubTaskNotFound  = NewNotFoundError("subtask not found")
	ErrNotAuthorized    = NewAuthorizationError("not authorized")
	ErrAdminOnly        = NewAuthorizationError("admin access required")
	ErrVersionConflict  = NewConflictError("task was modified concurrently")
	ErrEmailTaken       = NewConflictError("email already registered")
	ErrInvalidCreds     = NewAuthenticationError("invalid credentials")
	ErrInvalidToken     = NewAuthenticationError("invalid or expired token")
	ErrAssignmentFailed = errors.New("task assignment failed")
)

// KindOf reports the domain kind of err, or KindInternal for anything else.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
