package core

// Error codes surfaced to the initiating connection.
const (
	ErrCodeUnauthenticated  = "unauthenticated"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeNotFound         = "not_found"
	ErrCodeAlreadyMember    = "already_member"
	ErrCodeAlreadyVoted     = "already_voted"
	ErrCodeBanned           = "banned"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeInternal         = "internal"
)

// CoreError wraps a code and human-readable message. It is always
// recovered at the handler boundary and delivered to the calling
// connection only, never to other rooms.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// IsInfo reports whether the error describes an idempotent no-op that
// should be surfaced as an info event instead of an error event.
func (e *CoreError) IsInfo() bool {
	return e.Code == ErrCodeAlreadyMember || e.Code == ErrCodeAlreadyVoted
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

func permissionDenied(msg string) *CoreError {
	return coreError(ErrCodePermissionDenied, msg)
}

func notFound(msg string) *CoreError {
	return coreError(ErrCodeNotFound, msg)
}
