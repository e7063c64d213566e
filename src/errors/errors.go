package errors

import "errors"

// Error kinds surfaced by the client.
var (
	// ErrAuth covers bad credentials and failed device authentication.
	ErrAuth = errors.New("authentication failed")
	// ErrSessionExpired is returned when a session can no longer be refreshed.
	ErrSessionExpired = errors.New("session expired")
	// ErrConnection is returned when no channel is open or it cannot be opened.
	ErrConnection = errors.New("connection error")
	// ErrRoom is returned when the server rejects room creation or join.
	ErrRoom = errors.New("room error")
	// ErrParse is returned for malformed push payloads.
	ErrParse = errors.New("parse error")
	// ErrOperation covers any other rejected request.
	ErrOperation = errors.New("operation failed")
)

// Error is a classified failure carrying a message fit for display.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind with a display message.
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err under kind. The message defaults to err's text.
func Wrap(kind error, err error, message string) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	if message == "" {
		message = err.Error()
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Message returns the display text for err, or fallback when err has none.
func Message(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
