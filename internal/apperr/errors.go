// Package apperr defines the error kinds shared across the publishing pipeline.
package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrAmbiguous   = errors.New("ambiguous match")
	ErrTranslation = errors.New("translation failed")
	ErrPersistence = errors.New("persistence failed")
	ErrLink        = errors.New("link failed")
	ErrOutOfScope  = errors.New("out of scope")
	ErrInvalid     = errors.New("invalid request")
)

// Messages carries a list of user-facing messages alongside an error kind.
// Callers branch on the kind with errors.Is and report Messages verbatim.
type Messages struct {
	Kind error
	List []string
}

func (m *Messages) Error() string {
	if len(m.List) == 0 {
		return m.Kind.Error()
	}
	return m.Kind.Error() + ": " + m.List[0]
}

func (m *Messages) Unwrap() error { return m.Kind }

// WithMessages wraps kind with the given user-facing messages.
func WithMessages(kind error, msgs ...string) error {
	return &Messages{Kind: kind, List: msgs}
}

// MessagesOf returns the user-facing messages carried by err, or err.Error().
func MessagesOf(err error) []string {
	if err == nil {
		return nil
	}
	var m *Messages
	if errors.As(err, &m) && len(m.List) > 0 {
		return m.List
	}
	return []string{err.Error()}
}
