package store

import "errors"

var (
	// ErrUnavailable is returned when no host document is attached.
	ErrUnavailable = errors.New("document unavailable")
	// ErrLocked is returned when another writer holds the document lock.
	ErrLocked = errors.New("document locked")
)

// Document is the host note that stores the encoded task state. WriteRaw
// stages text and previews; NotifyChanged persists what was staged.
type Document interface {
	ReadRaw() (string, error)
	WriteRaw(text, previewPlain, previewHTML string) error
	NotifyChanged() error
}

type staged struct {
	text  string
	plain string
	html  string
}
