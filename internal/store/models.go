// Package store provides SQLite-backed persistence for notes, their link
// lists, and the remote-sync retry queue. It is the durable side of the
// dual-store design: always available, exact-match, source of truth for
// note existence and content.
package store

import "errors"

// Sentinel errors surfaced by the store. Callers compare with errors.Is.
var (
	// ErrNotFound is returned when a referenced note does not exist.
	ErrNotFound = errors.New("store: note not found")

	// ErrDuplicateID is returned when PutNote is called with an id that is
	// already present. With uuid generation this indicates a collision or a
	// generator bug, never a normal condition.
	ErrDuplicateID = errors.New("store: duplicate note id")

	// ErrValidation is returned when caller-supplied input fails the write
	// preconditions (empty title, empty content, empty link endpoint).
	ErrValidation = errors.New("store: validation failed")
)

// Note is one atomic knowledge unit. Title, content, and tags are immutable
// after creation; the link list grows append-only.
type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags,omitempty"`
	Links     []Link   `json:"links"`
	CreatedAt int64    `json:"createdAt"` // unix millis
}

// Link is a directed typed edge between two notes. Links are created in
// forward/inverse pairs and are never removed or deduplicated.
type Link struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// RetryPayload is the denormalized slice of a note that the remote index
// needs. Kept small so queue rows stay cheap.
type RetryPayload struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// RetryItem is one pending remote-sync operation. Keyed by note id:
// re-enqueuing the same id overwrites the prior payload, so there is at most
// one pending retry per note at any time.
type RetryItem struct {
	ID         string       `json:"id"`
	Payload    RetryPayload `json:"payload"`
	EnqueuedAt int64        `json:"enqueuedAt"` // unix millis
}

// Storer defines the interface for durable persistence.
// SQLiteStore is the sole implementation.
type Storer interface {
	// Notes
	PutNote(note *Note) error
	GetNote(id string) (*Note, error)
	UpdateLinks(id string, links []Link) error
	FindByText(substring string, limit int) ([]*Note, error)
	ListNotes(limit int) ([]*Note, error)
	CountNotes() (int, error)

	// Retry queue
	EnqueueRetry(item *RetryItem) error
	ListRetries() ([]*RetryItem, error)
	DeleteRetry(id string) error
	CountRetries() (int, error)

	// Lifecycle
	Close() error
}
