// Package notes is the service facade over the dual-store note system. It
// owns input validation and id generation, and wires the durable store, the
// remote syncer, the link graph, and the read router behind four operations:
// CreateNote, GetNote, SearchNotes, CreateLink.
package notes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nasatome/mcp-zettelkasten-notes-mem0/internal/store"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/router"
)

// ValidationError reports caller input rejected before any write happened.
// It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, store.ErrValidation) match across packages.
func (e *ValidationError) Is(target error) bool {
	return target == store.ErrValidation
}

// NoteStore is the write capability the service needs from the durable store.
type NoteStore interface {
	PutNote(note *store.Note) error
}

// Syncer starts the best-effort remote indexing of a new note.
type Syncer interface {
	SyncAsync(note *store.Note)
}

// Linker creates bidirectional links between existing notes.
type Linker interface {
	CreateLink(fromID, toID, linkType string) error
}

// Reader answers note reads, remote-first with durable fallback.
type Reader interface {
	GetNote(ctx context.Context, id string) (*router.NoteView, error)
	SearchNotes(ctx context.Context, query string) (*router.SearchResults, error)
}

// Config holds the service's collaborators.
type Config struct {
	Store  NoteStore
	Syncer Syncer
	Linker Linker
	Reader Reader
	Logger zerolog.Logger
}

// Service implements the note operations.
type Service struct {
	store  NoteStore
	syncer Syncer
	linker Linker
	reader Reader
	logger zerolog.Logger
}

// New creates a service.
func New(cfg Config) *Service {
	return &Service{
		store:  cfg.Store,
		syncer: cfg.Syncer,
		linker: cfg.Linker,
		reader: cfg.Reader,
		logger: cfg.Logger,
	}
}

// CreateNote validates the input, persists the note durably, and kicks off
// the remote sync. It returns as soon as the durable write is acknowledged;
// remote indexing completes in the background and cannot fail the call.
func (s *Service) CreateNote(ctx context.Context, title, content string, tags []string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", &ValidationError{Field: "title", Reason: "must be non-empty"}
	}
	if strings.TrimSpace(content) == "" {
		return "", &ValidationError{Field: "content", Reason: "must be non-empty"}
	}

	note := &store.Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Tags:      tags,
		Links:     []store.Link{},
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := s.store.PutNote(note); err != nil {
		return "", err
	}
	s.syncer.SyncAsync(note)

	s.logger.Info().Str("id", note.ID).Str("title", note.Title).Msg("Note created")
	return note.ID, nil
}

// GetNote fetches one note by id. The Via field of the result names the
// store that answered.
func (s *Service) GetNote(ctx context.Context, id string) (*router.NoteView, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &ValidationError{Field: "id", Reason: "must be non-empty"}
	}
	return s.reader.GetNote(ctx, id)
}

// SearchNotes runs a query across the dual stores.
func (s *Service) SearchNotes(ctx context.Context, query string) (*router.SearchResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "query", Reason: "must be non-empty"}
	}
	return s.reader.SearchNotes(ctx, query)
}

// CreateLink links two existing notes bidirectionally: a forward edge of the
// given type and an inverse edge typed with a "_by" suffix.
func (s *Service) CreateLink(ctx context.Context, fromID, toID, linkType string) error {
	if strings.TrimSpace(fromID) == "" {
		return &ValidationError{Field: "from", Reason: "must be non-empty"}
	}
	if strings.TrimSpace(toID) == "" {
		return &ValidationError{Field: "to", Reason: "must be non-empty"}
	}
	if strings.TrimSpace(linkType) == "" {
		return &ValidationError{Field: "type", Reason: "must be non-empty"}
	}
	return s.linker.CreateLink(fromID, toID, linkType)
}
