package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
	"github.com/rs/zerolog"
)

// SQLiteStore is the SQLite-backed data store, built on the cgo-free
// ncruces/go-sqlite3 database/sql driver.
// Thread-safe; the handle is process-wide, opened once and closed once.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger zerolog.Logger
}

// schema defines the two record sets of the durable layer: notes (with tags
// and link lists as JSON columns) and the remote-sync retry queue.
const schema = `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    tags TEXT,
    links TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);

CREATE TABLE IF NOT EXISTS retry_queue (
    id TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    enqueued_at INTEGER NOT NULL
);
`

// NewSQLiteStore creates a new in-memory SQLite store. Used by tests.
func NewSQLiteStore(logger zerolog.Logger) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:", logger)
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// Notes
// =============================================================================

// PutNote inserts a new immutable note record. The insert is atomic and
// durable before PutNote returns. Returns ErrDuplicateID if the id exists.
func (s *SQLiteStore) PutNote(note *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM notes WHERE id = ? LIMIT 1`, note.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateID, note.ID)
	}
	if err != sql.ErrNoRows {
		return err
	}

	tagsJSON, err := marshalTags(note.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	linksJSON, err := marshalLinks(note.Links)
	if err != nil {
		return fmt.Errorf("failed to marshal links: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO notes (id, title, content, tags, links, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, note.ID, note.Title, note.Content, tagsJSON, linksJSON, note.CreatedAt)

	return err
}

// GetNote retrieves a note by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetNote(id string) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, title, content, tags, links, created_at
		FROM notes WHERE id = ?
	`, id)

	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return note, nil
}

// UpdateLinks replaces the link list of an existing note.
// Returns ErrNotFound if the note is absent.
func (s *SQLiteStore) UpdateLinks(id string, links []Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	linksJSON, err := marshalLinks(links)
	if err != nil {
		return fmt.Errorf("failed to marshal links: %w", err)
	}

	res, err := s.db.Exec(`UPDATE notes SET links = ? WHERE id = ?`, linksJSON, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// FindByText returns notes whose title or content contains the substring,
// case-insensitive, newest first, bounded to limit.
func (s *SQLiteStore) FindByText(substring string, limit int) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(substring)
	rows, err := s.db.Query(`
		SELECT id, title, content, tags, links, created_at
		FROM notes
		WHERE instr(lower(title), ?) > 0 OR instr(lower(content), ?) > 0
		ORDER BY created_at DESC
		LIMIT ?
	`, needle, needle, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotes(rows)
}

// ListNotes returns notes newest first, bounded to limit.
// A limit <= 0 returns all notes.
func (s *SQLiteStore) ListNotes(limit int) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 means unbounded
	}
	rows, err := s.db.Query(`
		SELECT id, title, content, tags, links, created_at
		FROM notes ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotes(rows)
}

// CountNotes returns the total number of notes.
func (s *SQLiteStore) CountNotes() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&count)
	return count, err
}

// =============================================================================
// Retry queue
// =============================================================================

// EnqueueRetry writes or overwrites a pending retry keyed by note id.
// Latest-wins: at most one pending retry per note.
func (s *SQLiteStore) EnqueueRetry(item *RetryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal retry payload: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO retry_queue (id, payload, enqueued_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			enqueued_at = excluded.enqueued_at
	`, item.ID, string(payloadJSON), item.EnqueuedAt)

	return err
}

// ListRetries returns all pending retry items. No ordering is guaranteed;
// each item is independent.
func (s *SQLiteStore) ListRetries() ([]*RetryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, payload, enqueued_at FROM retry_queue`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*RetryItem
	for rows.Next() {
		var item RetryItem
		var payloadJSON string
		if err := rows.Scan(&item.ID, &payloadJSON, &item.EnqueuedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadJSON), &item.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal retry payload %s: %w", item.ID, err)
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

// DeleteRetry removes a retry item by note id. Deleting an absent id is
// not an error; a concurrent flush may already have drained it.
func (s *SQLiteStore) DeleteRetry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM retry_queue WHERE id = ?", id)
	return err
}

// CountRetries returns the number of pending retry items.
func (s *SQLiteStore) CountRetries() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM retry_queue").Scan(&count)
	return count, err
}

// =============================================================================
// Helpers
// =============================================================================

func marshalTags(tags []string) (interface{}, error) {
	if tags == nil {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalLinks(links []Link) (string, error) {
	if links == nil {
		links = []Link{}
	}
	b, err := json.Marshal(links)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*Note, error) {
	var note Note
	var tagsJSON sql.NullString
	var linksJSON string

	if err := row.Scan(&note.ID, &note.Title, &note.Content, &tagsJSON, &linksJSON, &note.CreatedAt); err != nil {
		return nil, err
	}

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &note.Tags); err != nil {
			note.Tags = nil
		}
	}
	note.Links = []Link{}
	if linksJSON != "" {
		if err := json.Unmarshal([]byte(linksJSON), &note.Links); err != nil {
			return nil, fmt.Errorf("failed to unmarshal links for %s: %w", note.ID, err)
		}
	}

	return &note, nil
}

func scanNotes(rows *sql.Rows) ([]*Note, error) {
	var notes []*Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
