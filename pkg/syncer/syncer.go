// Package syncer keeps the remote index eventually consistent with the
// durable store. Writes happen in two phases: phase 1 is the synchronous
// durable put (owned by the caller); phase 2 is the best-effort remote add
// performed here. A failed phase 2 transitions the note into a persisted
// retry queue that a periodic flush drains, so remote outages only delay
// indexing, never fail note creation.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nasatome/mcp-zettelkasten-notes-mem0/internal/store"
)

// Index is the write capability of the remote memory service.
type Index interface {
	Add(ctx context.Context, id, title, content string) error
}

// RetryStore is the slice of the durable store the syncer owns: the retry
// queue. Note lifecycle stays with the caller.
type RetryStore interface {
	EnqueueRetry(item *store.RetryItem) error
	ListRetries() ([]*store.RetryItem, error)
	DeleteRetry(id string) error
}

// Config holds syncer configuration.
type Config struct {
	Index  Index
	Store  RetryStore
	Logger zerolog.Logger

	// OnResult, when set, observes every phase-2 completion: the note id and
	// the remote add error (nil on success). Used by tests; never required
	// for correctness.
	OnResult func(id string, err error)
}

// Syncer orchestrates phase-2 remote syncs and retry-queue flushes.
type Syncer struct {
	index    Index
	store    RetryStore
	logger   zerolog.Logger
	onResult func(id string, err error)

	wg      sync.WaitGroup
	flushMu sync.Mutex
}

// New creates a syncer.
func New(cfg Config) *Syncer {
	return &Syncer{
		index:    cfg.Index,
		store:    cfg.Store,
		logger:   cfg.Logger,
		onResult: cfg.OnResult,
	}
}

// SyncAsync starts the best-effort remote sync for a freshly created note.
// It returns immediately; the caller's create operation has already been
// acknowledged by the durable store. On remote failure the note is enqueued
// for retry. Nothing on this path propagates an error to the caller.
func (s *Syncer) SyncAsync(note *store.Note) {
	payload := store.RetryPayload{ID: note.ID, Title: note.Title, Content: note.Content}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.syncOnce(context.Background(), payload)
	}()
}

// syncOnce attempts one remote add and enqueues a retry on failure.
func (s *Syncer) syncOnce(ctx context.Context, payload store.RetryPayload) {
	err := s.index.Add(ctx, payload.ID, payload.Title, payload.Content)
	if err == nil {
		s.logger.Debug().Str("id", payload.ID).Msg("Note synced to remote index")
		s.notify(payload.ID, nil)
		return
	}

	s.logger.Warn().Err(err).Str("id", payload.ID).Msg("Remote sync failed, queueing retry")

	item := &store.RetryItem{
		ID:         payload.ID,
		Payload:    payload,
		EnqueuedAt: time.Now().UnixMilli(),
	}
	if qErr := s.store.EnqueueRetry(item); qErr != nil {
		// Terminal for this attempt only: the note is durable either way and
		// a later SyncAsync or flush for the same id re-enqueues it.
		s.logger.Error().Err(qErr).Str("id", payload.ID).Msg("Failed to enqueue retry")
	}
	s.notify(payload.ID, err)
}

// Flush re-attempts every pending retry item once. Successes are removed
// from the queue; failures stay for the next cycle. There is no backoff and
// no retry cap: remote availability is assumed to eventually recover and
// queue rows are cheap. Items are processed sequentially with no ordering
// guarantee between them.
func (s *Syncer) Flush(ctx context.Context) error {
	if !s.flushMu.TryLock() {
		s.logger.Debug().Msg("Flush already in progress, skipping")
		return nil
	}
	defer s.flushMu.Unlock()

	items, err := s.store.ListRetries()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	start := time.Now()
	drained := 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := s.index.Add(ctx, item.Payload.ID, item.Payload.Title, item.Payload.Content); err != nil {
			s.logger.Warn().Err(err).Str("id", item.ID).Msg("Retry failed, keeping item queued")
			continue
		}
		if err := s.store.DeleteRetry(item.ID); err != nil {
			s.logger.Error().Err(err).Str("id", item.ID).Msg("Failed to remove drained retry item")
			continue
		}
		drained++
	}

	s.logger.Info().
		Int("pending", len(items)).
		Int("drained", drained).
		Dur("duration", time.Since(start)).
		Msg("Retry queue flush completed")

	return nil
}

// Wait blocks until all in-flight SyncAsync goroutines have completed.
// Used on shutdown and in tests.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

func (s *Syncer) notify(id string, err error) {
	if s.onResult != nil {
		s.onResult(id, err)
	}
}
