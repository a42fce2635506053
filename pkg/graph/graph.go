// Package graph maintains typed, bidirectional links between notes. A link
// is stored twice: a forward edge of the requested type on the source note
// and an inverse edge (type suffixed with "_by") on the target note. Edges
// are an append-only multiset; creating the same link twice stores it twice.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nasatome/mcp-zettelkasten-notes-mem0/internal/store"
)

// LinkStore is the slice of the durable store the graph needs.
type LinkStore interface {
	GetNote(id string) (*store.Note, error)
	UpdateLinks(id string, links []store.Link) error
}

// LinkGraph creates and maintains note links.
type LinkGraph struct {
	store  LinkStore
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-note-id
}

// New creates a link graph over the given store.
func New(st LinkStore, logger zerolog.Logger) *LinkGraph {
	return &LinkGraph{
		store:  st,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// CreateLink links fromID to toID with the given type, and toID back to
// fromID with the inverse type. Both notes must exist. The two per-note
// locks are taken in sorted id order so concurrent CreateLink calls over
// overlapping notes cannot deadlock, and neither note's link list is lost
// to a concurrent read-modify-write.
func (g *LinkGraph) CreateLink(fromID, toID, linkType string) error {
	if fromID == "" || toID == "" || linkType == "" {
		return fmt.Errorf("%w: from, to and type must be non-empty", store.ErrValidation)
	}

	unlock := g.lockPair(fromID, toID)
	defer unlock()

	fromNote, err := g.store.GetNote(fromID)
	if err != nil {
		return err
	}
	toNote, err := g.store.GetNote(toID)
	if err != nil {
		return err
	}

	forward := store.Link{From: fromID, To: toID, Type: linkType}
	inverse := store.Link{From: toID, To: fromID, Type: linkType + "_by"}

	if fromID == toID {
		// Self-link: both edges land on the same list in one write, or the
		// second write would clobber the first.
		if err := g.store.UpdateLinks(fromID, append(fromNote.Links, forward, inverse)); err != nil {
			return err
		}
	} else {
		if err := g.store.UpdateLinks(fromID, append(fromNote.Links, forward)); err != nil {
			return err
		}
		if err := g.store.UpdateLinks(toID, append(toNote.Links, inverse)); err != nil {
			// Forward edge persisted, inverse did not: surface the error so
			// the caller can retry; a retried link appends a second forward
			// edge, consistent with the multiset semantics.
			return err
		}
	}

	g.logger.Debug().
		Str("from", fromID).
		Str("to", toID).
		Str("type", linkType).
		Msg("Link created")

	return nil
}

// lockPair locks the mutexes for both ids in sorted order and returns an
// unlocker. A self-link locks once.
func (g *LinkGraph) lockPair(a, b string) func() {
	ids := []string{a, b}
	sort.Strings(ids)
	if ids[0] == ids[1] {
		ids = ids[:1]
	}

	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		mu := g.noteLock(id)
		mu.Lock()
		held = append(held, mu)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (g *LinkGraph) noteLock(id string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	mu, ok := g.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		g.locks[id] = mu
	}
	return mu
}
