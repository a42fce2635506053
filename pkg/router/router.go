// Package router answers reads against the dual stores. The remote semantic
// index is tried first inside its timeout; any remote failure degrades to the
// durable store instead of erroring. Every answer is tagged with the store
// that produced it so callers can tell a semantic result from an exact one.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nasatome/mcp-zettelkasten-notes-mem0/internal/store"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/match"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/remote"
)

// Via tags name the store a result came from.
const (
	ViaRemote  = "remote"
	ViaDurable = "durable"
)

// searchLimit caps results on both paths.
const searchLimit = 10

// Searcher is the read capability of the remote memory service.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]remote.Match, error)
}

// NoteReader is the slice of the durable store the router reads from.
type NoteReader interface {
	GetNote(id string) (*store.Note, error)
	FindByText(substring string, limit int) ([]*store.Note, error)
	ListNotes(limit int) ([]*store.Note, error)
}

// NoteView is a single-note read result. Title, Tags and Links are only
// populated on the durable path; the remote index stores a flat projection.
type NoteView struct {
	ID      string       `json:"id"`
	Title   string       `json:"title,omitempty"`
	Content string       `json:"content"`
	Tags    []string     `json:"tags,omitempty"`
	Links   []store.Link `json:"links,omitempty"`
	Via     string       `json:"via"`
}

// SearchResult is one search hit in the normalized shape shared by both
// paths.
type SearchResult struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// SearchResults is a search answer: the hits plus the store that served them.
type SearchResults struct {
	Results []SearchResult `json:"results"`
	Via     string         `json:"via"`
}

// Config holds router configuration.
type Config struct {
	Remote Searcher
	Store  NoteReader
	Logger zerolog.Logger
}

// Router serves reads, remote-first with durable fallback.
type Router struct {
	remote Searcher
	store  NoteReader
	logger zerolog.Logger
}

// New creates a router.
func New(cfg Config) *Router {
	return &Router{
		remote: cfg.Remote,
		store:  cfg.Store,
		logger: cfg.Logger,
	}
}

// GetNote fetches one note by id. The remote index is asked first: a memory
// tagged with the id is a semantic hit and comes back as via=remote. On a
// remote miss, error, or timeout the durable store is consulted. A note
// absent from both yields store.ErrNotFound.
func (r *Router) GetNote(ctx context.Context, id string) (*NoteView, error) {
	matches, err := r.remote.Search(ctx, id, searchLimit)
	if err == nil {
		for _, m := range matches {
			if m.ID == id {
				return &NoteView{ID: id, Content: m.Content, Via: ViaRemote}, nil
			}
		}
	} else if !errors.Is(err, remote.ErrUnavailable) {
		return nil, err
	} else {
		r.logger.Debug().Err(err).Str("id", id).Msg("Remote lookup failed, falling back to durable store")
	}

	note, err := r.store.GetNote(id)
	if err != nil {
		return nil, err
	}
	return &NoteView{
		ID:      note.ID,
		Title:   note.Title,
		Content: note.Content,
		Tags:    note.Tags,
		Links:   note.Links,
		Via:     ViaDurable,
	}, nil
}

// SearchNotes runs a query against the remote index, degrading to durable
// substring search when the remote is unreachable. Both paths produce the
// same result shape; an empty remote answer is still a remote answer, not a
// reason to fall back.
func (r *Router) SearchNotes(ctx context.Context, query string) (*SearchResults, error) {
	canonical := match.Canonicalize(query)

	matches, err := r.remote.Search(ctx, canonical, searchLimit)
	if err == nil {
		results := make([]SearchResult, 0, len(matches))
		for _, m := range matches {
			results = append(results, SearchResult{ID: m.ID, Content: m.Content})
		}
		return &SearchResults{Results: results, Via: ViaRemote}, nil
	}
	if !errors.Is(err, remote.ErrUnavailable) {
		return nil, err
	}
	r.logger.Debug().Err(err).Str("query", query).Msg("Remote search failed, falling back to durable store")

	results, err := r.searchDurable(canonical)
	if err != nil {
		return nil, err
	}
	return &SearchResults{Results: results, Via: ViaDurable}, nil
}

// searchDurable is the degraded search path: exact substring match over
// title and content, widened with a stopword-stripped pass and with notes
// whose tags occur in the query.
func (r *Router) searchDurable(canonical string) ([]SearchResult, error) {
	seen := make(map[string]bool)
	results := make([]SearchResult, 0, searchLimit)

	appendNotes := func(notes []*store.Note) {
		for _, n := range notes {
			if len(results) >= searchLimit || seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			results = append(results, SearchResult{ID: n.ID, Content: n.Content})
		}
	}

	notes, err := r.store.FindByText(canonical, searchLimit)
	if err != nil {
		return nil, err
	}
	appendNotes(notes)

	if stripped := match.StripStopwords(canonical); stripped != "" && stripped != canonical && len(results) < searchLimit {
		notes, err := r.store.FindByText(stripped, searchLimit)
		if err != nil {
			return nil, err
		}
		appendNotes(notes)
	}

	if len(results) < searchLimit {
		tagged, err := r.searchByTags(canonical)
		if err != nil {
			return nil, err
		}
		appendNotes(tagged)
	}

	return results, nil
}

// searchByTags returns notes whose tags appear as whole tokens in the query.
func (r *Router) searchByTags(canonical string) ([]*store.Note, error) {
	all, err := r.store.ListNotes(0)
	if err != nil {
		return nil, fmt.Errorf("tag scan: %w", err)
	}

	byTag := make(map[string][]*store.Note)
	tags := make([]string, 0, len(all))
	for _, n := range all {
		for _, tag := range n.Tags {
			key := match.Canonicalize(tag)
			if key == "" {
				continue
			}
			if _, ok := byTag[key]; !ok {
				tags = append(tags, key)
			}
			byTag[key] = append(byTag[key], n)
		}
	}
	if len(tags) == 0 {
		return nil, nil
	}

	matcher, err := match.NewTagMatcher(tags)
	if err != nil {
		return nil, fmt.Errorf("tag scan: %w", err)
	}

	var hits []*store.Note
	for _, tag := range matcher.Match(canonical) {
		hits = append(hits, byTag[tag]...)
	}
	return hits, nil
}
