package router

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasatome/mcp-zettelkasten-notes-mem0/internal/store"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/remote"
)

// fakeSearcher serves canned matches or a canned error.
type fakeSearcher struct {
	matches []remote.Match
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]remote.Match, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func newTestRouter(t *testing.T, searcher Searcher) (*Router, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(Config{Remote: searcher, Store: st, Logger: zerolog.Nop()}), st
}

func TestGetNoteRemoteHit(t *testing.T) {
	searcher := &fakeSearcher{matches: []remote.Match{
		{ID: "other", Content: "unrelated"},
		{ID: "n1", Content: "semantic content"},
	}}
	r, _ := newTestRouter(t, searcher)

	view, err := r.GetNote(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", view.ID)
	assert.Equal(t, "semantic content", view.Content)
	assert.Equal(t, ViaRemote, view.Via)
}

func TestGetNoteFallsBackOnRemoteMiss(t *testing.T) {
	searcher := &fakeSearcher{matches: []remote.Match{{ID: "other", Content: "x"}}}
	r, st := newTestRouter(t, searcher)
	require.NoError(t, st.PutNote(&store.Note{ID: "n1", Title: "T", Content: "C", Tags: []string{"go"}}))

	view, err := r.GetNote(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, ViaDurable, view.Via)
	assert.Equal(t, "T", view.Title)
	assert.Equal(t, "C", view.Content)
	assert.Equal(t, []string{"go"}, view.Tags)
}

func TestGetNoteFallsBackOnRemoteOutage(t *testing.T) {
	searcher := &fakeSearcher{err: remote.ErrUnavailable}
	r, st := newTestRouter(t, searcher)
	require.NoError(t, st.PutNote(&store.Note{ID: "n1", Title: "T", Content: "C"}))

	view, err := r.GetNote(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, ViaDurable, view.Via)
}

func TestGetNoteAbsentEverywhere(t *testing.T) {
	searcher := &fakeSearcher{err: remote.ErrUnavailable}
	r, _ := newTestRouter(t, searcher)

	_, err := r.GetNote(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchNotesRemote(t *testing.T) {
	searcher := &fakeSearcher{matches: []remote.Match{
		{ID: "n1", Content: "first"},
		{ID: "n2", Content: "second"},
	}}
	r, _ := newTestRouter(t, searcher)

	res, err := r.SearchNotes(context.Background(), "Graph Theory")
	require.NoError(t, err)
	assert.Equal(t, ViaRemote, res.Via)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "n1", res.Results[0].ID)
	assert.Equal(t, []string{"graph theory"}, searcher.queries, "query is canonicalized before the remote call")
}

func TestSearchNotesRemoteEmptyIsStillRemote(t *testing.T) {
	searcher := &fakeSearcher{}
	r, st := newTestRouter(t, searcher)
	require.NoError(t, st.PutNote(&store.Note{ID: "n1", Title: "graph", Content: "graph notes"}))

	res, err := r.SearchNotes(context.Background(), "graph")
	require.NoError(t, err)
	assert.Equal(t, ViaRemote, res.Via, "an empty remote answer does not trigger fallback")
	assert.Empty(t, res.Results)
}

func TestSearchNotesFallbackSubstring(t *testing.T) {
	searcher := &fakeSearcher{err: remote.ErrUnavailable}
	r, st := newTestRouter(t, searcher)
	require.NoError(t, st.PutNote(&store.Note{ID: "n1", Title: "Graph Theory", Content: "intro"}))
	require.NoError(t, st.PutNote(&store.Note{ID: "n2", Title: "Cooking", Content: "recipes"}))

	res, err := r.SearchNotes(context.Background(), "graph theory")
	require.NoError(t, err)
	assert.Equal(t, ViaDurable, res.Via)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "n1", res.Results[0].ID)
}

func TestSearchNotesFallbackStripsStopwords(t *testing.T) {
	searcher := &fakeSearcher{err: remote.ErrUnavailable}
	r, st := newTestRouter(t, searcher)
	require.NoError(t, st.PutNote(&store.Note{ID: "n1", Title: "notes", Content: "graph theory work in practice"}))

	res, err := r.SearchNotes(context.Background(), "How does graph theory work")
	require.NoError(t, err)
	assert.Equal(t, ViaDurable, res.Via)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "n1", res.Results[0].ID)
}

func TestSearchNotesFallbackMatchesTags(t *testing.T) {
	searcher := &fakeSearcher{err: remote.ErrUnavailable}
	r, st := newTestRouter(t, searcher)
	require.NoError(t, st.PutNote(&store.Note{ID: "n1", Title: "Channels", Content: "concurrency patterns", Tags: []string{"golang"}}))

	res, err := r.SearchNotes(context.Background(), "golang tips")
	require.NoError(t, err)
	assert.Equal(t, ViaDurable, res.Via)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "n1", res.Results[0].ID)
}

func TestSearchNotesNeverErrorsOnOutageAlone(t *testing.T) {
	searcher := &fakeSearcher{err: remote.ErrUnavailable}
	r, _ := newTestRouter(t, searcher)

	res, err := r.SearchNotes(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, ViaDurable, res.Via)
	assert.Empty(t, res.Results)
}
