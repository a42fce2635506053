package notes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasatome/mcp-zettelkasten-notes-mem0/internal/store"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/graph"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/remote"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/router"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/syncer"
)

// fakeRemote plays both remote roles: the syncer's index and the router's
// searcher. With down=true every call fails the way the HTTP client reports
// an unreachable service.
type fakeRemote struct {
	mu      sync.Mutex
	down    bool
	stored  map[string]remote.Match
	results []remote.Match
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{stored: make(map[string]remote.Match)}
}

func (f *fakeRemote) Add(ctx context.Context, id, title, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return remote.ErrUnavailable
	}
	f.stored[id] = remote.Match{ID: id, Content: title + "\n" + content}
	return nil
}

func (f *fakeRemote) Search(ctx context.Context, query string, limit int) ([]remote.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, remote.ErrUnavailable
	}
	if m, ok := f.stored[query]; ok {
		return []remote.Match{m}, nil
	}
	return f.results, nil
}

func (f *fakeRemote) setDown(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = v
}

type fixture struct {
	svc    *Service
	store  *store.SQLiteStore
	remote *fakeRemote
	syncer *syncer.Syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rem := newFakeRemote()
	sy := syncer.New(syncer.Config{
		Index:  rem,
		Store:  st,
		Logger: zerolog.Nop(),
	})
	rt := router.New(router.Config{Remote: rem, Store: st, Logger: zerolog.Nop()})
	g := graph.New(st, zerolog.Nop())

	svc := New(Config{
		Store:  st,
		Syncer: sy,
		Linker: g,
		Reader: rt,
		Logger: zerolog.Nop(),
	})
	return &fixture{svc: svc, store: st, remote: rem, syncer: sy}
}

func TestCreateNoteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var vErr *ValidationError
	_, err := f.svc.CreateNote(ctx, "", "content", nil)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "title", vErr.Field)

	_, err = f.svc.CreateNote(ctx, "title", "   ", nil)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "content", vErr.Field)

	assert.True(t, errors.Is(err, store.ErrValidation))

	count, err := f.store.CountNotes()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "rejected input must not reach the store")
}

func TestCreateNoteRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateNote(ctx, "Channels", "CSP-style concurrency", []string{"golang"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	f.syncer.Wait()

	note, err := f.store.GetNote(id)
	require.NoError(t, err)
	assert.Equal(t, "Channels", note.Title)
	assert.Equal(t, []string{"golang"}, note.Tags)
	assert.NotZero(t, note.CreatedAt)
}

func TestCreateNoteSurvivesRemoteOutage(t *testing.T) {
	f := newFixture(t)
	f.remote.setDown(true)
	ctx := context.Background()

	id, err := f.svc.CreateNote(ctx, "Offline", "written while remote is down", nil)
	require.NoError(t, err, "creation must succeed on the durable write alone")
	f.syncer.Wait()

	// Remote still down: the read degrades instead of failing
	view, err := f.svc.GetNote(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, router.ViaDurable, view.Via)
	assert.Equal(t, "Offline", view.Title)

	// The note waits in the retry queue until the remote recovers
	pending, err := f.store.CountRetries()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	f.remote.setDown(false)
	require.NoError(t, f.syncer.Flush(ctx))
	pending, err = f.store.CountRetries()
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestGetNotePrefersRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateNote(ctx, "Indexed", "semantic body", nil)
	require.NoError(t, err)
	f.syncer.Wait()

	view, err := f.svc.GetNote(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, router.ViaRemote, view.Via)
	assert.Contains(t, view.Content, "semantic body")
}

func TestGetNoteUnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetNote(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchNotesFallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateNote(ctx, "Graph Theory", "adjacency lists", nil)
	require.NoError(t, err)
	f.syncer.Wait()

	f.remote.setDown(true)
	res, err := f.svc.SearchNotes(ctx, "graph theory")
	require.NoError(t, err)
	assert.Equal(t, router.ViaDurable, res.Via)
	require.Len(t, res.Results, 1)
	assert.Equal(t, id, res.Results[0].ID)
}

func TestCreateLinkSymmetricPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateNote(ctx, "A", "first", nil)
	require.NoError(t, err)
	b, err := f.svc.CreateNote(ctx, "B", "second", nil)
	require.NoError(t, err)
	f.syncer.Wait()

	require.NoError(t, f.svc.CreateLink(ctx, a, b, "extends"))

	noteA, err := f.store.GetNote(a)
	require.NoError(t, err)
	require.Len(t, noteA.Links, 1)
	assert.Equal(t, store.Link{From: a, To: b, Type: "extends"}, noteA.Links[0])

	noteB, err := f.store.GetNote(b)
	require.NoError(t, err)
	require.Len(t, noteB.Links, 1)
	assert.Equal(t, store.Link{From: b, To: a, Type: "extends_by"}, noteB.Links[0])
}

func TestCreateLinkValidationAndNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var vErr *ValidationError
	err := f.svc.CreateLink(ctx, "", "b", "extends")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "from", vErr.Field)

	a, err := f.svc.CreateNote(ctx, "A", "first", nil)
	require.NoError(t, err)
	f.syncer.Wait()

	assert.ErrorIs(t, f.svc.CreateLink(ctx, a, "ghost", "extends"), store.ErrNotFound)
}
