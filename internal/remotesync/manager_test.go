package remotesync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stateful/mdedit/internal/filestore"
	"github.com/stateful/mdedit/internal/remote"
)

type replaced struct {
	id      string
	content string
	format  remote.Format
}

type fakeRemote struct {
	docs     map[string]*remote.Document
	created  []string
	replaced []replaced
	deleted  []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[string]*remote.Document)}
}

func (f *fakeRemote) GetDocument(_ context.Context, id string) (*remote.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, &remote.APIError{Status: 404, Body: "not found"}
	}
	return doc, nil
}

func (f *fakeRemote) CreateDocument(_ context.Context, title, content string, format remote.Format, _ ...string) (*remote.Document, error) {
	doc := &remote.Document{Thread: remote.Thread{ID: "NEWDOCUMENT1", Title: title, CreatedUsec: 7}}
	f.docs[doc.Thread.ID] = doc
	f.created = append(f.created, content)
	return doc, nil
}

func (f *fakeRemote) ReplaceContent(_ context.Context, id, content string, format remote.Format) (*remote.Document, error) {
	f.replaced = append(f.replaced, replaced{id: id, content: content, format: format})
	return f.docs[id], nil
}

func (f *fakeRemote) DeleteDocument(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.docs, id)
	return nil
}

func newTestManager(t *testing.T, r Remote) (*Manager, *filestore.Store) {
	t.Helper()
	files := filestore.NewMemory()
	m := NewManager(
		r,
		files,
		NewYAMLStore(files, ".quip-documents/mappings.yaml"),
		WithClock(func() time.Time { return time.UnixMicro(1_700_000_000_000_001) }),
		WithLogger(zaptest.NewLogger(t)),
	)
	return m, files
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "q3_plan__draft__AbCdEfGh.md", LocalName("Q3 Plan (draft)", "AbCdEfGhIjKl"))
	assert.Equal(t, "notes_abc.md", LocalName("Notes", "abc"))
}

func TestManager_Pull(t *testing.T) {
	r := newFakeRemote()
	r.docs["AbCdEfGhIjKl"] = &remote.Document{Thread: remote.Thread{
		ID:          "AbCdEfGhIjKl",
		Title:       "Team Notes",
		UpdatedUsec: 123,
		HTML:        "<h1>Team Notes</h1><p>Hello</p>",
	}}
	m, files := newTestManager(t, r)
	ctx := context.Background()

	mapping, err := m.Pull(ctx, "AbCdEfGhIjKl")
	require.NoError(t, err)
	assert.Equal(t, Mapping{
		ID:             "AbCdEfGhIjKl",
		LocalPath:      ".quip-documents/team_notes_AbCdEfGh.md",
		Title:          "Team Notes",
		LastSyncedUsec: 123,
	}, mapping)

	data, err := files.Read(mapping.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "# Team Notes\n\nHello\n", string(data))

	// A renamed document keeps its file.
	r.docs["AbCdEfGhIjKl"].Thread.Title = "Renamed"
	again, err := m.Pull(ctx, "AbCdEfGhIjKl")
	require.NoError(t, err)
	assert.Equal(t, mapping.LocalPath, again.LocalPath)
	assert.Equal(t, "Renamed", again.Title)

	_, err = m.Pull(ctx, "missing")
	var apiErr *remote.APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestManager_Push(t *testing.T) {
	r := newFakeRemote()
	r.docs["doc1"] = &remote.Document{Thread: remote.Thread{ID: "doc1", Title: "One", HTML: "<p>old</p>"}}
	m, files := newTestManager(t, r)
	ctx := context.Background()

	pulled, err := m.Pull(ctx, "doc1")
	require.NoError(t, err)
	require.NoError(t, files.Write(pulled.LocalPath, []byte("new *content*\n")))

	pushed, err := m.Push(ctx, "file://"+pulled.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000_001), pushed.LastSyncedUsec)
	assert.Equal(t, []replaced{{id: "doc1", content: "new *content*\n", format: remote.FormatMarkdown}}, r.replaced)

	stored, ok, err := m.Lookup(pulled.LocalPath)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pushed, stored)
}

func TestManager_PushNotLinked(t *testing.T) {
	m, files := newTestManager(t, newFakeRemote())
	require.NoError(t, files.Write("loose.md", []byte("x")))

	_, err := m.Push(context.Background(), "loose.md")
	assert.ErrorIs(t, err, ErrNotLinked)

	_, ok, err := m.Lookup("loose.md")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("starter document", func(t *testing.T) {
		r := newFakeRemote()
		m, files := newTestManager(t, r)

		mapping, err := m.Create(ctx, "Road Map", "")
		require.NoError(t, err)
		assert.Equal(t, Mapping{
			ID:             "NEWDOCUMENT1",
			LocalPath:      ".quip-documents/road_map_NEWDOCUM.md",
			Title:          "Road Map",
			LastSyncedUsec: 7,
		}, mapping)

		data, err := files.Read(mapping.LocalPath)
		require.NoError(t, err)
		assert.Equal(t, "# Road Map\n\nStart writing here...", string(data))
		assert.Equal(t, []string{"# Road Map\n\nStart writing here..."}, r.created)
	})

	t.Run("existing file", func(t *testing.T) {
		r := newFakeRemote()
		m, files := newTestManager(t, r)
		require.NoError(t, files.Write("notes/plan.md", []byte("# Plan\n")))

		mapping, err := m.Create(ctx, "Plan", "notes/plan.md")
		require.NoError(t, err)
		assert.Equal(t, "notes/plan.md", mapping.LocalPath)
		assert.Equal(t, []string{"# Plan\n"}, r.created)

		list, err := m.List()
		require.NoError(t, err)
		assert.Equal(t, []Mapping{mapping}, list)
	})

	t.Run("missing title", func(t *testing.T) {
		m, _ := newTestManager(t, newFakeRemote())
		_, err := m.Create(ctx, "  ", "")
		assert.Error(t, err)
	})
}

func TestManager_Delete(t *testing.T) {
	r := newFakeRemote()
	r.docs["doc1"] = &remote.Document{Thread: remote.Thread{ID: "doc1", Title: "One"}}
	m, files := newTestManager(t, r)
	ctx := context.Background()

	pulled, err := m.Pull(ctx, "doc1")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "doc1"))
	assert.Equal(t, []string{"doc1"}, r.deleted)

	_, ok, err := m.Lookup(pulled.LocalPath)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, files.Exists(pulled.LocalPath), "local file is kept")
}
