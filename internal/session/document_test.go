package session

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stateful/mdedit/internal/filestore"
	"github.com/stateful/mdedit/internal/ulid"
)

type faultyStore struct {
	*filestore.Store
	writeErr  error
	deleteErr error
}

func (s *faultyStore) Write(uri string, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.Store.Write(uri, data)
}

func (s *faultyStore) Delete(uri string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Store.Delete(uri)
}

func openTestDocument(t *testing.T, content string) (*Document, *filestore.Store) {
	t.Helper()
	store := filestore.NewMemory()
	require.NoError(t, store.Write("doc.md", []byte(content)))
	doc, err := Open(context.Background(), store, "doc.md", WithIDGenerator(ulid.Sequence("e")))
	require.NoError(t, err)
	return doc, store
}

// attachEcho makes the document answer content requests with its own
// text, like a view that never diverged.
func attachEcho(doc *Document) {
	doc.SetContentSource(func(context.Context) (string, error) {
		return doc.Text(), nil
	})
}

func TestOpen(t *testing.T) {
	doc, _ := openTestDocument(t, "# Title\n")
	assert.Equal(t, "doc.md", doc.URI())
	assert.Equal(t, "# Title\n", doc.Text())
	assert.False(t, doc.IsDirty())
	assert.Empty(t, doc.Edits())
}

func TestOpen_Untitled(t *testing.T) {
	doc, err := Open(context.Background(), filestore.NewMemory(), "untitled:Untitled-1")
	require.NoError(t, err)
	assert.Equal(t, "", doc.Text())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(context.Background(), filestore.NewMemory(), "missing.md")
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "open", ioErr.Op)
	assert.Equal(t, "missing.md", ioErr.URI)
}

func TestOpen_FromBackup(t *testing.T) {
	store := filestore.NewMemory()
	require.NoError(t, store.Write("doc.md", []byte("on disk")))
	require.NoError(t, store.Write("backups/1", []byte("recovered")))

	doc, err := Open(context.Background(), store, "doc.md", WithBackup("backups/1"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", doc.Text())
	assert.True(t, doc.IsDirty())

	_, err = Open(context.Background(), store, "doc.md", WithBackup("backups/2"))
	assert.Error(t, err)
}

func TestDocument_UndoRedo(t *testing.T) {
	doc, _ := openTestDocument(t, "before")

	var events []ChangeEvent
	var edits []EditRecord
	doc.OnChange(func(ev ChangeEvent) { events = append(events, ev) })
	doc.OnEdit(func(rec EditRecord) { edits = append(edits, rec) })

	require.True(t, doc.ApplyEdit("after", "view-1"))
	assert.Equal(t, "after", doc.Text())
	assert.True(t, doc.IsDirty())

	require.True(t, doc.Undo())
	assert.Equal(t, "before", doc.Text())
	assert.False(t, doc.IsDirty())
	assert.False(t, doc.Undo())

	require.True(t, doc.Redo())
	assert.Equal(t, "after", doc.Text())
	assert.False(t, doc.Redo())

	assert.Equal(t, []ChangeEvent{
		{URI: "doc.md", Text: "after", Origin: "view-1", Reason: ReasonEdit},
		{URI: "doc.md", Text: "before", Reason: ReasonUndo},
		{URI: "doc.md", Text: "after", Reason: ReasonRedo},
	}, events)
	assert.Equal(t, []EditRecord{{ID: "e1", Forward: "after", Backward: "before"}}, edits)
}

func TestDocument_EditDropsRedo(t *testing.T) {
	doc, _ := openTestDocument(t, "a")
	doc.ApplyEdit("b", "")
	doc.Undo()
	doc.ApplyEdit("c", "")
	assert.False(t, doc.Redo())
	assert.Equal(t, []EditRecord{{ID: "e2", Forward: "c", Backward: "a"}}, doc.Edits())
}

func TestDocument_ApplyEditUnchanged(t *testing.T) {
	doc, _ := openTestDocument(t, "same")
	called := false
	doc.OnChange(func(ChangeEvent) { called = true })
	assert.False(t, doc.ApplyEdit("same", "view"))
	assert.False(t, called)
}

func TestDocument_SaveRoundTrip(t *testing.T) {
	doc, store := openTestDocument(t, "# Title\n")
	attachEcho(doc)

	require.NoError(t, doc.Save(context.Background()))
	data, err := store.Read("doc.md")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n", string(data))
	assert.False(t, doc.IsDirty())
}

func TestDocument_SaveMovesCheckpoint(t *testing.T) {
	doc, store := openTestDocument(t, "a")
	attachEcho(doc)

	doc.ApplyEdit("b", "view")
	require.True(t, doc.IsDirty())
	require.NoError(t, doc.Save(context.Background()))
	assert.False(t, doc.IsDirty())

	data, err := store.Read("doc.md")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	doc.Undo()
	assert.True(t, doc.IsDirty())
}

func TestDocument_SaveWithoutView(t *testing.T) {
	doc, _ := openTestDocument(t, "a")

	err := doc.Save(context.Background())
	require.ErrorIs(t, err, ErrNoActiveView)
	var protoErr *ProtocolError
	require.True(t, errors.As(err, &protoErr))
	assert.Equal(t, "save", protoErr.Op)
}

func TestDocument_SaveCancelled(t *testing.T) {
	t.Run("BeforeRequest", func(t *testing.T) {
		doc, store := openTestDocument(t, "a")
		doc.SetContentSource(func(ctx context.Context) (string, error) {
			return "", ctx.Err()
		})
		doc.ApplyEdit("b", "")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, doc.Save(ctx))

		data, _ := store.Read("doc.md")
		assert.Equal(t, "a", string(data))
		assert.True(t, doc.IsDirty())
	})

	t.Run("BeforeWrite", func(t *testing.T) {
		doc, store := openTestDocument(t, "a")
		ctx, cancel := context.WithCancel(context.Background())
		doc.SetContentSource(func(context.Context) (string, error) {
			cancel()
			return "b", nil
		})
		doc.ApplyEdit("b", "")

		require.NoError(t, doc.Save(ctx))

		data, _ := store.Read("doc.md")
		assert.Equal(t, "a", string(data))
		assert.True(t, doc.IsDirty())
	})
}

func TestDocument_SaveWriteFails(t *testing.T) {
	mem := filestore.NewMemory()
	require.NoError(t, mem.Write("doc.md", []byte("a")))
	store := &faultyStore{Store: mem, writeErr: errors.New("disk full")}

	doc, err := Open(context.Background(), store, "doc.md")
	require.NoError(t, err)
	attachEcho(doc)
	doc.ApplyEdit("b", "")

	err = doc.Save(context.Background())
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "save", ioErr.Op)
	assert.True(t, doc.IsDirty())
}

func TestDocument_SaveUntitled(t *testing.T) {
	doc, err := Open(context.Background(), filestore.NewMemory(), "untitled:1")
	require.NoError(t, err)
	attachEcho(doc)

	var ioErr *IOError
	assert.True(t, errors.As(doc.Save(context.Background()), &ioErr))
}

func TestDocument_SaveAs(t *testing.T) {
	doc, store := openTestDocument(t, "a")
	attachEcho(doc)
	doc.ApplyEdit("b", "")

	require.NoError(t, doc.SaveAs(context.Background(), "copy.md"))

	data, err := store.Read("copy.md")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
	data, err = store.Read("doc.md")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
	assert.True(t, doc.IsDirty())
}

func TestDocument_Revert(t *testing.T) {
	doc, store := openTestDocument(t, "a")
	attachEcho(doc)

	doc.ApplyEdit("b", "")
	require.NoError(t, doc.Save(context.Background()))
	doc.ApplyEdit("c", "")
	doc.ApplyEdit("d", "")

	var events []ChangeEvent
	doc.OnChange(func(ev ChangeEvent) { events = append(events, ev) })

	require.NoError(t, store.Write("doc.md", []byte("changed on disk")))
	require.NoError(t, doc.Revert(context.Background()))

	assert.Equal(t, "changed on disk", doc.Text())
	assert.Len(t, doc.Edits(), 1)
	assert.False(t, doc.IsDirty())
	assert.False(t, doc.Redo())
	assert.Equal(t, []ChangeEvent{{URI: "doc.md", Text: "changed on disk", Reason: ReasonRevert}}, events)
}

func TestDocument_RevertCancelled(t *testing.T) {
	doc, _ := openTestDocument(t, "a")
	doc.ApplyEdit("b", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, doc.Revert(ctx))
	assert.Equal(t, "b", doc.Text())
}

func TestDocument_Backup(t *testing.T) {
	doc, store := openTestDocument(t, "a")
	doc.ApplyEdit("b", "")

	backup, err := doc.Backup(context.Background(), "backups/x")
	require.NoError(t, err)
	data, err := store.Read("backups/x")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	backup.Delete()
	assert.False(t, store.Exists("backups/x"))
	// Deleting twice fails in the store and is swallowed.
	backup.Delete()
}

func TestDocument_BackupDeleteFailureSwallowed(t *testing.T) {
	mem := filestore.NewMemory()
	require.NoError(t, mem.Write("doc.md", []byte("a")))
	store := &faultyStore{Store: mem, deleteErr: errors.New("permission denied")}

	doc, err := Open(context.Background(), store, "doc.md")
	require.NoError(t, err)
	backup, err := doc.Backup(context.Background(), "b")
	require.NoError(t, err)

	assert.NotPanics(t, backup.Delete)
	assert.True(t, mem.Exists("b"))
}

func TestDocument_BackupCancelled(t *testing.T) {
	doc, store := openTestDocument(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backup, err := doc.Backup(ctx, "backups/x")
	require.NoError(t, err)
	assert.Nil(t, backup)
	assert.False(t, store.Exists("backups/x"))
}

func TestDocument_Close(t *testing.T) {
	doc, _ := openTestDocument(t, "a")
	attachEcho(doc)

	disposed := 0
	doc.OnDispose(func() { disposed++ })
	unsubscribe := doc.OnChange(func(ChangeEvent) { t.Fatal("unexpected change") })
	unsubscribe()
	doc.ApplyEdit("b", "")

	doc.Close()
	doc.Close()
	assert.Equal(t, 1, disposed)
	assert.False(t, doc.ApplyEdit("c", ""))
	assert.ErrorIs(t, doc.Save(context.Background()), ErrNoActiveView)
}
