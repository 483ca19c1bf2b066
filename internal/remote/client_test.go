package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(token, WithBaseURL(srv.URL+"/1"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestClient_GetDocument(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/1/threads/AbCdEfGhIjKl", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"thread": {"id": "AbCdEfGhIjKl", "title": "Notes", "updated_usec": 1700000000000000, "html": "<h1>Notes</h1>"},
			"user_ids": ["u1"]
		}`))
	})

	doc, err := c.GetDocument(context.Background(), "AbCdEfGhIjKl")
	require.NoError(t, err)
	assert.Equal(t, "Notes", doc.Thread.Title)
	assert.Equal(t, int64(1700000000000000), doc.Thread.UpdatedUsec)
	assert.Equal(t, "<h1>Notes</h1>", doc.Content())
	assert.Equal(t, []string{"u1"}, doc.UserIDs)
}

func TestDocument_ContentFallback(t *testing.T) {
	doc := Document{HTML: "<p>outer</p>"}
	assert.Equal(t, "<p>outer</p>", doc.Content())
}

func TestClient_CreateDocument(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/1/threads/new-document", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Plan", r.PostForm.Get("title"))
		assert.Equal(t, "# Plan\n", r.PostForm.Get("content"))
		assert.Equal(t, "markdown", r.PostForm.Get("format"))
		assert.Equal(t, "u1,u2", r.PostForm.Get("member_ids"))
		_, _ = w.Write([]byte(`{"thread": {"id": "NEWDOC123", "title": "Plan", "created_usec": 5}}`))
	})

	doc, err := c.CreateDocument(context.Background(), "Plan", "# Plan\n", FormatMarkdown, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "NEWDOC123", doc.Thread.ID)
	assert.Equal(t, int64(5), doc.Thread.CreatedUsec)
}

func TestClient_ReplaceContent(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1/threads/edit-document", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "doc1", r.PostForm.Get("thread_id"))
		assert.Equal(t, "4", r.PostForm.Get("location"))
		assert.Equal(t, "markdown", r.PostForm.Get("format"))
		assert.Equal(t, "body", r.PostForm.Get("content"))
		_, _ = w.Write([]byte(`{"thread": {"id": "doc1", "updated_usec": 9}}`))
	})

	doc, err := c.ReplaceContent(context.Background(), "doc1", "body", FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, int64(9), doc.Thread.UpdatedUsec)
}

func TestClient_DeleteDocument(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1/threads/delete", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "doc1", r.PostForm.Get("thread_id"))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.DeleteDocument(context.Background(), "doc1"))
}

func TestClient_Listing(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1/users/current":
			_, _ = w.Write([]byte(`{"id": "u1", "name": "Dana", "emails": ["dana@example.com"], "private_folder_id": "f1"}`))
		case "/1/folders/f1":
			_, _ = w.Write([]byte(`{"folder": {"id": "f1", "title": "Private"}, "children": [{"thread_id": "d1"}, {"folder_id": "f2"}]}`))
		case "/1/threads/recent":
			_, _ = w.Write([]byte(`{"d1": {"thread": {"id": "d1", "title": "One"}}}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "f1", user.PrivateFolderID)

	folder, err := c.GetFolder(ctx, user.PrivateFolderID)
	require.NoError(t, err)
	assert.Equal(t, "Private", folder.Folder.Title)
	assert.Equal(t, []FolderChild{{ThreadID: "d1"}, {FolderID: "f2"}}, folder.Children)

	recent, err := c.RecentDocuments(ctx)
	require.NoError(t, err)
	require.Contains(t, recent, "d1")
	assert.Equal(t, "One", recent["d1"].Thread.Title)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_description": "no access"}`, http.StatusForbidden)
	})

	_, err := c.GetDocument(context.Background(), "doc1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, `{"error_description": "no access"}`, apiErr.Body)
	assert.EqualError(t, err, `remote API error (403): {"error_description": "no access"}`)
}

func TestClient_NoToken(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	assert.False(t, c.HasToken())
	_, err := c.CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
	assert.ErrorIs(t, c.DeleteDocument(context.Background(), "doc1"), ErrNoToken)
	assert.Zero(t, calls.Load())
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New("secret", WithBaseURL("://bad"))
	assert.Error(t, err)
}
