package client

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewHTTPClient(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	var dump bytes.Buffer

	c := NewHTTPClient(
		nil,
		WithUserAgent("1.2.3"),
		WithContentType("application/x-www-form-urlencoded"),
		WithLogger(zap.New(core)),
		WithHTTPDump(&dump, false),
	)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/threads/recent", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, "mdedit/1.2.3 ("+runtime.GOOS+"; "+runtime.GOARCH+")", got.Get("User-Agent"))
	assert.Equal(t, "text/plain", got.Get("Content-Type"), "explicit headers win")
	assert.Empty(t, req.Header.Get("User-Agent"), "caller request is not modified")

	assert.Equal(t, 1, logs.FilterMessage("send an API request").Len())
	assert.Equal(t, 1, logs.FilterMessage("received an API response").Len())
	assert.Contains(t, dump.String(), "/threads/recent")
}
