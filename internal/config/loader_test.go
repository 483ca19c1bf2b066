package config

import (
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewLoader(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		NewLoader("", "yaml", fstest.MapFS{})
	}, "config name is not set")
}

func TestLoader_RootConfig(t *testing.T) {
	t.Parallel()

	t.Run("without root config", func(t *testing.T) {
		t.Parallel()

		loader := NewLoader("mdedit", "yaml", fstest.MapFS{}, WithLogger(zaptest.NewLogger(t)))
		result, err := loader.RootConfig()
		require.ErrorIs(t, err, ErrRootConfigNotFound)
		require.Nil(t, result)
	})

	t.Run("with root config", func(t *testing.T) {
		t.Parallel()

		data := []byte("version: v1\n")
		fsys := fstest.MapFS{
			"mdedit.yaml": {Data: data},
		}
		loader := NewLoader("mdedit", "yaml", fsys, WithLogger(zaptest.NewLogger(t)))
		result, err := loader.RootConfig()
		require.NoError(t, err)
		require.Equal(t, data, result)
	})
}

func TestLoader_FindConfigChain(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"mdedit.yaml":             {Data: []byte("path:mdedit.yaml")},
		"nested/mdedit.yaml":      {Data: []byte("path:nested/mdedit.yaml")},
		"nested/path/mdedit.yaml": {Data: []byte("path:nested/path/mdedit.yaml")},
		"nested/path/doc.md":      {Data: []byte("# doc")},
		"other/mdedit.yaml":       {Data: []byte("path:other/mdedit.yaml")},
		"without/config":          {Mode: fs.ModeDir},
	}
	loader := NewLoader("mdedit", "yaml", fsys, WithLogger(zaptest.NewLogger(t)))

	testCases := []struct {
		name     string
		path     string
		expected [][]byte
	}{
		{
			name:     "root config",
			path:     "",
			expected: [][]byte{[]byte("path:mdedit.yaml")},
		},
		{
			name:     "nested config",
			path:     "nested",
			expected: [][]byte{[]byte("path:mdedit.yaml"), []byte("path:nested/mdedit.yaml")},
		},
		{
			name: "file in nested dir",
			path: "nested/path/doc.md",
			expected: [][]byte{
				[]byte("path:mdedit.yaml"),
				[]byte("path:nested/mdedit.yaml"),
				[]byte("path:nested/path/mdedit.yaml"),
			},
		},
		{
			name:     "nested without config",
			path:     "without/config",
			expected: [][]byte{[]byte("path:mdedit.yaml")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := loader.FindConfigChain(tc.path)
			require.NoError(t, err)
			require.Equal(t, tc.expected, result)
		})
	}

	t.Run("missing path", func(t *testing.T) {
		_, err := loader.FindConfigChain("missing")
		require.Error(t, err)
	})
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	t.Run("defaults without files", func(t *testing.T) {
		loader := NewLoader("mdedit", "yaml", fstest.MapFS{"doc.md": {}})
		cfg, err := loader.Load("doc.md")
		require.NoError(t, err)
		require.Equal(t, Default(), cfg)
	})

	t.Run("nested overrides parent", func(t *testing.T) {
		fsys := fstest.MapFS{
			"mdedit.yaml": {Data: []byte("version: v1\neditor:\n  debounce: 1s\nlog:\n  enabled: true\n")},
			"docs/mdedit.yaml": {Data: []byte("version: v1\neditor:\n  debounce: 50ms\n")},
			"docs/doc.md":      {},
		}
		loader := NewLoader("mdedit", "yaml", fsys, WithLogger(zaptest.NewLogger(t)))
		cfg, err := loader.Load("docs/doc.md")
		require.NoError(t, err)
		require.Equal(t, 50*time.Millisecond, cfg.Editor.Debounce)
		require.True(t, cfg.Log.Enabled)
		require.True(t, cfg.Editor.HardWraps)
	})

	t.Run("invalid nested config", func(t *testing.T) {
		fsys := fstest.MapFS{
			"mdedit.yaml":      {Data: []byte("version: v1\n")},
			"docs/mdedit.yaml": {Data: []byte("version: v2\n")},
		}
		loader := NewLoader("mdedit", "yaml", fsys)
		_, err := loader.Load("docs")
		require.ErrorContains(t, err, "unknown version: v2")
	})
}
