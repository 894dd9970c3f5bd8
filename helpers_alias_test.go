// includenav/helpers_alias_test.go
package includenav

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAliases(t *testing.T) {
	tests := []struct {
		name    string
		archive string
		want    []AliasEntry
	}{
		{
			name: "compiler paths with baseUrl",
			archive: `
-- tsconfig.json --
{
  "compilerOptions": {
    "baseUrl": ".",
    "paths": {
      "@app/*": ["src/app/*", "fallback/*"],
      "@lib": ["lib/index"],
      "*": ["vendor/*"]
    }
  }
}
`,
			want: []AliasEntry{
				{Prefix: "@app/", Target: "/proj/src/app"},
				{Prefix: "@lib", Target: "/proj/lib/index"},
			},
		},
		{
			name: "baseUrl defaults to root",
			archive: `
-- jsconfig.json --
{"compilerOptions": {"paths": {"~utils/*": ["web/utils/*"]}}}
`,
			want: []AliasEntry{{Prefix: "~utils/", Target: "/proj/web/utils"}},
		},
		{
			name: "bundler object literal",
			archive: `
-- vite.config.ts --
export default defineConfig({
  resolve: {
    alias: {
      '@': '/src',
      'components': { nested: 'x' },
      "@styles": "src/styles",
    },
  },
})
`,
			want: []AliasEntry{
				{Prefix: "@styles", Target: "/proj/src/styles"},
				{Prefix: "@", Target: "/proj/src"},
			},
		},
		{
			name: "bundler find/replacement array",
			archive: `
-- webpack.config.js --
module.exports = {
  resolve: {
    alias: [
      { find: '~lib', replacement: 'lib' },
      { find: "#shared", replacement: "/packages/shared", },
    ],
  },
};
`,
			want: []AliasEntry{
				{Prefix: "#shared", Target: "/proj/packages/shared"},
				{Prefix: "~lib", Target: "/proj/lib"},
			},
		},
		{
			name: "broken source does not stop the others",
			archive: `
-- tsconfig.json --
{"compilerOptions": {"paths": {
-- vite.config.js --
export default { resolve: { alias: { '@': 'src' } } }
`,
			want: []AliasEntry{{Prefix: "@", Target: "/proj/src"}},
		},
		{
			name: "compiler entries precede bundler entries of equal length",
			archive: `
-- tsconfig.json --
{"compilerOptions": {"paths": {"@x/*": ["from-ts/*"]}}}
-- vite.config.ts --
export default { resolve: { alias: { '@y/': 'from-vite' } } }
`,
			want: []AliasEntry{
				{Prefix: "@x/", Target: "/proj/from-ts"},
				{Prefix: "@y/", Target: "/proj/from-vite"},
			},
		},
		{
			name:    "no config files",
			archive: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newMemFS(t, "/proj", tt.archive)
			got := extractAliases(context.Background(), fsys, "/proj", discardLogger())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAliasObjectBody(t *testing.T) {
	text := `resolve: { alias: { '@': 'src', nested: { deep: '}' } }, other: 1 }`
	body, ok := aliasObjectBody(text)
	require.True(t, ok)
	assert.Contains(t, body, `'@': 'src'`)
	assert.Contains(t, body, `deep: '}'`)
	assert.NotContains(t, body, "other")

	_, ok = aliasObjectBody(`alias: { '@': 'src'`)
	assert.False(t, ok, "unbalanced braces")

	_, ok = aliasObjectBody(`export default {}`)
	assert.False(t, ok)
}

func TestMatchAlias(t *testing.T) {
	entries := []AliasEntry{
		{Prefix: "@", Target: "/A"},
		{Prefix: "@/lib", Target: "/B"},
		{Prefix: "@components/", Target: "/C"},
	}
	sortAliasEntries(entries)

	tests := []struct {
		raw        string
		wantTarget string
		wantRest   string
		wantOK     bool
	}{
		{"@/lib/x", "/B", "x", true},
		{"@/other", "/A", "other", true},
		{"@components/Button", "/C", "Button", true},
		{"lodash", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			target, rest, ok := matchAlias(tt.raw, entries)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTarget, target)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestStripWildcard(t *testing.T) {
	assert.Equal(t, "@app/", stripWildcard("@app/*"))
	assert.Equal(t, "", stripWildcard("*"))
	assert.Equal(t, "lib", stripWildcard("lib"))
	assert.Equal(t, "a/", stripWildcard("a/*/b"))
}

const aliasFixture = `
-- tsconfig.json --
{"compilerOptions": {"baseUrl": "src", "paths": {"@app/*": ["app/*"]}}}
`

func TestAliasCache(t *testing.T) {
	ctx := context.Background()

	t.Run("second Get performs no reads", func(t *testing.T) {
		fsys := newMemFS(t, "/proj", aliasFixture)
		cache, err := NewAliasCache(fsys, nil, discardLogger())
		require.NoError(t, err)

		first := cache.Get(ctx, "/proj")
		readsAfterFirst := fsys.reads.Load()
		require.Positive(t, readsAfterFirst)

		second := cache.Get(ctx, "/proj")
		assert.Equal(t, first, second)
		assert.Equal(t, readsAfterFirst, fsys.reads.Load())
		assert.Equal(t, []AliasEntry{{Prefix: "@app/", Target: "/proj/src/app"}}, second)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("Invalidate forces a rebuild", func(t *testing.T) {
		fsys := newMemFS(t, "/proj", aliasFixture)
		cache, err := NewAliasCache(fsys, nil, discardLogger())
		require.NoError(t, err)

		cache.Get(ctx, "/proj")
		fsys.put("/proj/tsconfig.json", []byte(`{"compilerOptions": {"paths": {"#x/*": ["x/*"]}}}`))
		assert.Equal(t, []AliasEntry{{Prefix: "@app/", Target: "/proj/src/app"}}, cache.Get(ctx, "/proj"))

		cache.Invalidate("/proj")
		assert.Equal(t, 0, cache.Len())
		assert.Equal(t, []AliasEntry{{Prefix: "#x/", Target: "/proj/x"}}, cache.Get(ctx, "/proj"))
	})

	t.Run("InvalidateAll", func(t *testing.T) {
		fsys := newMemFS(t, "/proj", aliasFixture)
		cache, err := NewAliasCache(fsys, nil, discardLogger())
		require.NoError(t, err)
		cache.Get(ctx, "/proj")
		cache.Get(ctx, "/other")
		assert.Equal(t, 2, cache.Len())
		cache.InvalidateAll()
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("cancelled build is not cached", func(t *testing.T) {
		fsys := newMemFS(t, "/proj", aliasFixture)
		cache, err := NewAliasCache(fsys, nil, discardLogger())
		require.NoError(t, err)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		cache.Get(cancelled, "/proj")
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("disk store serves a fresh session", func(t *testing.T) {
		store, err := OpenAliasStore(filepath.Join(t.TempDir(), "alias.db"), discardLogger())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		warm := newMemFS(t, "/proj", aliasFixture)
		first, err := NewAliasCache(warm, store, discardLogger())
		require.NoError(t, err)
		want := first.Get(ctx, "/proj")

		cold := newMemFS(t, "/proj", aliasFixture)
		second, err := NewAliasCache(cold, store, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, want, second.Get(ctx, "/proj"))
		// Only the fingerprinting pass reads the configs.
		assert.EqualValues(t, len(aliasConfigFiles()), cold.reads.Load())
	})
}

// gatedFS holds the first read of path, after its contents were taken,
// until release is closed.
type gatedFS struct {
	*memFS
	path    string
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedFS(fsys *memFS, path string) *gatedFS {
	return &gatedFS{memFS: fsys, path: path, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedFS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	data, err := g.memFS.ReadFile(ctx, p)
	if p == g.path {
		g.once.Do(func() {
			close(g.started)
			<-g.release
		})
	}
	return data, err
}

func TestAliasCacheInvalidateDuringBuild(t *testing.T) {
	const oldConfig = `
-- tsconfig.json --
{"compilerOptions": {"baseUrl": ".", "paths": {"@old/*": ["old/*"]}}}
`
	newConfig := []byte(`{"compilerOptions": {"baseUrl": ".", "paths": {"@new/*": ["new/*"]}}}`)
	ctx := context.Background()

	tests := []struct {
		name       string
		withStore  bool
		invalidate func(c *AliasCache)
	}{
		{name: "Invalidate", invalidate: func(c *AliasCache) { c.Invalidate("/p") }},
		{name: "InvalidateAll", invalidate: func(c *AliasCache) { c.InvalidateAll() }},
		{name: "Invalidate with disk store", withStore: true, invalidate: func(c *AliasCache) { c.Invalidate("/p") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newMemFS(t, "/p", oldConfig)
			gate := newGatedFS(fsys, "/p/tsconfig.json")
			var store *AliasStore
			if tt.withStore {
				var err error
				store, err = OpenAliasStore(filepath.Join(t.TempDir(), "alias.db"), discardLogger())
				require.NoError(t, err)
				t.Cleanup(func() { store.Close() })
			}
			cache, err := NewAliasCache(gate, store, discardLogger())
			require.NoError(t, err)

			inFlight := make(chan []AliasEntry, 1)
			go func() { inFlight <- cache.Get(ctx, "/p") }()
			<-gate.started

			fsys.put("/p/tsconfig.json", newConfig)
			tt.invalidate(cache)
			close(gate.release)

			overtaken := <-inFlight
			if !tt.withStore {
				assert.Equal(t, []AliasEntry{{Prefix: "@old/", Target: "/p/old"}}, overtaken, "the overtaken build still answers its caller")
			}
			assert.Equal(t, []AliasEntry{{Prefix: "@new/", Target: "/p/new"}}, cache.Get(ctx, "/p"))

			if tt.withStore {
				hashes, err := hashConfigFiles(ctx, fsys, "/p")
				require.NoError(t, err)
				entries, ok := store.Lookup("/p", hashes)
				require.True(t, ok)
				assert.Equal(t, []AliasEntry{{Prefix: "@new/", Target: "/p/new"}}, entries)
			}
		})
	}
}

func TestHashConfigFiles(t *testing.T) {
	fsys := newMemFS(t, "/proj", aliasFixture)
	hashes, err := hashConfigFiles(context.Background(), fsys, "/proj")
	require.NoError(t, err)
	require.Len(t, hashes, len(aliasConfigFiles()))
	assert.Len(t, hashes["tsconfig.json"], 16)
	assert.Equal(t, absentConfigHash, hashes["vite.config.ts"])

	fsys.put("/proj/tsconfig.json", []byte(`{}`))
	changed, err := hashConfigFiles(context.Background(), fsys, "/proj")
	require.NoError(t, err)
	assert.NotEqual(t, hashes["tsconfig.json"], changed["tsconfig.json"])
}

func TestAliasStore(t *testing.T) {
	store, err := OpenAliasStore(filepath.Join(t.TempDir(), "alias.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hashes := map[string]string{"tsconfig.json": "00000000000000aa", "vite.config.ts": absentConfigHash}
	entries := []AliasEntry{{Prefix: "@app/", Target: "/proj/src/app"}, {Prefix: "@", Target: "/proj/src"}}

	_, ok := store.Lookup("/proj", hashes)
	assert.False(t, ok, "empty store")

	require.NoError(t, store.Save("/proj", hashes, entries))
	got, ok := store.Lookup("/proj", hashes)
	require.True(t, ok)
	assert.Equal(t, entries, got)

	stale := map[string]string{"tsconfig.json": "00000000000000bb", "vite.config.ts": absentConfigHash}
	_, ok = store.Lookup("/proj", stale)
	assert.False(t, ok, "hash mismatch")

	_, ok = store.Lookup("/proj", map[string]string{"tsconfig.json": "00000000000000aa"})
	assert.False(t, ok, "file set mismatch")

	require.NoError(t, store.Delete("/proj"))
	_, ok = store.Lookup("/proj", hashes)
	assert.False(t, ok, "deleted")

	require.NoError(t, store.Save("/a", hashes, entries))
	require.NoError(t, store.Save("/b", hashes, entries))
	require.NoError(t, store.Clear())
	_, ok = store.Lookup("/a", hashes)
	assert.False(t, ok, "cleared")
}
