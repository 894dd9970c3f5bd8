// includenav/helpers_diagnostics_test.go
package includenav

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveOnly(existing ...string) resolveFunc {
	return func(ctx context.Context, raw string) Resolution {
		for _, e := range existing {
			if raw == e {
				return Resolution{Kind: ResolutionFound, Targets: []string{"/x/" + raw}}
			}
		}
		return unresolved
	}
}

func TestScanUnresolved(t *testing.T) {
	doc := NewTextDocument("/proj/src/main.ts", "typescript", strings.Join([]string{
		`import a from './exists';`,
		`import b from './missing';`,
		`const s = 'not an import';`,
		`<script src="https://cdn.example.com/y.js"></script>`,
		`import { c } from "./c"; import d from '';`,
	}, "\n"))

	findings, err := scanUnresolved(context.Background(), doc, resolveOnly("./exists"))
	require.NoError(t, err)
	assert.Equal(t, []Finding{
		{Line: 1, StartCol: 15, EndCol: 24, Message: "Include/Import target not found: ./missing", Severity: SeverityWarning, Source: "includenav"},
		{Line: 4, StartCol: 19, EndCol: 22, Message: "Include/Import target not found: ./c", Severity: SeverityWarning, Source: "includenav"},
	}, findings)

	again, err := scanUnresolved(context.Background(), doc, resolveOnly("./exists"))
	require.NoError(t, err)
	assert.Equal(t, findings, again, "scans of the same snapshot agree")
}

func TestScanUnresolvedLineCap(t *testing.T) {
	lines := make([]string, maxScanLines+5)
	for i := range lines {
		lines[i] = `require('nope');`
	}
	doc := NewTextDocument("/proj/a.js", "javascript", strings.Join(lines, "\n"))
	findings, err := scanUnresolved(context.Background(), doc, resolveOnly())
	require.NoError(t, err)
	assert.Len(t, findings, maxScanLines)
}

func TestScanUnresolvedCancelled(t *testing.T) {
	doc := NewTextDocument("/proj/a.js", "javascript", `require('nope');`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	findings, err := scanUnresolved(ctx, doc, resolveOnly())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, findings)
}

func TestNavigatorScanDocument(t *testing.T) {
	fsys := newMemFS(t, "/proj", `
-- src/a.ts --
`)
	doc := NewTextDocument("/proj/src/main.ts", "typescript", "import a from './a';\nimport b from './b';\n")

	t.Run("reports unresolved", func(t *testing.T) {
		n := newTestNavigator(t, fsys, "/proj")
		findings, err := n.ScanDocument(context.Background(), doc)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, "Include/Import target not found: ./b", findings[0].Message)
		assert.Equal(t, Range{Start: Position{Line: 1, Character: 15}, End: Position{Line: 1, Character: 18}}, findings[0].Range())
	})

	t.Run("all languages disabled", func(t *testing.T) {
		n := newTestNavigator(t, fsys, "/proj")
		cfg := n.GetCurrentConfig()
		cfg.EnablePHP, cfg.EnableJS, cfg.EnableCSS, cfg.EnableHTML = false, false, false, false
		require.NoError(t, n.UpdateConfig(cfg))
		findings, err := n.ScanDocument(context.Background(), doc)
		require.NoError(t, err)
		assert.Nil(t, findings)
	})

	t.Run("directory reference without index", func(t *testing.T) {
		n := newTestNavigator(t, newMemFS(t, "/p", `
-- components/README.md --
`), "/p")
		dirDoc := NewTextDocument("/p/main.js", "javascript", "import x from './components';")
		findings, err := n.ScanDocument(context.Background(), dirDoc)
		require.NoError(t, err)
		assert.Empty(t, findings)
		assert.Equal(t, Resolution{Kind: ResolutionFound, Targets: []string{"/p/components"}}, n.Resolve(context.Background(), dirDoc, "./components"))
	})
}

func TestScanScheduler(t *testing.T) {
	s := newScanScheduler()
	ctx1, gen1 := s.begin(context.Background(), "doc")
	ctx2, gen2 := s.begin(context.Background(), "doc")

	assert.ErrorIs(t, ctx1.Err(), context.Canceled, "newer scan cancels the older one")
	assert.NoError(t, ctx2.Err())
	assert.Equal(t, 1, s.pending())

	published := 0
	assert.False(t, s.publishIfCurrent("doc", gen1, func() { published++ }))
	assert.True(t, s.publishIfCurrent("doc", gen2, func() { published++ }))
	assert.Equal(t, 1, published)

	s.finish("doc", gen1)
	assert.Equal(t, 1, s.pending(), "finishing a superseded scan leaves the current one")
	s.finish("doc", gen2)
	assert.Equal(t, 0, s.pending())
	assert.ErrorIs(t, ctx2.Err(), context.Canceled)

	ctx3, gen3 := s.begin(context.Background(), "other")
	s.cancel("other")
	assert.ErrorIs(t, ctx3.Err(), context.Canceled)
	assert.False(t, s.publishIfCurrent("other", gen3, func() { published++ }))
	assert.Equal(t, 1, published)
}
