// includenav/includenav_test.go
package includenav

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig runs LoadConfig against a temporary home directory.
func TestLoadConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempHome, ".config"))
	t.Setenv("HOME", tempHome)
	t.Setenv("USERPROFILE", tempHome)
	fakeConfigDir := filepath.Join(tempHome, ".config", configDirName)
	fakeConfigFile := filepath.Join(fakeConfigDir, defaultConfigFileName)
	fakeYAMLFile := filepath.Join(fakeConfigDir, defaultYAMLConfigFileName)

	writeConfig := func(path, data string) func(t *testing.T) {
		return func(t *testing.T) {
			require.NoError(t, os.MkdirAll(fakeConfigDir, 0755))
			require.NoError(t, os.WriteFile(path, []byte(data), 0644))
		}
	}
	withDefaults := func(mutate func(*Config)) Config {
		cfg := DefaultConfig()
		mutate(&cfg)
		return cfg
	}

	tests := []struct {
		name        string
		setup       func(t *testing.T)
		wantConfig  Config
		wantErr     error
		wantWritten bool
		wantContent string // Expected JSON file content afterwards when not written.
	}{
		{
			name:        "No config files - writes default",
			setup:       func(t *testing.T) {},
			wantConfig:  DefaultConfig(),
			wantWritten: true,
		},
		{
			name:  "JSON config merges with defaults",
			setup: writeConfig(fakeConfigFile, `{"logLevel": "debug", "enableCSS": false, "hover": {"maxLines": 7}, "url": {"checkTimeoutSeconds": 5}}`),
			wantConfig: withDefaults(func(c *Config) {
				c.LogLevel = "debug"
				c.EnableCSS = false
				c.Hover.MaxLines = 7
				c.URL.CheckTimeoutSeconds = 5
				c.URL.CheckTimeout = 5 * time.Second
			}),
			wantContent: `{"logLevel": "debug", "enableCSS": false, "hover": {"maxLines": 7}, "url": {"checkTimeoutSeconds": 5}}`,
		},
		{
			name:  "YAML config",
			setup: writeConfig(fakeYAMLFile, "enableJS: false\nurl:\n  validation: true\n"),
			wantConfig: withDefaults(func(c *Config) {
				c.EnableJS = false
				c.URL.Validation = true
			}),
		},
		{
			name:        "Invalid JSON - returns defaults, leaves file alone",
			setup:       writeConfig(fakeConfigFile, `{"logLevel": "bad json",`),
			wantConfig:  DefaultConfig(),
			wantErr:     ErrConfig,
			wantContent: `{"logLevel": "bad json",`,
		},
		{
			name:        "Empty JSON object - defaults, no rewrite",
			setup:       writeConfig(fakeConfigFile, `{}`),
			wantConfig:  DefaultConfig(),
			wantContent: `{}`,
		},
		{
			name:        "Unknown fields are ignored",
			setup:       writeConfig(fakeConfigFile, `{"unknown_field": 123, "preferCssModules": false}`),
			wantConfig:  withDefaults(func(c *Config) { c.PreferCSSModules = false }),
			wantContent: `{"unknown_field": 123, "preferCssModules": false}`,
		},
		{
			name:        "Invalid log level - falls back to defaults",
			setup:       writeConfig(fakeConfigFile, `{"logLevel": "loud"}`),
			wantConfig:  DefaultConfig(),
			wantErr:     ErrConfig,
			wantContent: `{"logLevel": "loud"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.RemoveAll(fakeConfigDir))
			tt.setup(t)

			gotConfig, err := LoadConfig(discardLogger())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantConfig, gotConfig)

			data, statErr := os.ReadFile(fakeConfigFile)
			switch {
			case tt.wantWritten:
				require.NoError(t, statErr, "default config should have been written")
				var written Config
				require.NoError(t, json.Unmarshal(data, &written))
				assert.Equal(t, DefaultConfig().LogLevel, written.LogLevel)
			case tt.wantContent != "":
				require.NoError(t, statErr)
				assert.Equal(t, tt.wantContent, string(data))
			default:
				assert.True(t, errors.Is(statErr, os.ErrNotExist), "no JSON config expected, got %v", statErr)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("non-positive values take defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Hover.MaxLines = 0
		cfg.URL.CheckTimeoutSeconds = -1
		cfg.PreviewCacheTTLSeconds = 0
		cfg.LogLevel = ""
		require.NoError(t, cfg.Validate(discardLogger()))
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("derived durations", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL.CheckTimeoutSeconds = 7
		cfg.PreviewCacheTTLSeconds = 2
		require.NoError(t, cfg.Validate(nil))
		assert.Equal(t, 7*time.Second, cfg.URL.CheckTimeout)
		assert.Equal(t, 2*time.Second, cfg.PreviewCacheTTL)
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LogLevel = "loud"
		err := cfg.Validate(discardLogger())
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Equal(t, defaultLogLevel, cfg.LogLevel)
	})
}

func TestMergeFileConfig(t *testing.T) {
	var fc FileConfig
	require.NoError(t, json.Unmarshal([]byte(`{"enablePHP": false, "hover": {"maxLines": 5}, "diskCache": false}`), &fc))

	cfg := DefaultConfig()
	assert.Equal(t, 3, mergeFileConfig(&cfg, fc))
	assert.False(t, cfg.EnablePHP)
	assert.Equal(t, 5, cfg.Hover.MaxLines)
	assert.True(t, cfg.Hover.Preview, "unset nested fields keep their value")
	assert.False(t, cfg.DiskCache)
	assert.True(t, cfg.EnableJS)

	assert.Zero(t, mergeFileConfig(&cfg, FileConfig{}))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{" INFO ", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNavigatorUpdateConfig(t *testing.T) {
	n := newTestNavigator(t, newMemFS(t, "/proj", ""))

	t.Run("ValidUpdate", func(t *testing.T) {
		cfg := n.GetCurrentConfig()
		cfg.EnableHTML = false
		cfg.Hover.MaxLines = 3
		require.NoError(t, n.UpdateConfig(cfg))

		got := n.GetCurrentConfig()
		assert.False(t, got.EnableHTML)
		assert.Equal(t, 3, got.Hover.MaxLines)
		assert.True(t, got.EnablePHP)
	})

	t.Run("InvalidUpdate", func(t *testing.T) {
		before := n.GetCurrentConfig()
		cfg := before
		cfg.LogLevel = "loud"
		err := n.UpdateConfig(cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Equal(t, before, n.GetCurrentConfig())
	})
}

func TestNavigatorProjectRoot(t *testing.T) {
	n := newTestNavigator(t, newMemFS(t, "/proj", ""), "/proj", "/proj/packages/web", "/proj")
	assert.Equal(t, []string{"/proj", "/proj/packages/web"}, n.WorkspaceRoots())

	tests := []struct {
		path string
		want string
	}{
		{"/proj/packages/web/src/a.ts", "/proj/packages/web"},
		{"/proj/src/a.ts", "/proj"},
		{"/proj", "/proj"},
		{"/projector/a.ts", ""},
		{"/elsewhere/a.ts", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, n.ProjectRoot(tt.path))
		})
	}

	n.RemoveWorkspaceRoot("/proj/packages/web/")
	assert.Equal(t, "/proj", n.ProjectRoot("/proj/packages/web/src/a.ts"))
}

func TestNavigatorExtractOutOfRange(t *testing.T) {
	n := newTestNavigator(t, newMemFS(t, "/proj", ""), "/proj")
	doc := NewTextDocument("/proj/a.js", "javascript", `import a from './a';`)
	assert.False(t, n.ExtractContext(doc, 5, 0).Found())
	assert.False(t, n.ExtractPrefix(doc, -1, 0).Found())
	assert.Equal(t, "./a", n.ExtractContext(doc, 0, 16).Text)
}

func TestNavigatorAliasEntries(t *testing.T) {
	fsys := newMemFS(t, "/proj", aliasFixture)
	n := newTestNavigator(t, fsys, "/proj")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	assert.Equal(t, []AliasEntry{{Prefix: "@app/", Target: "/proj/src/app"}}, n.AliasEntries(ctx, "/proj/"))
	assert.Equal(t, 1, n.AliasCacheLen())
	n.InvalidateAliases("/proj")
	assert.Equal(t, 0, n.AliasCacheLen())
	n.AliasEntries(ctx, "/proj")
	n.InvalidateAllAliases()
	assert.Equal(t, 0, n.AliasCacheLen())
}

func TestLanguageForPath(t *testing.T) {
	tests := map[string]string{
		"/a/index.php":    "php",
		"/a/App.vue":      "vue",
		"/a/main.TS":      "typescript",
		"/a/comp.tsx":     "typescriptreact",
		"/a/lib.mjs":      "javascript",
		"/a/site.scss":    "scss",
		"/a/page.htm":     "html",
		"/a/README":       "plaintext",
		"/a/styles.less":  "less",
		"/a/partial.inc":  "php",
		"/a/widget.jsx":   "javascriptreact",
		"/a/reset.css":    "css",
		"/a/types.cts":    "typescript",
		"/a/legacy.sass":  "scss",
		"/a/index.phtml":  "php",
		"/a/config.json":  "plaintext",
		"/a/server.cjs":   "javascript",
		"/a/landing.html": "html",
	}
	for path, want := range tests {
		assert.Equal(t, want, LanguageForPath(path), path)
	}
}

func TestTextDocument(t *testing.T) {
	doc := NewTextDocument("/a.php", "php", "one\r\ntwo\n")
	assert.Equal(t, 3, doc.LineCount())
	assert.Equal(t, "one", doc.Line(0))
	assert.Equal(t, "two", doc.Line(1))
	assert.Equal(t, "", doc.Line(2))
	assert.Equal(t, "", doc.Line(9))
}
