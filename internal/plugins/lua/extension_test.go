package lua

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/overlay"
	"github.com/conneroisu/blockedit/internal/plugins"
	"github.com/conneroisu/blockedit/internal/plugins/builtin"
)

const menuScript = `
name = "callouts"
target = "slash-menu"
sort = 70

function items(tag)
  return {
    { id = "callout", label = "Callout", block = "blockquote", keywords = { "note", "tip" } },
    { id = "table", label = "Table", block = "table", sort = 5, hidden = tag == "table" },
  }
end
`

const buttonScript = `
name = "highlight"
target = "toolbar"

function buttons(tag, selection)
  return {
    { id = "mark", label = "Highlight", command = "mark", sort = 15, hidden = not selection, active = tag == "mark" },
  }
end
`

const shortcutScript = `
name = "keys"
target = "shortcuts"
sort = 30

function shortcuts()
  return {
    { chord = "Mod-Shift-h", command = "mark" },
    { chord = "Mod-b", command = "lua-bold", sort = 1 },
  }
end
`

func load(t *testing.T, src string, opts ...Option) *Extension {
	t.Helper()
	ext, err := LoadString(src, "test.lua", opts...)
	require.NoError(t, err)
	t.Cleanup(ext.Close)
	return ext
}

func TestLoadString_Declarations(t *testing.T) {
	ext := load(t, menuScript)
	assert.Equal(t, "callouts", ext.Name())
	assert.Equal(t, builtin.SlashMenuPluginName, ext.Target())
	assert.Equal(t, "test.lua", ext.Source())
	assert.Contains(t, ext.Description(), "test.lua")
}

func TestLoadString_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"syntax", `name = `},
		{"runtime", `error("nope")`},
		{"missing name", `target = "toolbar"; function buttons() return {} end`},
		{"missing target", `name = "x"`},
		{"unknown target", `name = "x"; target = "sidebar"`},
		{"missing entry point", `name = "x"; target = "toolbar"`},
		{"sandboxed io", `name = "x"; target = "shortcuts"; io.open("/etc/passwd")`},
		{"sandboxed dofile", `name = "x"; target = "shortcuts"; dofile("x.lua")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.source, "bad.lua")
			assert.Error(t, err)
		})
	}
}

func TestItems(t *testing.T) {
	ext := load(t, menuScript)

	items, err := ext.Items(dom.Element("p"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "callout", items[0].ID)
	assert.Equal(t, 70, items[0].Sort)
	assert.Equal(t, []string{"note", "tip"}, items[0].Keywords)
	assert.Equal(t, 5, items[1].Sort)
	assert.False(t, items[1].Hidden)

	items, err = ext.Items(dom.Element("table"))
	require.NoError(t, err)
	assert.True(t, items[1].Hidden)
}

func TestButtons(t *testing.T) {
	ext := load(t, buttonScript)

	buttons, err := ext.Buttons(builtin.ToolbarContext{Block: dom.Element("p")})
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	assert.True(t, buttons[0].Hidden)

	buttons, err = ext.Buttons(builtin.ToolbarContext{Block: dom.Element("mark"), Selection: true})
	require.NoError(t, err)
	assert.False(t, buttons[0].Hidden)
	assert.True(t, buttons[0].Active)
	assert.Equal(t, "mark", buttons[0].Command)
}

func TestShortcuts(t *testing.T) {
	ext := load(t, shortcutScript)

	shortcuts, err := ext.Shortcuts()
	require.NoError(t, err)
	require.Len(t, shortcuts, 2)
	assert.Equal(t, 30, shortcuts[0].Sort)
	assert.Equal(t, 1, shortcuts[1].Sort)
}

func TestCall_WrongContract(t *testing.T) {
	ext := load(t, shortcutScript)
	_, err := ext.Items(dom.Element("p"))
	assert.Error(t, err)
}

func TestCall_RuntimeErrors(t *testing.T) {
	ext := load(t, `
name = "broken"
target = "slash-menu"
function items(tag)
  if tag == "p" then error("bad block") end
  if tag == "h1" then return "nope" end
  return { 1, 2 }
end
`)
	for _, tag := range []string{"p", "h1", "h2"} {
		_, err := ext.Items(dom.Element(tag))
		assert.Error(t, err, tag)
	}
}

func TestCall_Timeout(t *testing.T) {
	ext := load(t, `
name = "spin"
target = "shortcuts"
function shortcuts()
  while true do end
end
`, WithTimeout(20*time.Millisecond))

	_, err := ext.Shortcuts()
	assert.Error(t, err)
}

func TestLoadString_TopLevelTimeout(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		_, err := LoadString("while true do end", "spin.lua", WithTimeout(50*time.Millisecond))
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "script failed")
	case <-time.After(5 * time.Second):
		t.Fatal("loading a spinning script did not time out")
	}
}

func TestClose(t *testing.T) {
	ext, err := LoadString(shortcutScript, "keys.lua")
	require.NoError(t, err)
	ext.Close()
	ext.Close()
	_, err = ext.Shortcuts()
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_menu.lua"), []byte(menuScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_keys.lua"), []byte(shortcutScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_bad.lua"), []byte(`name =`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	exts, err := LoadDir(dir)
	assert.Error(t, err)
	require.Len(t, exts, 2)
	assert.Equal(t, "callouts", exts[0].Name())
	assert.Equal(t, "keys", exts[1].Name())
	for _, ext := range exts {
		ext.Close()
	}

	_, err = LoadExtension(filepath.Join(dir, "missing.lua"))
	assert.Error(t, err)
}

func TestExtensionsAttachToHosts(t *testing.T) {
	doc, err := dom.ParseDocument(`<p>text</p>`, "div")
	require.NoError(t, err)

	menu := builtin.NewSlashMenuPlugin(overlay.NewStack(), logging.NewTestLogger())
	keys := builtin.NewShortcutPlugin(logging.NewTestLogger())

	engine := plugins.NewEngine(logging.NewTestLogger())
	require.NoError(t, engine.Register(menu))
	require.NoError(t, engine.Register(keys))
	require.NoError(t, engine.Extend(builtin.NewBlockItems()))
	require.NoError(t, engine.Extend(builtin.NewMarkdownShortcuts()))
	require.NoError(t, engine.Extend(load(t, menuScript)))
	require.NoError(t, engine.Extend(load(t, shortcutScript)))
	require.NoError(t, engine.Build(context.Background(), doc))

	items := menu.ItemsFor(context.Background(), doc.Root().FirstChild)
	require.NotEmpty(t, items)
	assert.Equal(t, "table", items[0].ID)
	assert.Equal(t, "callout", items[len(items)-1].ID)

	s, ok := keys.Lookup("mod-b")
	require.True(t, ok)
	assert.Equal(t, "lua-bold", s.Command)
	_, ok = keys.Lookup("mod-shift-h")
	assert.True(t, ok)
}
