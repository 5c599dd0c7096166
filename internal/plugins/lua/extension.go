// Package lua loads editor extensions written in Lua. A script declares the
// globals name, target and sort, and one contribution function matching its
// target: items(tag) for the slash menu, buttons(tag, selection) for the
// toolbar, shortcuts() for the keymap.
package lua

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/errors"
	"github.com/conneroisu/blockedit/internal/plugins/builtin"
)

// DefaultTimeout bounds a single call into a script.
const DefaultTimeout = time.Second

// contribution functions per host.
var entryPoints = map[string]string{
	builtin.SlashMenuPluginName: "items",
	builtin.ToolbarPluginName:   "buttons",
	builtin.ShortcutPluginName:  "shortcuts",
}

// Extension is a Lua-scripted extension. It implements the slash menu,
// toolbar and shortcut contracts; calls for a contract other than the one
// its target declares fail.
type Extension struct {
	name    string
	target  string
	sort    int
	source  string
	timeout time.Duration

	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// Option configures an Extension.
type Option func(*Extension)

// WithTimeout bounds every call into the script.
func WithTimeout(d time.Duration) Option {
	return func(e *Extension) {
		e.timeout = d
	}
}

// LoadExtension runs the script at path and reads its declarations.
func LoadExtension(path string, opts ...Option) (*Extension, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "cannot read lua extension", err).
			WithContext("path", path)
	}
	return LoadString(string(code), path, opts...)
}

// LoadString runs source, naming it chunk in errors, and reads its
// declarations. The top-level chunk gets the same time limit as a call.
func LoadString(source, chunk string, opts ...Option) (*Extension, error) {
	e := &Extension{source: chunk, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	e.L = L

	fn, err := L.Load(strings.NewReader(source), chunk)
	if err != nil {
		L.Close()
		return nil, e.fail("syntax error", err)
	}
	L.Push(fn)
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	L.SetContext(ctx)
	err = e.protect(func() error { return L.PCall(0, lua.MultRet, nil) })
	L.RemoveContext()
	cancel()
	if err != nil {
		L.Close()
		return nil, e.fail("script failed", err)
	}

	if err := e.readDeclarations(); err != nil {
		L.Close()
		return nil, err
	}
	return e, nil
}

// LoadDir loads every *.lua file in dir in name order. Scripts that fail to
// load are reported together; the others are still returned.
func LoadDir(dir string, opts ...Option) ([]*Extension, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	collector := errors.NewErrorCollector()
	var exts []*Extension
	for _, path := range paths {
		ext, err := LoadExtension(path, opts...)
		if err != nil {
			collector.Add(errors.PluginFailure{Plugin: filepath.Base(path), Phase: errors.PhaseAttach, Err: err})
			continue
		}
		exts = append(exts, ext)
	}
	return exts, collector.Err()
}

// openSafeLibraries opens base, table, string and math and removes the
// base functions that load code from disk or strings.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (e *Extension) readDeclarations() error {
	name, ok := e.L.GetGlobal("name").(lua.LString)
	if !ok || name == "" {
		return e.fail("missing string global 'name'", nil)
	}
	target, ok := e.L.GetGlobal("target").(lua.LString)
	if !ok || target == "" {
		return e.fail("missing string global 'target'", nil)
	}
	e.name, e.target = string(name), string(target)

	if n, ok := e.L.GetGlobal("sort").(lua.LNumber); ok {
		e.sort = int(n)
	}

	entry, known := entryPoints[e.target]
	if !known {
		return e.fail(fmt.Sprintf("unsupported target %q", e.target), nil)
	}
	if e.L.GetGlobal(entry).Type() != lua.LTFunction {
		return e.fail(fmt.Sprintf("target %q requires function %s", e.target, entry), nil)
	}
	return nil
}

// Name returns the script's declared name.
func (e *Extension) Name() string { return e.name }

// Target returns the script's declared target.
func (e *Extension) Target() string { return e.target }

// Source returns the path or chunk name the script was loaded from.
func (e *Extension) Source() string { return e.source }

// Description implements plugins.Describer.
func (e *Extension) Description() string {
	return "lua script " + e.source
}

// Close releases the Lua state.
func (e *Extension) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.L.Close()
		e.closed = true
	}
}

// Items calls items(tag).
func (e *Extension) Items(block *html.Node) ([]builtin.MenuItem, error) {
	rows, err := e.call("items", lua.LString(dom.TagName(block)))
	if err != nil {
		return nil, err
	}
	items := make([]builtin.MenuItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, builtin.MenuItem{
			ID:       str(row, "id"),
			Label:    str(row, "label"),
			Block:    str(row, "block"),
			Keywords: strs(row, "keywords"),
			Sort:     num(row, "sort", e.sort),
			Hidden:   lua.LVAsBool(row.RawGetString("hidden")),
		})
	}
	return items, nil
}

// Buttons calls buttons(tag, selection).
func (e *Extension) Buttons(tc builtin.ToolbarContext) ([]builtin.Button, error) {
	rows, err := e.call("buttons", lua.LString(tc.Tag()), lua.LBool(tc.Selection))
	if err != nil {
		return nil, err
	}
	buttons := make([]builtin.Button, 0, len(rows))
	for _, row := range rows {
		buttons = append(buttons, builtin.Button{
			ID:      str(row, "id"),
			Label:   str(row, "label"),
			Command: str(row, "command"),
			Sort:    num(row, "sort", e.sort),
			Active:  lua.LVAsBool(row.RawGetString("active")),
			Hidden:  lua.LVAsBool(row.RawGetString("hidden")),
		})
	}
	return buttons, nil
}

// Shortcuts calls shortcuts().
func (e *Extension) Shortcuts() ([]builtin.Shortcut, error) {
	rows, err := e.call("shortcuts")
	if err != nil {
		return nil, err
	}
	shortcuts := make([]builtin.Shortcut, 0, len(rows))
	for _, row := range rows {
		shortcuts = append(shortcuts, builtin.Shortcut{
			Chord:   str(row, "chord"),
			Command: str(row, "command"),
			Sort:    num(row, "sort", e.sort),
		})
	}
	return shortcuts, nil
}

// call invokes a global function and returns its result as a list of
// tables.
func (e *Extension) call(fn string, args ...lua.LValue) ([]*lua.LTable, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, e.fail("extension closed", nil)
	}
	if entryPoints[e.target] != fn {
		return nil, e.fail(fmt.Sprintf("%s is not available for target %q", fn, e.target), nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()

	err := e.protect(func() error {
		return e.L.CallByParam(lua.P{Fn: e.L.GetGlobal(fn), NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		return nil, e.fail(fn+" failed", err)
	}
	ret := e.L.Get(-1)
	e.L.Pop(1)

	if ret == lua.LNil {
		return nil, nil
	}
	list, ok := ret.(*lua.LTable)
	if !ok {
		return nil, e.fail(fmt.Sprintf("%s returned %s, want table", fn, ret.Type()), nil)
	}
	rows := make([]*lua.LTable, 0, list.Len())
	for i := 1; i <= list.Len(); i++ {
		row, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, e.fail(fmt.Sprintf("%s entry %d is not a table", fn, i), nil)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *Extension) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

func (e *Extension) fail(msg string, cause error) *errors.EditorError {
	return errors.NewPluginError(errors.ErrCodeExtensionFailed, msg, cause).
		WithContext("script", e.source).
		WithComponent("lua")
}

func str(t *lua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

func num(t *lua.LTable, key string, def int) int {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return def
}

func strs(t *lua.LTable, key string) []string {
	list, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}
	out := make([]string, 0, list.Len())
	for i := 1; i <= list.Len(); i++ {
		if s, ok := list.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}
