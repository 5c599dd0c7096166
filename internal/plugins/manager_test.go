package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/blockedit/internal/dom"
	editorerrors "github.com/conneroisu/blockedit/internal/errors"
	"github.com/conneroisu/blockedit/internal/logging"
)

// recorder logs lifecycle calls across mock plugins.
type recorder struct {
	calls []string
}

type MockPlugin struct {
	name     string
	rec      *recorder
	setupErr error
	panics   bool
	seen     []Plugin
	torn     bool
}

func (m *MockPlugin) Name() string { return m.name }

func (m *MockPlugin) Setup(ctx context.Context, root *dom.Document, all []Plugin) error {
	m.rec.calls = append(m.rec.calls, "setup:"+m.name)
	m.seen = all
	if m.panics {
		panic("setup exploded")
	}
	return m.setupErr
}

func (m *MockPlugin) Teardown(ctx context.Context) error {
	m.rec.calls = append(m.rec.calls, "teardown:"+m.name)
	m.torn = true
	return nil
}

type MockHost struct {
	MockPlugin
	attachErr error
	attached  []Extension
	attaches  int
}

func (m *MockHost) AttachExtensions(exts []Extension) error {
	m.rec.calls = append(m.rec.calls, "attach:"+m.name)
	m.attaches++
	m.attached = exts
	return m.attachErr
}

func (m *MockHost) Description() string { return "mock host" }

type MockExtension struct {
	BaseExtension
}

func ext(name, target string) *MockExtension {
	return &MockExtension{BaseExtension{ExtensionName: name, TargetName: target}}
}

func newEngine(opts ...EngineOption) *Engine {
	return NewEngine(logging.NewTestLogger(), opts...)
}

func TestEngine_AttachBeforeSetup(t *testing.T) {
	rec := &recorder{}
	plain := &MockPlugin{name: "plain", rec: rec}
	host := &MockHost{MockPlugin: MockPlugin{name: "host", rec: rec}}

	e := newEngine()
	require.NoError(t, e.Register(plain))
	require.NoError(t, e.Register(host))
	require.NoError(t, e.Extend(ext("a", "host")))
	require.NoError(t, e.Extend(ext("b", "host")))

	require.NoError(t, e.Build(context.Background(), dom.NewDocument(nil)))

	assert.Equal(t, []string{"attach:host", "setup:plain", "setup:host"}, rec.calls)
	require.Len(t, host.attached, 2)
	assert.Equal(t, "a", host.attached[0].Name())
	assert.Equal(t, "b", host.attached[1].Name())
	assert.Len(t, plain.seen, 2)
	assert.Equal(t, PluginStateEnabled, e.State("host"))
}

func TestEngine_HostWithoutExtensionsGetsEmptyList(t *testing.T) {
	host := &MockHost{MockPlugin: MockPlugin{name: "host", rec: &recorder{}}}
	e := newEngine()
	require.NoError(t, e.Register(host))

	require.NoError(t, e.Build(context.Background(), dom.NewDocument(nil)))
	assert.Equal(t, 1, host.attaches)
	assert.NotNil(t, host.attached)
	assert.Empty(t, host.attached)
}

func TestEngine_DuplicateRegistration(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.Register(&MockPlugin{name: "x", rec: &recorder{}}))

	err := e.Register(&MockPlugin{name: "x", rec: &recorder{}})
	var ee *editorerrors.EditorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, editorerrors.ErrCodePluginDuplicate, ee.Code)
}

func TestEngine_ExtensionWithoutTarget(t *testing.T) {
	e := newEngine()
	assert.Error(t, e.Extend(ext("lonely", "")))
}

func TestEngine_OrphanExtensions(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.Register(&MockHost{MockPlugin: MockPlugin{name: "host", rec: &recorder{}}}))
	require.NoError(t, e.Extend(ext("lost", "missing")))

	require.NoError(t, e.Build(context.Background(), dom.NewDocument(nil)))

	infos := e.Extensions()
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Orphan)
}

func TestEngine_FailuresAreIsolated(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	badAttach := &MockHost{MockPlugin: MockPlugin{name: "bad-attach", rec: rec}, attachErr: boom}
	badSetup := &MockPlugin{name: "bad-setup", rec: rec, setupErr: boom}
	panicky := &MockPlugin{name: "panicky", rec: rec, panics: true}
	good := &MockPlugin{name: "good", rec: rec}

	e := newEngine()
	for _, p := range []Plugin{badAttach, badSetup, panicky, good} {
		require.NoError(t, e.Register(p))
	}

	err := e.Build(context.Background(), dom.NewDocument(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, PluginStateError, e.State("bad-attach"))
	assert.Equal(t, PluginStateError, e.State("bad-setup"))
	assert.Equal(t, PluginStateError, e.State("panicky"))
	assert.Equal(t, PluginStateEnabled, e.State("good"))
	assert.NotContains(t, rec.calls, "setup:bad-attach")
	assert.Len(t, e.Failures(), 3)
}

func TestEngine_DisabledPlugins(t *testing.T) {
	rec := &recorder{}
	host := &MockHost{MockPlugin: MockPlugin{name: "host", rec: rec}}
	other := &MockPlugin{name: "other", rec: rec}

	e := newEngine(WithDisabled("host"))
	require.NoError(t, e.Register(host))
	require.NoError(t, e.Register(other))
	require.NoError(t, e.Extend(ext("a", "host")))

	require.NoError(t, e.Build(context.Background(), dom.NewDocument(nil)))

	assert.Equal(t, []string{"setup:other"}, rec.calls)
	assert.Equal(t, PluginStateDisabled, e.State("host"))
	assert.Len(t, other.seen, 1)
	assert.False(t, e.Extensions()[0].Orphan)
}

func TestEngine_BuildOnce(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.Build(context.Background(), dom.NewDocument(nil)))
	assert.Error(t, e.Build(context.Background(), dom.NewDocument(nil)))
	assert.Error(t, e.Register(&MockPlugin{name: "late", rec: &recorder{}}))
}

func TestEngine_ShutdownReverseOrder(t *testing.T) {
	rec := &recorder{}
	first := &MockPlugin{name: "first", rec: rec}
	second := &MockPlugin{name: "second", rec: rec}
	failed := &MockPlugin{name: "failed", rec: rec, setupErr: errors.New("x")}

	e := newEngine()
	require.NoError(t, e.Register(first))
	require.NoError(t, e.Register(failed))
	require.NoError(t, e.Register(second))
	_ = e.Build(context.Background(), dom.NewDocument(nil))
	rec.calls = nil

	require.NoError(t, e.Shutdown(context.Background()))
	assert.Equal(t, []string{"teardown:second", "teardown:first"}, rec.calls)
	assert.False(t, failed.torn)
	assert.Equal(t, PluginStateStopped, e.State("first"))
}

func TestEngine_PluginsListing(t *testing.T) {
	host := &MockHost{MockPlugin: MockPlugin{name: "host", rec: &recorder{}}}
	e := newEngine()
	require.NoError(t, e.Register(host))
	require.NoError(t, e.Extend(ext("a", "host")))
	require.NoError(t, e.Build(context.Background(), dom.NewDocument(nil)))

	infos := e.Plugins()
	require.Len(t, infos, 1)
	assert.Equal(t, "mock host", infos[0].Description)
	assert.True(t, infos[0].Extensible)
	assert.Equal(t, []string{"a"}, infos[0].Extensions)

	p, ok := e.Plugin("host")
	assert.True(t, ok)
	assert.Same(t, host, p)
}
