package builtin

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/plugins"
)

// Shortcut binds a chord or a typed markdown prefix to a command.
type Shortcut struct {
	Chord   string `json:"chord"`
	Command string `json:"command"`
	Sort    int    `json:"sort"`
}

// SortKey implements plugins.Contribution.
func (s Shortcut) SortKey() int { return s.Sort }

// ShortcutExtension contributes shortcuts.
type ShortcutExtension interface {
	plugins.Extension

	Shortcuts() ([]Shortcut, error)
}

// ShortcutPlugin builds the keymap from its extensions on setup. When two
// shortcuts share a chord the one with the lower sort key wins.
type ShortcutPlugin struct {
	logger logging.Logger

	mu     sync.RWMutex
	exts   []ShortcutExtension
	keymap map[string]Shortcut
}

// NewShortcutPlugin creates the shortcut host.
func NewShortcutPlugin(logger logging.Logger) *ShortcutPlugin {
	return &ShortcutPlugin{
		logger: orDefault(logger).WithComponent(ShortcutPluginName),
		keymap: make(map[string]Shortcut),
	}
}

// Name returns the plugin name.
func (p *ShortcutPlugin) Name() string { return ShortcutPluginName }

// Description returns the plugin description.
func (p *ShortcutPlugin) Description() string {
	return "Keyboard and markdown input shortcuts"
}

// AttachExtensions keeps the shortcut extensions.
func (p *ShortcutPlugin) AttachExtensions(exts []plugins.Extension) error {
	shortcuts := accept[ShortcutExtension](context.Background(), p.logger, ShortcutPluginName, exts)
	p.mu.Lock()
	p.exts = shortcuts
	p.mu.Unlock()
	return nil
}

// Setup builds the keymap.
func (p *ShortcutPlugin) Setup(ctx context.Context, _ *dom.Document, _ []plugins.Plugin) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	shortcuts, _ := plugins.Aggregate(ctx, p.logger, p.exts, ShortcutExtension.Shortcuts)
	keymap := make(map[string]Shortcut, len(shortcuts))
	for _, s := range shortcuts {
		chord := NormalizeChord(s.Chord)
		if chord == "" {
			continue
		}
		if existing, ok := keymap[chord]; ok {
			p.logger.Warn(ctx, nil, "Shortcut chord already bound",
				"chord", chord, "kept", existing.Command, "dropped", s.Command)
			continue
		}
		s.Chord = chord
		keymap[chord] = s
	}
	p.keymap = keymap
	p.logger.Debug(ctx, "Keymap built", "shortcuts", len(keymap))
	return nil
}

// Lookup returns the shortcut bound to chord.
func (p *ShortcutPlugin) Lookup(chord string) (Shortcut, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.keymap[NormalizeChord(chord)]
	return s, ok
}

// Keymap returns every bound shortcut ordered by sort key, then chord.
func (p *ShortcutPlugin) Keymap() []Shortcut {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Shortcut, 0, len(p.keymap))
	for _, s := range p.keymap {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sort != out[j].Sort {
			return out[i].Sort < out[j].Sort
		}
		return out[i].Chord < out[j].Chord
	})
	return out
}

// NormalizeChord lowercases modifier chords and orders their modifiers, so
// "Shift-Mod-K" and "mod-shift-k" match. Markdown prefixes (anything
// containing a space or without a dash) are returned unchanged.
func NormalizeChord(chord string) string {
	if chord == "" || strings.Contains(chord, " ") || !strings.Contains(chord, "-") || chord == "-" {
		return chord
	}
	parts := strings.Split(strings.ToLower(chord), "-")
	key := parts[len(parts)-1]
	mods := parts[:len(parts)-1]
	sort.Strings(mods)
	return strings.Join(append(mods, key), "-")
}
