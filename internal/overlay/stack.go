package overlay

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/logging"
)

// KeyEscape is the key name that closes the top overlay.
const KeyEscape = "Escape"

// ClickEvent describes a pointer click.
type ClickEvent struct {
	// Target is the clicked node.
	Target *html.Node
	// Detail is the click count; values above 1 are double or triple clicks.
	Detail int
	// HasSelection reports a non-collapsed text selection.
	HasSelection bool
}

// ClickOutcome says what HandleClick did.
type ClickOutcome int

const (
	ClickIgnored ClickOutcome = iota
	ClickClosedGroup
	ClickClosedTop
)

func (o ClickOutcome) String() string {
	switch o {
	case ClickClosedGroup:
		return "closed-group"
	case ClickClosedTop:
		return "closed-top"
	default:
		return "ignored"
	}
}

// Stack is an ordered collection of open overlays; the last entry is on
// top. Every removal detaches the entry's node from the DOM.
type Stack struct {
	mu      sync.Mutex
	entries []Entry

	host         *html.Node
	editorArea   *html.Node
	onCloseGroup func()
	logger       logging.Logger
}

// Option configures a Stack.
type Option func(*Stack)

// WithEditorArea sets the editable content area. Plain clicks inside it
// close the whole stack.
func WithEditorArea(area *html.Node) Option {
	return func(s *Stack) {
		s.editorArea = area
	}
}

// WithHost sets the element pushed overlays are attached to when they are
// not attached yet.
func WithHost(host *html.Node) Option {
	return func(s *Stack) {
		s.host = host
	}
}

// WithOnCloseGroup registers the "close overlay group" signal raised when
// a click in the editor area dismisses every overlay.
func WithOnCloseGroup(fn func()) Option {
	return func(s *Stack) {
		s.onCloseGroup = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Stack) {
		s.logger = logger
	}
}

// NewStack creates an empty stack.
func NewStack(opts ...Option) *Stack {
	s := &Stack{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger(logging.DefaultConfig())
	}
	s.logger = s.logger.WithComponent("overlay")
	return s
}

// Push opens an entry.
//
// A plain entry first closes every open overlay. For a component, an open
// overlay of the same kind is closed together with the incoming one and
// Push reports false. Otherwise overlays the component cannot sit above
// are closed from the top down until a compatible one is found.
func (s *Stack) Push(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	comp, ok := e.(Component)
	if !ok {
		s.clearLocked()
		s.pushLocked(e)
		return true
	}

	for i := len(s.entries) - 1; i >= 0; i-- {
		open, ok := s.entries[i].(Component)
		if ok && open.Kind() == comp.Kind() {
			s.removeAtLocked(i)
			dom.Detach(e.Node())
			s.logger.Debug(context.Background(), "Overlay toggled closed",
				"kind", comp.Kind(), "id", identify(open))
			return false
		}
	}

	for len(s.entries) > 0 && !comp.CanOverlay(s.entries[len(s.entries)-1]) {
		s.removeAtLocked(len(s.entries) - 1)
	}
	s.pushLocked(e)
	return true
}

func (s *Stack) pushLocked(e Entry) {
	if s.host != nil && e.Node() != nil && e.Node().Parent == nil {
		s.host.AppendChild(e.Node())
	}
	s.entries = append(s.entries, e)
	s.logger.Debug(context.Background(), "Overlay opened",
		"kind", kindOf(e), "id", identify(e), "depth", len(s.entries))
}

func (s *Stack) removeAtLocked(i int) Entry {
	e := s.entries[i]
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	dom.Detach(e.Node())
	return e
}

func (s *Stack) clearLocked() {
	for len(s.entries) > 0 {
		s.removeAtLocked(len(s.entries) - 1)
	}
}

// Peek returns the top entry, or nil.
func (s *Stack) Peek() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

// Pop closes and returns the top entry, or nil when empty.
func (s *Stack) Pop() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil
	}
	return s.removeAtLocked(len(s.entries) - 1)
}

// Clear closes every entry.
func (s *Stack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Remove closes the entry holding node wherever it is in the stack. It
// reports whether anything was removed.
func (s *Stack) Remove(node *html.Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.Node() == node {
			s.removeAtLocked(i)
			return true
		}
	}
	return false
}

// Len returns the number of open entries.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns the open entries, bottom first.
func (s *Stack) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// HandleKey closes the top overlay on Escape. It reports whether the key
// was consumed.
func (s *Stack) HandleKey(key string) bool {
	if key != KeyEscape {
		return false
	}
	return s.Pop() != nil
}

// HandleClick applies the click rules. Clicks inside an open overlay are
// ignored, and so are multi-clicks and selecting clicks in the editor
// area. A plain single click in the editor area closes the whole group.
// Any other click outside the top overlay closes it when the overlay
// allows that.
func (s *Stack) HandleClick(ev ClickEvent) ClickOutcome {
	s.mu.Lock()
	for _, e := range s.entries {
		if dom.Contains(e.Node(), ev.Target) {
			s.mu.Unlock()
			return ClickIgnored
		}
	}

	if s.editorArea != nil && dom.Contains(s.editorArea, ev.Target) {
		if ev.Detail > 1 || ev.HasSelection {
			s.mu.Unlock()
			return ClickIgnored
		}
		s.clearLocked()
		notify := s.onCloseGroup
		s.mu.Unlock()
		if notify != nil {
			notify()
		}
		return ClickClosedGroup
	}
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return ClickIgnored
	}
	top, ok := s.entries[len(s.entries)-1].(Component)
	if !ok || !top.CanCloseOnClickOutside() {
		return ClickIgnored
	}
	s.removeAtLocked(len(s.entries) - 1)
	return ClickClosedTop
}
