package dom

import (
	"errors"
	"sync"

	"golang.org/x/net/html"
)

// MaxCommitRounds bounds how many delivery rounds a single Commit may run.
// Subscribers that keep producing mutations in response to every batch hit
// this limit instead of spinning forever.
const MaxCommitRounds = 64

// ErrMutationLoop is returned by Commit when subscribers kept producing new
// mutations for MaxCommitRounds rounds.
var ErrMutationLoop = errors.New("dom: mutation loop detected")

// MutationRecord describes one child-list change under the document root.
type MutationRecord struct {
	Target  *html.Node
	Added   []*html.Node
	Removed []*html.Node
}

// MutationFunc receives one batch of records.
type MutationFunc func(records []MutationRecord)

type subscription struct {
	id int
	fn MutationFunc
}

// Document owns an editing root and records child-list mutations made
// through its methods. Records are queued and handed to subscribers in
// batches by Commit, in the order the mutations happened.
//
// A Document is not safe for concurrent mutation; like the browser DOM it
// belongs to a single goroutine. The mutex only guards the subscriber list
// and the pending queue.
type Document struct {
	root *html.Node

	mu      sync.Mutex
	subs    []subscription
	nextID  int
	pending []MutationRecord
}

// NewDocument wraps root. A nil root gets a fresh <div>.
func NewDocument(root *html.Node) *Document {
	if root == nil {
		root = Element("div")
	}
	return &Document{root: root}
}

// ParseDocument builds a Document whose root is a rootTag element holding
// the parsed markup. Parsing is not recorded as a mutation.
func ParseDocument(markup, rootTag string) (*Document, error) {
	if rootTag == "" {
		rootTag = "div"
	}
	root := Element(rootTag)
	nodes, err := ParseFragment(markup, rootTag)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return NewDocument(root), nil
}

// Root returns the editing root.
func (d *Document) Root() *html.Node {
	return d.root
}

// Observe registers fn for future batches and returns a cancel function.
func (d *Document) Observe(fn MutationFunc) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscription{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.subs {
			if s.id == id {
				d.subs = append(d.subs[:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns how many observers are registered.
func (d *Document) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Pending returns how many records wait for the next Commit.
func (d *Document) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Document) record(r MutationRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Nobody is listening: nothing to queue.
	if len(d.subs) == 0 {
		return
	}
	d.pending = append(d.pending, r)
}

// AppendChild appends child to parent and records the insertion.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.detachRecorded(child)
	parent.AppendChild(child)
	d.record(MutationRecord{Target: parent, Added: []*html.Node{child}})
}

// InsertBefore inserts child before ref (or appends when ref is nil).
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	d.detachRecorded(child)
	parent.InsertBefore(child, ref)
	d.record(MutationRecord{Target: parent, Added: []*html.Node{child}})
}

// ReplaceWith swaps old for replacement and records both sides.
func (d *Document) ReplaceWith(old, replacement *html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	Replace(old, replacement)
	d.record(MutationRecord{Target: parent, Added: []*html.Node{replacement}, Removed: []*html.Node{old}})
}

// Remove detaches n and records the removal.
func (d *Document) Remove(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	parent.RemoveChild(n)
	d.record(MutationRecord{Target: parent, Removed: []*html.Node{n}})
}

// SetInnerHTML replaces every child of parent with the parsed markup.
func (d *Document) SetInnerHTML(parent *html.Node, markup string) error {
	nodes, err := ParseFragment(markup, TagName(parent))
	if err != nil {
		return err
	}
	removed := Children(parent)
	for _, c := range removed {
		parent.RemoveChild(c)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.record(MutationRecord{Target: parent, Added: nodes, Removed: removed})
	return nil
}

// detachRecorded moves a node out of its current parent, recording the
// removal when it was attached.
func (d *Document) detachRecorded(n *html.Node) {
	if n.Parent == nil {
		return
	}
	d.record(MutationRecord{Target: n.Parent, Removed: []*html.Node{n}})
	n.Parent.RemoveChild(n)
}

// Commit delivers queued records to every subscriber. Records produced by
// subscribers while handling a batch are delivered in a following round of
// the same Commit.
func (d *Document) Commit() error {
	for round := 0; round < MaxCommitRounds; round++ {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		subs := make([]subscription, len(d.subs))
		copy(subs, d.subs)
		d.mu.Unlock()

		if len(batch) == 0 {
			return nil
		}
		for _, s := range subs {
			s.fn(batch)
		}
	}

	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
	return ErrMutationLoop
}

// Render returns the root's inner HTML.
func (d *Document) Render() string {
	return InnerHTML(d.root)
}
