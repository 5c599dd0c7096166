// Package assets loads feature bundles (scripts, styles, inline code) at
// most once each, dependencies first.
package assets

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
)

// Schedule says when a bundle loads without being asked for.
type Schedule string

const (
	// ScheduleOnDemand bundles load only through Ensure.
	ScheduleOnDemand Schedule = ""
	// ScheduleStartup bundles load as soon as scheduling starts.
	ScheduleStartup Schedule = "startup"
	// ScheduleIdle bundles load after the idle delay.
	ScheduleIdle Schedule = "idle"
)

// Bundle is a named group of assets for one feature.
type Bundle struct {
	Feature      string   `yaml:"feature" json:"feature"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Scripts      []string `yaml:"scripts,omitempty" json:"scripts,omitempty"`
	Styles       []string `yaml:"styles,omitempty" json:"styles,omitempty"`
	Inline       []string `yaml:"inline,omitempty" json:"inline,omitempty"`
	Schedule     Schedule `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

// Injector performs the actual loading. Calls for one bundle are made
// sequentially: styles, then scripts, then inline code.
type Injector interface {
	InjectScript(ctx context.Context, src string) error
	InjectStyle(ctx context.Context, href string) error
	InjectInline(ctx context.Context, code string) error
}

// DocumentInjector appends <link>, <script src> and inline <script>
// elements to a head element.
type DocumentInjector struct {
	mu   sync.Mutex
	head *html.Node
}

// NewDocumentInjector creates an injector writing into head.
func NewDocumentInjector(head *html.Node) *DocumentInjector {
	return &DocumentInjector{head: head}
}

// InjectScript appends an external script.
func (d *DocumentInjector) InjectScript(ctx context.Context, src string) error {
	return d.append(ctx, dom.Element("script", "src", src, "defer", ""))
}

// InjectStyle appends a stylesheet link.
func (d *DocumentInjector) InjectStyle(ctx context.Context, href string) error {
	return d.append(ctx, dom.Element("link", "rel", "stylesheet", "href", href))
}

// InjectInline appends an inline script.
func (d *DocumentInjector) InjectInline(ctx context.Context, code string) error {
	el := dom.Element("script")
	el.AppendChild(dom.Text(code))
	return d.append(ctx, el)
}

func (d *DocumentInjector) append(ctx context.Context, el *html.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.head.AppendChild(el)
	return nil
}

// Head returns the rendered head content.
func (d *DocumentInjector) Head() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return dom.InnerHTML(d.head)
}
