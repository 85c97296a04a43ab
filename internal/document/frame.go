package document

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
)

// DefaultQuery selects the elements a user can usually activate.
const DefaultQuery = "a[href], button, input, select, textarea, summary, [onclick], [role=button], [role=link], [tabindex]"

// Frame is one document context.
type Frame struct {
	id       hint.ContextID
	parent   hint.ContextID
	base     *url.URL
	root     *html.Node
	viewport viewport
	children map[*html.Node]hint.ContextID

	mu     sync.Mutex
	events []Event
}

// Event is one synthetic event dispatched to an element.
type Event struct {
	Type   string `json:"type"`
	Frame  string `json:"frame"`
	Target string `json:"target"`
	URL    string `json:"url,omitempty"`
}

// ID returns the frame's context id.
func (f *Frame) ID() hint.ContextID { return f.id }

// Parent returns the parent context id, empty for the top frame.
func (f *Frame) Parent() hint.ContextID { return f.parent }

// URL returns the frame's base URL, empty when unknown.
func (f *Frame) URL() string {
	if f.base == nil {
		return ""
	}
	return f.base.String()
}

// CompileQuery validates a discovery query. An empty query is DefaultQuery.
func CompileQuery(query string) (cascadia.Selector, error) {
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}
	sel, err := cascadia.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", domain.ErrInvalidQuery, query, err)
	}
	return sel, nil
}

// Discover returns the elements matching query in document order. Every
// iframe hosting a loaded frame is returned as a nested candidate whether or
// not it matches the query.
func (f *Frame) Discover(query string) ([]hint.Candidate, error) {
	sel, err := CompileQuery(query)
	if err != nil {
		return nil, err
	}

	var out []hint.Candidate
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if child, ok := f.children[n]; ok {
				out = append(out, hint.Candidate{Element: &Element{node: n, frame: f}, Child: child})
				return
			}
			if sel.Match(n) {
				out = append(out, hint.Candidate{Element: &Element{node: n, frame: f}})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(f.root)
	return out, nil
}

// Activate dispatches the synthetic click sequence to el.
func (f *Frame) Activate(ctx context.Context, el hint.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, ok := el.(*Element)
	if !ok || e.frame != f {
		return fmt.Errorf("activate: element does not belong to frame %s", f.id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, typ := range []string{"mousedown", "click", "mouseup"} {
		f.events = append(f.events, Event{
			Type:   typ,
			Frame:  string(f.id),
			Target: e.Text(),
			URL:    e.URL(),
		})
	}
	return nil
}

// Events returns a copy of the frame's event log.
func (f *Frame) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func (f *Frame) resolve(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	if f.base == nil {
		return u.String()
	}
	return f.base.ResolveReference(u).String()
}

// Element is a discovered element. It implements hint.Element.
type Element struct {
	node  *html.Node
	frame *Frame
}

// Kind returns the upper-case tag name.
func (e *Element) Kind() string {
	return strings.ToUpper(e.node.Data)
}

// Text returns the element's display text: its collapsed text content, or
// for form controls and empty elements the most descriptive attribute.
func (e *Element) Text() string {
	switch e.node.Data {
	case "input", "textarea", "select":
		for _, key := range []string{"value", "placeholder", "aria-label", "title", "name"} {
			if v, ok := attr(e.node, key); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	if t := textContent(e.node); t != "" {
		return t
	}
	for _, key := range []string{"aria-label", "title", "alt"} {
		if v, ok := attr(e.node, key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// URL returns the absolute link target, if any.
func (e *Element) URL() string {
	key := "href"
	if e.node.Data == "iframe" {
		key = "src"
	}
	v, ok := attr(e.node, key)
	if !ok || v == "" {
		return ""
	}
	return e.frame.resolve(v)
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}
