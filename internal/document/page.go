// Package document is the headless document model hints run against. A Page
// is a tree of frames parsed with golang.org/x/net/html; every <iframe> whose
// document can be loaded becomes a nested frame with its own context id.
package document

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
)

// TopID is the context id of the top-level frame.
const TopID hint.ContextID = "top"

// Fetcher loads the markup of a nested document by absolute URL.
type Fetcher interface {
	Fetch(rawURL string) (string, error)
}

// MapFetcher serves nested documents from memory, keyed by absolute URL.
type MapFetcher map[string]string

// Fetch implements Fetcher.
func (m MapFetcher) Fetch(rawURL string) (string, error) {
	src, ok := m[rawURL]
	if !ok {
		return "", fmt.Errorf("resource %s not found", rawURL)
	}
	return src, nil
}

// FileFetcher reads file:// URLs from disk.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (FileFetcher) Fetch(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u.Path, err)
	}
	return string(data), nil
}

// Options controls page loading.
type Options struct {
	URL            string  // base URL of the top document
	Fetcher        Fetcher // nil: only srcdoc frames load
	ViewportWidth  float64 // 0 disables the geometry check
	ViewportHeight float64
	MaxDepth       int // 0 means unlimited nesting
}

// Page is a loaded frame tree.
type Page struct {
	mu     sync.RWMutex
	frames map[hint.ContextID]*Frame
	order  []hint.ContextID
}

// Load parses src as the top document and recursively loads its frames.
func Load(src string, opts Options) (*Page, error) {
	p := &Page{frames: make(map[hint.ContextID]*Frame)}

	base, err := parseBase(opts.URL)
	if err != nil {
		return nil, err
	}
	if _, err := p.load(TopID, "", base, src, 0, opts); err != nil {
		return nil, err
	}
	return p, nil
}

func parseBase(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %w", domain.ErrInvalidDocument, err)
	}
	return u, nil
}

func (p *Page) load(id, parent hint.ContextID, base *url.URL, src string, depth int, opts Options) (*Frame, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidDocument, id, err)
	}

	f := &Frame{
		id:       id,
		parent:   parent,
		base:     base,
		root:     root,
		viewport: viewport{width: opts.ViewportWidth, height: opts.ViewportHeight},
		children: make(map[*html.Node]hint.ContextID),
	}
	p.frames[id] = f
	p.order = append(p.order, id)

	if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
		return f, nil
	}

	n := 0
	for _, el := range iframes(root) {
		childSrc, childBase, ok := f.nestedSource(el, opts.Fetcher)
		if !ok {
			continue
		}
		childID := hint.ContextID(fmt.Sprintf("%s/%d", id, n))
		n++
		if _, err := p.load(childID, id, childBase, childSrc, depth+1, opts); err != nil {
			return nil, err
		}
		f.children[el] = childID
	}
	return f, nil
}

// nestedSource returns the markup an iframe hosts: srcdoc wins over src.
func (f *Frame) nestedSource(el *html.Node, fetcher Fetcher) (string, *url.URL, bool) {
	if doc, ok := attr(el, "srcdoc"); ok {
		return doc, f.base, true
	}
	src, ok := attr(el, "src")
	if !ok || src == "" || fetcher == nil {
		return "", nil, false
	}
	abs := f.resolve(src)
	if abs == "" {
		return "", nil, false
	}
	doc, err := fetcher.Fetch(abs)
	if err != nil {
		return "", nil, false
	}
	u, _ := url.Parse(abs)
	return doc, u, true
}

// Top returns the top-level frame.
func (p *Page) Top() *Frame {
	f, _ := p.Frame(TopID)
	return f
}

// Frame returns the frame with the given context id.
func (p *Page) Frame(id hint.ContextID) (*Frame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.frames[id]
	return f, ok
}

// Frames returns the attached frames in load order: every parent precedes
// its children.
func (p *Page) Frames() []*Frame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Frame, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.frames[id])
	}
	return out
}

// Remove detaches a frame and all frames nested in it, returning the removed
// ids deepest first. The top frame cannot be removed.
func (p *Page) Remove(id hint.ContextID) ([]hint.ContextID, error) {
	if id == TopID {
		return nil, fmt.Errorf("remove %s: top frame cannot be removed", id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.frames[id]; !ok {
		return nil, fmt.Errorf("remove %s: %w", id, domain.ErrFrameNotFound)
	}

	var removed []hint.ContextID
	kept := p.order[:0]
	prefix := string(id) + "/"
	for _, fid := range p.order {
		if fid == id || strings.HasPrefix(string(fid), prefix) {
			removed = append(removed, fid)
			delete(p.frames, fid)
			continue
		}
		kept = append(kept, fid)
	}
	p.order = kept

	for i, j := 0, len(removed)-1; i < j; i, j = i+1, j-1 {
		removed[i], removed[j] = removed[j], removed[i]
	}
	return removed, nil
}

func iframes(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "iframe" {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
