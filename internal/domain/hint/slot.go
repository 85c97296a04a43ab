// Package hint holds the per-context hint model: slots, paths and reports.
package hint

// ContextID names one document context in the embedding tree.
type ContextID string

// Element is the discovered element a leaf hint is bound to.
type Element interface {
	Kind() string
	Text() string
	URL() string
}

// Candidate is one discovery result, in document order. Child is set when
// the element hosts a nested context.
type Candidate struct {
	Element Element
	Child   ContextID
}

// Nested reports whether the candidate is a nested-context container.
func (c Candidate) Nested() bool { return c.Child != "" }

// Slot is a position in a context's ordered hint list. The variant set is
// closed: *Leaf or *Handle.
type Slot interface {
	slot()
}

// Leaf wraps one discovered element.
type Leaf struct {
	Element Element
	Index   int
	Label   string
	Visible bool
}

func (*Leaf) slot() {}

// Handle refers to a nested context. Detached handles point at a context
// that could not be reached and are skipped by every walk.
type Handle struct {
	Child    ContextID
	Detached bool
}

func (*Handle) slot() {}

// Direction of an activation scan.
type Direction int

// Scan directions.
const (
	Forward  Direction = 1
	Backward Direction = -1
)

// Path locates a slot relative to the context holding it: the first element
// is the slot position in that context, each following one is the position
// of the enclosing handle one level up.
type Path []int

// Push returns a new path with pos in front.
func (p Path) Push(pos int) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, pos)
	return append(out, p...)
}

// Head returns the position in the nearest context.
func (p Path) Head() int { return p[0] }

// Tail returns the path as seen from the parent context.
func (p Path) Tail() Path {
	if len(p) <= 1 {
		return nil
	}
	return append(Path(nil), p[1:]...)
}

// Report is the serialized description handed to the report sink.
type Report struct {
	Context     ContextID `json:"context"`
	Index       int       `json:"index"`
	ElementKind string    `json:"element_kind"`
	Text        string    `json:"text"`
	URL         string    `json:"url"`
	Label       string    `json:"label"`
}

// NewReport describes leaf as held by context ctx.
func NewReport(ctx ContextID, leaf *Leaf) Report {
	return Report{
		Context:     ctx,
		Index:       leaf.Index,
		ElementKind: leaf.Element.Kind(),
		Text:        leaf.Element.Text(),
		URL:         leaf.Element.URL(),
		Label:       leaf.Label,
	}
}
