package agent

import (
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/domain/label"
)

// Start begins hint mode at the top context.
type Start struct {
	Query    string
	Strategy label.Strategy
}

// DiscoverStart asks a child context to enumerate its candidates.
type DiscoverStart struct {
	Query      string
	Strategy   label.Strategy
	StartIndex int
}

// DiscoverEnd returns the running index to the parent.
type DiscoverEnd struct {
	NextIndex int
}

// Clear tears hint state down. Up marks a request travelling to the top.
type Clear struct {
	Up bool
}

// ClearActive drops the active pointer of a context that held delegated activation.
type ClearActive struct{}

// ActivateNext is a cyclic scan request. Without HasIndex the scan starts
// from the receiver's active slot, or its boundary when nothing is active.
type ActivateNext struct {
	Index     int
	HasIndex  bool
	Direction hint.Direction
	Path      hint.Path
	Wrapped   bool
}

// SetActive bubbles a newly active slot upward. Path starts with the
// receiver's slot position.
type SetActive struct {
	Path  hint.Path
	Clear bool
}

// Filter cascades a filter through the tree.
type Filter struct {
	Text  string
	Index int
	Rank  int
	Path  hint.Path
}

// FollowActive dispatches activation to the active slot.
type FollowActive struct{}

// SelectByLabel jumps to the hint with a sequential label. Miss travels
// child to parent when the child cannot hold the label; Index is then the
// parent's slot of that child.
type SelectByLabel struct {
	Label int
	Path  hint.Path
	Miss  bool
	Index int
}

// ConfigureLabels distributes prefix codes in global order.
type ConfigureLabels struct {
	Index  int
	Labels []string
	Path   hint.Path
}

func (Start) Kind() string           { return "start" }
func (DiscoverStart) Kind() string   { return "discover-start" }
func (DiscoverEnd) Kind() string     { return "discover-end" }
func (Clear) Kind() string           { return "clear" }
func (ClearActive) Kind() string     { return "clear-active" }
func (ActivateNext) Kind() string    { return "activate-next" }
func (SetActive) Kind() string       { return "set-active" }
func (Filter) Kind() string          { return "filter" }
func (FollowActive) Kind() string    { return "follow-active" }
func (SelectByLabel) Kind() string   { return "select-by-label" }
func (ConfigureLabels) Kind() string { return "configure-labels" }
