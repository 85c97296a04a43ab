package hintd

import (
	"context"
	"time"

	"github.com/kailas-cloud/hintd/internal/document"
	"github.com/kailas-cloud/hintd/internal/domain/label"
	"github.com/kailas-cloud/hintd/internal/report"
	sessionuc "github.com/kailas-cloud/hintd/internal/usecase/session"
)

// Strategy selects how hints are labelled.
type Strategy string

// Labelling strategies.
const (
	// Sequential labels visible hints 1..n and filters on their text.
	Sequential Strategy = Strategy(label.Sequential)
	// Prefix labels hints with prefix-free codes; filtering narrows by code.
	Prefix Strategy = Strategy(label.Prefix)
)

// Defaults used when the client is not configured otherwise.
const (
	DefaultQuery    = document.DefaultQuery
	DefaultAlphabet = label.DefaultAlphabet
)

// Fetcher loads the markup of a nested document by absolute URL.
type Fetcher interface {
	Fetch(rawURL string) (string, error)
}

// Files returns a Fetcher that reads file:// URLs from disk.
func Files() Fetcher { return document.FileFetcher{} }

// Page is the document a session runs on.
type Page struct {
	HTML      string
	URL       string            // base URL of the top document
	Resources map[string]string // nested documents by absolute URL
	Fetcher   Fetcher           // overrides Resources when set
}

// StartOptions parameterizes hint mode. Empty fields use the client defaults.
type StartOptions struct {
	Query    string
	Strategy Strategy
}

// Hint is one visible hint.
type Hint struct {
	Frame  string
	Index  int
	Label  string
	Active bool
	Kind   string
	Text   string
	URL    string
}

// Event is one synthetic input event delivered to a page element.
type Event struct {
	Type   string
	Frame  string
	Target string
	URL    string
}

// State is the settled state of a session after an operation.
type State struct {
	Session  string
	Started  bool
	Strategy Strategy
	Filter   string
	Total    int
	Hints    []Hint // visible hints in global order
	Active   *Hint
	Events   []Event
	Err      error // first failure reported by any context
}

// ReportType is the kind of a Report.
type ReportType string

// Report kinds.
const (
	ReportCreated  = ReportType(report.TypeCreated)
	ReportSelected = ReportType(report.TypeSelected)
	ReportFollowed = ReportType(report.TypeFollowed)
)

// Report is emitted when hints are created, selected or followed.
type Report struct {
	Type    ReportType
	Session string
	Frame   string
	Total   int   // hints created; ReportCreated only
	Hint    *Hint // ReportSelected and ReportFollowed only
	Time    time.Time
}

// Publisher receives reports. Failures are logged and never stop a session.
type Publisher interface {
	Publish(ctx context.Context, r Report) error
}

// publisherAdapter wraps a public Publisher to satisfy the session service.
type publisherAdapter struct {
	inner Publisher
}

func (a publisherAdapter) Publish(ctx context.Context, ev report.Event) error {
	r := Report{
		Type:    ReportType(ev.Type),
		Session: ev.Session,
		Frame:   string(ev.Context),
		Total:   ev.Total,
		Time:    ev.Time,
	}
	if ev.Hint != nil {
		r.Hint = &Hint{
			Frame: string(ev.Hint.Context),
			Index: ev.Hint.Index,
			Label: ev.Hint.Label,
			Kind:  ev.Hint.ElementKind,
			Text:  ev.Hint.Text,
			URL:   ev.Hint.URL,
		}
	}
	return a.inner.Publish(ctx, r)
}

func stateFromSnapshot(snap sessionuc.Snapshot) State {
	st := State{
		Session:  snap.ID,
		Started:  snap.Started,
		Strategy: Strategy(snap.Strategy),
		Filter:   snap.Filter,
		Total:    snap.Total,
		Hints:    []Hint{},
		Err:      snap.Err,
	}
	for _, h := range snap.Visible() {
		st.Hints = append(st.Hints, Hint{
			Frame:  string(h.Frame),
			Index:  h.Index,
			Label:  h.Label,
			Active: h.Active,
			Kind:   h.Kind,
			Text:   h.Text,
			URL:    h.URL,
		})
		if h.Active {
			active := st.Hints[len(st.Hints)-1]
			st.Active = &active
		}
	}
	for _, ev := range snap.Events {
		st.Events = append(st.Events, Event(ev))
	}
	return st
}
