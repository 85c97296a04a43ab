package agent

import (
	"context"

	"github.com/kailas-cloud/hintd/internal/bus"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
)

// Frame is the document context an agent runs in. It bundles the element
// discoverer, the visibility tester and the activation dispatcher.
type Frame interface {
	Discover(query string) ([]hint.Candidate, error)
	Visible(el hint.Element) bool
	Activate(ctx context.Context, el hint.Element) error
}

// Transport sends envelopes to other contexts.
type Transport interface {
	Send(ctx context.Context, env bus.Envelope) error
}

// Sink receives reports for the end user.
type Sink interface {
	Created(ctx context.Context, ctxID hint.ContextID, total int)
	Selected(ctx context.Context, r hint.Report)
	Followed(ctx context.Context, r hint.Report)
}
