// Package bus delivers protocol messages between document contexts.
//
// Every context owns a mailbox drained by a single goroutine, so a handler
// always runs to completion before the next message for the same context is
// handled. Messages from one sender to one receiver arrive in send order.
// Delivery is best effort: a message to a removed context fails with
// domain.ErrMissingDelivery and is never retried.
package bus

import (
	"context"

	"github.com/kailas-cloud/hintd/internal/domain/hint"
)

// External is the sender id of commands injected from outside the tree.
const External hint.ContextID = ""

// Message is a protocol message payload.
type Message interface {
	Kind() string
}

// Envelope carries a message between two contexts.
type Envelope struct {
	From  hint.ContextID
	To    hint.ContextID
	Epoch uint64
	Msg   Message
}

// Handler consumes the messages addressed to one context.
type Handler interface {
	Handle(ctx context.Context, env Envelope)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, env Envelope) { f(ctx, env) }

// Interceptor sees every envelope before it is queued. Returning false drops
// the envelope silently, as a lossy transport would.
type Interceptor func(env Envelope) bool
