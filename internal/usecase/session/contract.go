package session

import (
	"context"

	"github.com/kailas-cloud/hintd/internal/report"
)

// Publisher delivers report events outside the service.
type Publisher interface {
	Publish(ctx context.Context, ev report.Event) error
}
