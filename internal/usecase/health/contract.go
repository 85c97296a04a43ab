package health

import "context"

// ReportPinger checks report channel availability.
type ReportPinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports how many hint sessions are open.
type SessionCounter interface {
	Count() int
}
