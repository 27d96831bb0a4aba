package driven

import "context"

// Pinger is implemented by storage handles that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
