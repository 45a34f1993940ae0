package output

import "context"

// ActorProvider supplies the identity recorded on transitions and overrides.
// It never authenticates; it only reports who is acting.
type ActorProvider interface {
	Actor(ctx context.Context) (string, error)
}
