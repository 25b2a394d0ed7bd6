package auditctx

import (
	"context"
	"strings"
)

// Actor identifies who triggered a credential operation: the operator and,
// for gate scans, the station the scan came from.
type Actor struct {
	Operator string
	Station  string
}

// String renders the actor as stored in audit logs, e.g. "silva@gate-2".
func (a Actor) String() string {
	operator := strings.TrimSpace(a.Operator)
	station := strings.TrimSpace(a.Station)
	switch {
	case operator == "":
		return station
	case station == "":
		return operator
	default:
		return operator + "@" + station
	}
}

type actorContextKey struct{}

// WithActor returns a derived context carrying actor. Empty actors leave ctx
// untouched.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if actor.String() == "" {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext extracts previously stored actor metadata from the context.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
