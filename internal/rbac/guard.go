package rbac

import (
	"context"
	"fmt"
)

// Outcome is the result of a guard decision. The zero value is
// OutcomeAuthPrompt so an undecided guard fails closed.
type Outcome uint8

const (
	OutcomeAuthPrompt Outcome = iota
	OutcomeCustomFallback
	OutcomeDenied
	OutcomeAllowed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthPrompt:
		return "auth_prompt"
	case OutcomeCustomFallback:
		return "custom_fallback"
	case OutcomeDenied:
		return "denied"
	case OutcomeAllowed:
		return "allowed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	if o > OutcomeAllowed {
		return nil, fmt.Errorf("rbac: invalid outcome %d", o)
	}
	return []byte(o.String()), nil
}

// Decide resolves a protected region. A missing actor always yields the
// authentication prompt, whatever capability was requested; a missing
// capability yields the caller's fallback when one exists.
func Decide(actor *Actor, required Capability, hasFallback bool) Outcome {
	if actor == nil {
		return OutcomeAuthPrompt
	}
	if !HasCapability(actor, required) {
		if hasFallback {
			return OutcomeCustomFallback
		}
		return OutcomeDenied
	}
	return OutcomeAllowed
}

type actorContextKey struct{}

// ContextWithActor stores the resolved actor for downstream handlers. A nil
// actor is stored as-is so lookups stay unauthenticated.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor resolved for the request, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
