package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	member := actorWith("m1", RoleMember)
	cases := []struct {
		name        string
		actor       *Actor
		required    Capability
		hasFallback bool
		want        Outcome
	}{
		{"anonymous", nil, CapCreateContent, false, OutcomeAuthPrompt},
		{"anonymous with fallback", nil, CapCreateContent, true, OutcomeAuthPrompt},
		{"anonymous asking admin", nil, CapManageUsers, true, OutcomeAuthPrompt},
		{"member allowed", member, CapCreateContent, false, OutcomeAllowed},
		{"member denied", member, CapManageUsers, false, OutcomeDenied},
		{"member fallback", member, CapManageUsers, true, OutcomeCustomFallback},
		{"allowed ignores fallback", member, CapCreateContent, true, OutcomeAllowed},
		{"guest role denied", actorWith("g", RoleGuest), CapCreateContent, false, OutcomeDenied},
		{"guest role fallback", actorWith("g", RoleGuest), CapCreateContent, true, OutcomeCustomFallback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.actor, tc.required, tc.hasFallback))
		})
	}
}

func TestZeroOutcomeFailsClosed(t *testing.T) {
	var o Outcome
	assert.Equal(t, OutcomeAuthPrompt, o)
	text, err := o.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "auth_prompt", string(text))

	_, err = Outcome(9).MarshalText()
	assert.Error(t, err)
}

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ActorFromContext(ctx))

	actor := actorWith("m1", RoleMember)
	ctx = ContextWithActor(ctx, actor)
	assert.Same(t, actor, ActorFromContext(ctx))

	assert.Nil(t, ActorFromContext(ContextWithActor(ctx, nil)))
}
