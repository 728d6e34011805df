// ABOUTME: Tests for the role to capability policy
// ABOUTME: Verifies the full grant table and fallback behavior for unknown inputs

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy_Table(t *testing.T) {
	policy := DefaultPolicy()

	audience := map[Capability]bool{
		CapUseAvatars: true,
		CapComment:    true,
		CapLike:       true,
		CapFollow:     true,
	}

	for _, c := range AllCapabilities() {
		t.Run(string(c), func(t *testing.T) {
			assert.True(t, policy.Allows(RoleStoryteller, c), "storyteller should hold %s", c)
			assert.Equal(t, audience[c], policy.Allows(RoleAudience, c), "audience %s", c)
			assert.False(t, policy.Allows(RoleGuest, c), "guest should not hold %s", c)
		})
	}
}

func TestPolicy_UnknownRoleFallsBackToGuest(t *testing.T) {
	policy := DefaultPolicy()

	for _, c := range AllCapabilities() {
		assert.Equal(t, policy.Allows(RoleGuest, c), policy.Allows(Role("wizard"), c))
		assert.Equal(t, policy.Allows(RoleGuest, c), policy.Allows(Role(""), c))
	}
}

func TestPolicy_UnknownCapabilityDenied(t *testing.T) {
	policy := DefaultPolicy()

	assert.False(t, policy.Allows(RoleStoryteller, Capability("can_fly")))
}

func TestPolicy_Grants(t *testing.T) {
	policy := DefaultPolicy()

	assert.Equal(t,
		[]Capability{CapComment, CapFollow, CapLike, CapUseAvatars},
		policy.Grants(RoleAudience))
	assert.Len(t, policy.Grants(RoleStoryteller), len(AllCapabilities()))
	assert.Empty(t, policy.Grants(RoleGuest))
}

func TestNewPolicy_CopiesInput(t *testing.T) {
	caps := []Capability{CapLike}
	grants := map[Role][]Capability{RoleAudience: caps}
	policy := NewPolicy(grants)

	caps[0] = CapCreateStories
	grants[RoleGuest] = []Capability{CapLike}

	assert.True(t, policy.Allows(RoleAudience, CapLike))
	assert.False(t, policy.Allows(RoleAudience, CapCreateStories))
	assert.False(t, policy.Allows(RoleGuest, CapLike))
}

func TestParseRole(t *testing.T) {
	for _, name := range []string{"storyteller", "audience", "guest"} {
		role, err := ParseRole(name)
		require.NoError(t, err)
		assert.Equal(t, Role(name), role)
	}

	_, err := ParseRole("admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestSession_Can(t *testing.T) {
	policy := DefaultPolicy()

	var nilSession *Session
	assert.False(t, nilSession.Can(policy, CapLike))

	// Unauthenticated sessions use guest grants whatever role they claim.
	spoofed := &Session{Role: RoleStoryteller}
	assert.False(t, spoofed.Can(policy, CapCreateStories))

	audience := &Session{Authenticated: true, Role: RoleAudience}
	assert.True(t, audience.Can(policy, CapLike))
	assert.False(t, audience.Can(policy, CapCreateRooms))
}
