// ABOUTME: Role and capability types plus the immutable role-to-capability policy
// ABOUTME: Unknown roles resolve to the guest row; unknown capabilities are denied

package auth

import (
	"fmt"
	"sort"
)

// Role is the single role a user holds.
type Role string

// Roles known to the platform.
const (
	RoleStoryteller Role = "storyteller"
	RoleAudience    Role = "audience"
	RoleGuest       Role = "guest"
)

// ParseRole converts a string into a known Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleStoryteller, RoleAudience, RoleGuest:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Label returns a human-friendly name for the role.
func (r Role) Label() string {
	switch r {
	case RoleStoryteller:
		return "Storyteller"
	case RoleAudience:
		return "Audience Member"
	default:
		return "Guest"
	}
}

// Capability names one permission checked by the policy.
type Capability string

// Capabilities checked across the platform.
const (
	CapCreateStories   Capability = "can_create_stories"
	CapUploadContent   Capability = "can_upload_content"
	CapHostCalls       Capability = "can_host_calls"
	CapUseAvatars      Capability = "can_use_avatars"
	CapComment         Capability = "can_comment"
	CapLike            Capability = "can_like"
	CapFollow          Capability = "can_follow"
	CapCreateRooms     Capability = "can_create_rooms"
	CapAccessAnalytics Capability = "can_access_analytics"
)

// AllCapabilities returns every capability in a stable order.
func AllCapabilities() []Capability {
	return []Capability{
		CapCreateStories,
		CapUploadContent,
		CapHostCalls,
		CapUseAvatars,
		CapComment,
		CapLike,
		CapFollow,
		CapCreateRooms,
		CapAccessAnalytics,
	}
}

// Policy is an immutable role to capability table.
// It has no mutation methods; build a new Policy to change grants.
type Policy struct {
	grants map[Role]map[Capability]bool
}

// NewPolicy builds a policy from role grants. The input is copied.
func NewPolicy(grants map[Role][]Capability) *Policy {
	p := &Policy{grants: make(map[Role]map[Capability]bool, len(grants))}
	for role, caps := range grants {
		set := make(map[Capability]bool, len(caps))
		for _, c := range caps {
			set[c] = true
		}
		p.grants[role] = set
	}
	return p
}

// DefaultPolicy returns the platform's role table: storytellers may do
// everything, audience members may interact, guests may only browse.
func DefaultPolicy() *Policy {
	return NewPolicy(map[Role][]Capability{
		RoleStoryteller: AllCapabilities(),
		RoleAudience:    {CapUseAvatars, CapComment, CapLike, CapFollow},
		RoleGuest:       {},
	})
}

// Allows reports whether role holds the capability.
func (p *Policy) Allows(role Role, c Capability) bool {
	set, ok := p.grants[role]
	if !ok {
		set = p.grants[RoleGuest]
	}
	return set[c]
}

// Grants lists the capabilities held by role, sorted by name.
func (p *Policy) Grants(role Role) []Capability {
	var out []Capability
	for _, c := range AllCapabilities() {
		if p.Allows(role, c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
