package domain

import "strings"

// Role is the closed set of roles a session can carry. The panel recognizes
// a single administrative role; anything else is rejected at the boundary.
type Role string

const (
	RoleAdmin Role = "admin"
)

// ParseRole validates a raw role string against the closed enumeration.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// NormalizeIdentity canonicalizes an email-style identity for lookups.
func NormalizeIdentity(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// AllowList is a closed set of identities permitted to authenticate or to
// access the protected area.
type AllowList struct {
	entries map[string]struct{}
}

// NewAllowList builds an AllowList from raw identity strings, normalizing
// entries and dropping empties.
func NewAllowList(identities []string) AllowList {
	entries := make(map[string]struct{}, len(identities))
	for _, raw := range identities {
		normalized := NormalizeIdentity(raw)
		if normalized == "" {
			continue
		}
		entries[normalized] = struct{}{}
	}
	return AllowList{entries: entries}
}

// Contains reports whether the normalized identity appears in the list.
func (l AllowList) Contains(identity string) bool {
	_, ok := l.entries[NormalizeIdentity(identity)]
	return ok
}

// Empty reports whether the list has no entries.
func (l AllowList) Empty() bool {
	return len(l.entries) == 0
}

// Len returns the number of configured identities.
func (l AllowList) Len() int {
	return len(l.entries)
}
