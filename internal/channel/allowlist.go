package channel

import "strings"

// AllowList restricts which authors may trigger a delivery. An empty list
// admits everyone.
type AllowList map[string]struct{}

// NewAllowList builds an allow-list from user ids, ignoring blanks.
func NewAllowList(ids []string) AllowList {
	a := AllowList{}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			a[id] = struct{}{}
		}
	}
	return a
}

// Enabled reports whether any restriction applies.
func (a AllowList) Enabled() bool {
	return len(a) > 0
}

// Permits reports whether userID may trigger delivery.
func (a AllowList) Permits(userID string) bool {
	if !a.Enabled() {
		return true
	}
	_, ok := a[userID]
	return ok
}
