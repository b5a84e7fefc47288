package services

import (
	"sort"

	"rehearsalplanner/internal/domain"
)

// AggregateRoles unions the primary and extra roles of all given members,
// deduped and sorted. Empty input yields an empty set. The result is stored
// denormalized on the rehearsal and always recomputed from the full invitee
// set, never patched incrementally.
func AggregateRoles(members []*domain.Member) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(members))
	add := func(role string) {
		if role == "" {
			return
		}
		if _, ok := seen[role]; ok {
			return
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	for _, m := range members {
		add(m.PrimaryRole)
		for _, r := range m.ExtraRoles {
			add(r)
		}
	}
	sort.Strings(out)
	return out
}
