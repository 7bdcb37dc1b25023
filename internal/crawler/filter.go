package crawler

import (
	"strings"

	"github.com/alvmarrod/follow-weaver/internal/storage"
)

// FilterTargets selects which followed ids of source go to the next
// frontier. It keeps first-seen order and drops blank ids, self-follows,
// duplicates within the list and every id for which skip returns true
// (already resolved or quarantined). maxTargets <= 0 means no cap.
func FilterTargets(source storage.NodeID, targets []storage.NodeID, skip func(storage.NodeID) bool, maxTargets int) []storage.NodeID {
	seen := make(map[storage.NodeID]bool)
	filtered := make([]storage.NodeID, 0, len(targets))

	for _, target := range targets {
		// Skip empty ids
		if strings.TrimSpace(string(target)) == "" {
			continue
		}

		// Skip self-follows
		if target == source {
			continue
		}

		// Skip duplicates
		if seen[target] {
			continue
		}
		seen[target] = true

		if skip != nil && skip(target) {
			continue
		}

		filtered = append(filtered, target)

		// Stop at max targets
		if maxTargets > 0 && len(filtered) >= maxTargets {
			break
		}
	}

	return filtered
}
