// Package lock serializes balance mutations per account id.
package lock

import (
	"slices"
)

// normalize drops empty and duplicate keys and sorts the rest, giving every
// caller the same acquisition order.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
