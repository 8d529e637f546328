package catalog

import (
	"maps"
	"slices"
)

// Merge combines the server list with the local list using the local change
// markers. The server copy is the baseline; a slot marked edited overwrites
// the server value at the same index when that index exists, and a slot
// marked new is appended unless the value is already present. Unmarked local
// slots defer to the server.
//
// Markers are applied by index, so they are only meaningful against the local
// snapshot they were recorded on.
func Merge(server, local []string, altered Markers) []string {
	merged := slices.Clone(server)
	if merged == nil {
		merged = []string{}
	}

	for i, value := range local {
		switch altered[i] {
		case MarkerEdited:
			if i < len(merged) {
				merged[i] = value
			}
		case MarkerNew:
			if !slices.Contains(merged, value) {
				merged = append(merged, value)
			}
		}
	}
	return merged
}

// MergeTasks applies Merge independently per SDLC step. Steps the server does
// not know start from an empty baseline; steps only the server knows are kept.
func MergeTasks(server, local map[string][]string, altered map[string]Markers) map[string][]string {
	merged := make(map[string][]string, len(server))
	for step, tasks := range server {
		merged[step] = slices.Clone(tasks)
	}

	for _, step := range slices.Sorted(maps.Keys(local)) {
		merged[step] = Merge(merged[step], local[step], altered[step])
	}
	return merged
}
