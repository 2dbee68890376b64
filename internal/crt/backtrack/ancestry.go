package backtrack

import "sort"

// DroppedTrackMap lists, per surviving ancestor track, the track ids that
// simulation merged into it.
type DroppedTrackMap map[int][]int

// AncestorMap resolves a track id to the ancestor it was merged into.
type AncestorMap struct {
	mother map[int]int
}

// NewAncestorMap merges the supplied maps. Maps are applied in order and,
// within a map, ancestors in ascending id order; a descendant listed more
// than once keeps the last ancestor written.
func NewAncestorMap(maps ...DroppedTrackMap) *AncestorMap {
	a := &AncestorMap{mother: make(map[int]int)}

	for _, m := range maps {
		ancestors := make([]int, 0, len(m))
		for id := range m {
			ancestors = append(ancestors, id)
		}
		sort.Ints(ancestors)

		for _, ancestor := range ancestors {
			for _, id := range m[ancestor] {
				a.mother[id] = ancestor
			}
		}
	}

	return a
}

// RollUp returns the recorded ancestor of id, or id itself when it was
// never merged. Only one level is resolved: an ancestor that was itself
// merged is returned as is.
func (a *AncestorMap) RollUp(id int) int {
	if mother, ok := a.mother[id]; ok {
		return mother
	}
	return id
}

// Len returns the number of merged track ids.
func (a *AncestorMap) Len() int {
	return len(a.mother)
}
