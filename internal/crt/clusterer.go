package crt

import "sort"

// SortByTs1 sorts hits in place by ascending Ts1. Hits with equal Ts1 keep
// their relative order.
func SortByTs1(hits []StripHit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Ts1 < hits[j].Ts1 })
}

// CreateClusters greedily partitions hits from a single tagger into
// time-coincident groups. hits must already be sorted by Ts1.
//
// Each unused hit becomes the anchor of a new cluster and every later
// unused hit with Ts1 - anchor.Ts1 < window joins it. Membership is always
// tested against the anchor, never against the latest member, so a chain
// of hits each within the window of its neighbour can still be split.
func CreateClusters(hits []StripHit, window uint32) [][]StripHit {
	var clusters [][]StripHit
	used := make([]bool, len(hits))

	for i := range hits {
		if used[i] {
			continue
		}
		anchor := hits[i]
		members := []StripHit{anchor}
		used[i] = true

		for j := i + 1; j < len(hits); j++ {
			if used[j] {
				continue
			}
			if hits[j].Ts1-anchor.Ts1 < window {
				members = append(members, hits[j])
				used[j] = true
			}
		}

		clusters = append(clusters, members)
	}

	return clusters
}
