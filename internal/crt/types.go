package crt

import "github.com/banshee-data/crtreco/internal/crt/geometry"

// Tagger re-exports the geometry tagger enum.
type Tagger = geometry.Tagger

// StripHit is one reconstructed hit on a CRT strip. Ts0 is referenced to
// the detector clock, Ts1 to the trigger.
type StripHit struct {
	Key     uint64 `json:"key"`
	Channel uint32 `json:"channel"`
	Ts0     uint32 `json:"ts0"`
	Ts1     uint32 `json:"ts1"`
	UnixS   uint32 `json:"unixs"`
}

// Cluster aggregates coincident strip hits on one tagger.
type Cluster struct {
	Ts0    uint32 `json:"ts0"`
	Ts1    uint32 `json:"ts1"`
	UnixS  uint32 `json:"unixs"`
	NHits  int    `json:"nhits"`
	Tagger Tagger `json:"tagger"`
	ThreeD bool   `json:"three_d"`
}

// ClusteredHits pairs a cluster with the hits it was built from, in
// clustering order.
type ClusteredHits struct {
	Cluster Cluster
	Hits    []StripHit
}

// HitKeys returns the keys of the member hits.
func (c ClusteredHits) HitKeys() []uint64 {
	keys := make([]uint64, len(c.Hits))
	for i, h := range c.Hits {
		keys[i] = h.Key
	}
	return keys
}
