package crt

import (
	"fmt"

	"github.com/banshee-data/crtreco/internal/crt/geometry"
)

// CharacteriseCluster reduces a set of clustered hits to one Cluster.
//
// Timing fields are integer means (truncated). ThreeD is set when any hit
// sits on a strip whose orientation differs from the first hit's strip.
// Passing an empty slice is a programming error and panics.
func CharacteriseCluster(hits []StripHit, geo geometry.Lookup) (Cluster, error) {
	if len(hits) == 0 {
		panic("crt: CharacteriseCluster called with no hits")
	}

	strip0, err := geo.Strip(hits[0].Channel)
	if err != nil {
		return Cluster{}, fmt.Errorf("characterise cluster: %w", err)
	}
	tagger, err := geo.ChannelToTagger(hits[0].Channel)
	if err != nil {
		return Cluster{}, fmt.Errorf("characterise cluster: %w", err)
	}

	// Sums are kept in 64 bits so that averaging unix seconds over several
	// hits cannot wrap.
	var ts0, ts1, s uint64
	threeD := false

	for _, hit := range hits {
		ts0 += uint64(hit.Ts0)
		ts1 += uint64(hit.Ts1)
		s += uint64(hit.UnixS)

		strip, err := geo.Strip(hit.Channel)
		if err != nil {
			return Cluster{}, fmt.Errorf("characterise cluster: %w", err)
		}
		threeD = threeD || geo.DifferentOrientations(strip0, strip)
	}

	n := uint64(len(hits))
	return Cluster{
		Ts0:    uint32(ts0 / n),
		Ts1:    uint32(ts1 / n),
		UnixS:  uint32(s / n),
		NHits:  len(hits),
		Tagger: tagger,
		ThreeD: threeD,
	}, nil
}
