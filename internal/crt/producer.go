package crt

import (
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/crtreco/internal/crt/geometry"
)

// ClusteringParams holds configuration for strip-hit clustering.
type ClusteringParams struct {
	// CoincidenceWindow is the maximum Ts1 separation (ns) between a
	// cluster's anchor hit and any other member.
	CoincidenceWindow uint32

	// ParallelTaggers clusters each tagger group on its own goroutine.
	ParallelTaggers bool
}

// DefaultClusteringParams returns production-default clustering parameters.
func DefaultClusteringParams() ClusteringParams {
	return ClusteringParams{
		CoincidenceWindow: 50,
		ParallelTaggers:   true,
	}
}

// ClusterProducer turns an event's strip hits into clusters.
type ClusterProducer struct {
	geo    geometry.Lookup
	params ClusteringParams
}

// NewClusterProducer creates a producer using geo for channel lookups.
func NewClusterProducer(geo geometry.Lookup, params ClusteringParams) *ClusterProducer {
	return &ClusterProducer{geo: geo, params: params}
}

// Produce groups hits by tagger, clusters each group and characterises the
// result. Output is ordered by tagger, then by discovery order within the
// tagger, independent of ParallelTaggers. hits is not modified.
func (p *ClusterProducer) Produce(hits []StripHit) ([]ClusteredHits, error) {
	groups, err := GroupStripHits(hits, p.geo)
	if err != nil {
		return nil, err
	}

	taggers := SortedTaggers(groups)
	results := make([][]ClusteredHits, len(taggers))

	var g errgroup.Group
	if !p.params.ParallelTaggers {
		g.SetLimit(1)
	}
	for i, tagger := range taggers {
		group := groups[tagger]
		g.Go(func() error {
			out, err := p.clusterGroup(group)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []ClusteredHits
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (p *ClusterProducer) clusterGroup(group []StripHit) ([]ClusteredHits, error) {
	SortByTs1(group)

	members := CreateClusters(group, p.params.CoincidenceWindow)
	out := make([]ClusteredHits, 0, len(members))
	for _, hits := range members {
		cluster, err := CharacteriseCluster(hits, p.geo)
		if err != nil {
			return nil, err
		}
		out = append(out, ClusteredHits{Cluster: cluster, Hits: hits})
	}
	return out, nil
}

// GetParams returns the current clustering parameters.
func (p *ClusterProducer) GetParams() ClusteringParams {
	return p.params
}

// SetParams updates the clustering parameters.
func (p *ClusterProducer) SetParams(params ClusteringParams) {
	p.params = params
}
