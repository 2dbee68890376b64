// Package pipeline runs CRT reconstruction over whole events: clustering
// of the event's strip hits followed by truth matching of every cluster and
// hit against the event's simulated energy deposits.
package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/crtreco/internal/crt"
	"github.com/banshee-data/crtreco/internal/crt/backtrack"
	"github.com/banshee-data/crtreco/internal/crt/event"
	"github.com/banshee-data/crtreco/internal/crt/geometry"
	"github.com/banshee-data/crtreco/internal/monitoring"
)

// MatchKind names the kind of object a truth match was made for.
type MatchKind string

const (
	KindHit          MatchKind = "hit"
	KindCluster      MatchKind = "cluster"
	KindInputCluster MatchKind = "input_cluster"
)

// HitMatch is the truth match of one strip hit.
type HitMatch struct {
	Hit   crt.StripHit               `json:"hit"`
	Match backtrack.TruthMatchResult `json:"match"`
}

// InputClusterMatch is the truth match of a cluster read from the event.
type InputClusterMatch struct {
	Key     uint64                     `json:"key"`
	Cluster crt.Cluster                `json:"cluster"`
	HitKeys []uint64                   `json:"hit_keys"`
	Match   backtrack.TruthMatchResult `json:"match"`
}

// EventResult is everything reconstructed for one event. ClusterMatches is
// parallel to Clusters.
type EventResult struct {
	Run    uint32 `json:"run"`
	SubRun uint32 `json:"subrun"`
	Event  uint32 `json:"event"`

	Clusters            []crt.ClusteredHits          `json:"clusters"`
	ClusterMatches      []backtrack.TruthMatchResult `json:"cluster_matches"`
	HitMatches          []HitMatch                   `json:"hit_matches"`
	InputClusterMatches []InputClusterMatch          `json:"input_cluster_matches,omitempty"`

	Summary Summary `json:"summary"`
}

// ID returns the run/subrun/event identifier of the result.
func (r *EventResult) ID() string {
	return fmt.Sprintf("%d/%d/%d", r.Run, r.SubRun, r.Event)
}

// Options configure a Processor.
type Options struct {
	Labels             event.Labels
	Clustering         crt.ClusteringParams
	MatchInputClusters bool
}

// Processor reconstructs single events. It holds no per-event state and is
// safe for concurrent use.
type Processor struct {
	geo      geometry.Lookup
	opts     Options
	producer *crt.ClusterProducer
}

// NewProcessor creates a Processor using geo for all channel and position
// lookups.
func NewProcessor(geo geometry.Lookup, opts Options) *Processor {
	return &Processor{
		geo:      geo,
		opts:     opts,
		producer: crt.NewClusterProducer(geo, opts.Clustering),
	}
}

// Process clusters ev's strip hits and truth matches every cluster and hit.
// Any error aborts the whole event.
func (p *Processor) Process(ev *event.Event) (*EventResult, error) {
	start := time.Now()
	res, err := p.process(ev)
	monitoring.EventDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		monitoring.EventsProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("event %s: %w", ev.ID(), err)
	}
	monitoring.EventsProcessed.WithLabelValues("ok").Inc()
	return res, nil
}

func (p *Processor) process(ev *event.Event) (*EventResult, error) {
	idx, err := event.NewIndex(ev, p.opts.Labels)
	if err != nil {
		return nil, err
	}
	truth := backtrack.NewTruthContext(ev.TruthInputs(p.opts.Labels), p.geo, idx)

	hits := ev.Hits(p.opts.Labels)
	clusters, err := p.producer.Produce(hits)
	if err != nil {
		return nil, fmt.Errorf("cluster strip hits: %w", err)
	}

	res := &EventResult{
		Run:            ev.Run,
		SubRun:         ev.SubRun,
		Event:          ev.Event,
		Clusters:       clusters,
		ClusterMatches: make([]backtrack.TruthMatchResult, len(clusters)),
		HitMatches:     make([]HitMatch, len(hits)),
	}

	for i, c := range clusters {
		monitoring.ClustersProduced.WithLabelValues(c.Cluster.Tagger.String()).Inc()
		m, err := p.match(ev, truth, KindCluster, backtrack.ForCluster(c))
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
		res.ClusterMatches[i] = m
	}

	for i, h := range hits {
		m, err := p.match(ev, truth, KindHit, backtrack.ForHit(h))
		if err != nil {
			return nil, fmt.Errorf("hit %d: %w", h.Key, err)
		}
		res.HitMatches[i] = HitMatch{Hit: h, Match: m}
	}

	if p.opts.MatchInputClusters {
		for _, rec := range ev.InputClusters(p.opts.Labels) {
			members := idx.ClusterHits(rec.Key)
			m, err := p.match(ev, truth, KindInputCluster, backtrack.ClusterObject{Cluster: rec.Cluster, Hits: members})
			if err != nil {
				return nil, fmt.Errorf("input cluster %d: %w", rec.Key, err)
			}
			keys := make([]uint64, len(members))
			for j, h := range members {
				keys[j] = h.Key
			}
			res.InputClusterMatches = append(res.InputClusterMatches, InputClusterMatch{
				Key:     rec.Key,
				Cluster: rec.Cluster,
				HitKeys: keys,
				Match:   m,
			})
		}
	}

	res.Summary = Summarise(res)
	monitoring.Debugf("event %s: %d hits, %d clusters, %d matched", ev.ID(), len(hits), len(clusters), res.Summary.MatchedClusters)
	return res, nil
}

func (p *Processor) match(ev *event.Event, truth *backtrack.TruthContext, kind MatchKind, obj backtrack.Matchable) (backtrack.TruthMatchResult, error) {
	m, err := truth.Match(obj)
	if err != nil {
		return backtrack.NoMatch, err
	}
	monitoring.TruthMatches.WithLabelValues(string(kind), fmt.Sprint(m.Matched())).Inc()
	if !m.Consistent() {
		monitoring.InconsistentCompleteness.WithLabelValues(string(kind)).Inc()
		monitoring.Logf("warning: event %s: %s matched to track %d with completeness %.4f > 1; deposit inputs are inconsistent",
			ev.ID(), kind, m.TrackID, m.Completeness)
	}
	return m, nil
}

// GetOptions returns the processor's options.
func (p *Processor) GetOptions() Options {
	return p.opts
}
