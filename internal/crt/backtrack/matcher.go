package backtrack

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/crtreco/internal/crt"
	"github.com/banshee-data/crtreco/internal/crt/geometry"
)

// NoMatchTrackID is reported when an object has no usable truth.
const NoMatchTrackID = -99999

// completenessTolerance absorbs floating point noise when an object
// captured all of a track's energy.
const completenessTolerance = 1e-9

// ErrFEBDataAssociation is returned when a strip hit is not associated with
// exactly one FEB record. It indicates corrupt upstream data.
var ErrFEBDataAssociation = errors.New("backtrack: strip hit must have exactly one FEB data record")

// TruthMatchResult is the outcome of matching one object.
type TruthMatchResult struct {
	TrackID      int     `json:"track_id"`
	Completeness float64 `json:"completeness"`
	Purity       float64 `json:"purity"`
}

// NoMatch is the result for objects without retained deposits.
var NoMatch = TruthMatchResult{TrackID: NoMatchTrackID}

// Matched reports whether r names a track.
func (r TruthMatchResult) Matched() bool {
	return r.TrackID != NoMatchTrackID
}

// Consistent reports whether completeness is physically possible. A value
// above one means the object captured more energy than the deposit index
// holds for the track, which points at inconsistent inputs.
func (r TruthMatchResult) Consistent() bool {
	return r.Completeness <= 1+completenessTolerance
}

// DepositLink is an energy deposit reachable from an FEB record, annotated
// with the FEB-local channel that recorded it.
type DepositLink struct {
	Deposit      EnergyDeposit
	LocalChannel uint32
}

// Associations answers the record lookups truth matching needs.
type Associations interface {
	// FEBDataForHit returns the keys of the FEB records a strip hit was
	// built from.
	FEBDataForHit(hitKey uint64) []uint64

	// DepositsForFEBData returns the deposits associated with an FEB record.
	DepositsForFEBData(febKey uint64) []DepositLink
}

// Matchable is a reconstructed object that can be truth matched.
type Matchable interface {
	// TruthTagger is the tagger whose deposit totals give completeness.
	TruthTagger(geo geometry.Lookup) (geometry.Tagger, error)

	// MemberHits are the strip hits whose deposits are accumulated.
	MemberHits() []crt.StripHit
}

// HitObject matches a single strip hit.
type HitObject struct {
	Hit crt.StripHit
}

// ForHit wraps a strip hit for matching.
func ForHit(hit crt.StripHit) HitObject {
	return HitObject{Hit: hit}
}

// TruthTagger implements Matchable.
func (h HitObject) TruthTagger(geo geometry.Lookup) (geometry.Tagger, error) {
	return geo.ChannelToTagger(h.Hit.Channel)
}

// MemberHits implements Matchable.
func (h HitObject) MemberHits() []crt.StripHit {
	return []crt.StripHit{h.Hit}
}

// ClusterObject matches a cluster through the union of its hits.
type ClusterObject struct {
	Cluster crt.Cluster
	Hits    []crt.StripHit
}

// ForCluster wraps a produced cluster for matching.
func ForCluster(c crt.ClusteredHits) ClusterObject {
	return ClusterObject{Cluster: c.Cluster, Hits: c.Hits}
}

// TruthTagger implements Matchable.
func (c ClusterObject) TruthTagger(geometry.Lookup) (geometry.Tagger, error) {
	return c.Cluster.Tagger, nil
}

// MemberHits implements Matchable.
func (c ClusterObject) MemberHits() []crt.StripHit {
	return c.Hits
}

// TruthInputs are the per-event truth collections.
type TruthInputs struct {
	Deposits         []EnergyDeposit
	DroppedTrackMaps []DroppedTrackMap
}

// TruthContext holds the per-event ancestry and deposit index. Build a new
// one for every event; it is safe for concurrent Match calls once built.
type TruthContext struct {
	geo       geometry.Lookup
	assns     Associations
	ancestors *AncestorMap
	index     *DepositIndex
}

// NewTruthContext builds the ancestor map and then the deposit index.
func NewTruthContext(in TruthInputs, geo geometry.Lookup, assns Associations) *TruthContext {
	ancestors := NewAncestorMap(in.DroppedTrackMaps...)
	return &TruthContext{
		geo:       geo,
		assns:     assns,
		ancestors: ancestors,
		index:     BuildDepositIndex(in.Deposits, ancestors, geo),
	}
}

// RollUp resolves a track id through the event's ancestor map.
func (tc *TruthContext) RollUp(id int) int {
	return tc.ancestors.RollUp(id)
}

// Index returns the event's deposit index.
func (tc *TruthContext) Index() *DepositIndex {
	return tc.index
}

// Match finds the ancestor track contributing most energy to obj.
//
// Only deposits recorded on each hit's own FEB channel are used. Candidates
// are compared in ascending track id order and a later candidate must be
// strictly purer to win. Completeness is relative to the ancestor's total
// energy in the object's tagger.
func (tc *TruthContext) Match(obj Matchable) (TruthMatchResult, error) {
	tagger, err := obj.TruthTagger(tc.geo)
	if err != nil {
		return NoMatch, fmt.Errorf("truth match: %w", err)
	}

	energies := make(map[int]float64)
	totalEnergy := 0.

	for _, hit := range obj.MemberHits() {
		febs := tc.assns.FEBDataForHit(hit.Key)
		if len(febs) != 1 {
			return NoMatch, fmt.Errorf("%w: hit %d has %d", ErrFEBDataAssociation, hit.Key, len(febs))
		}

		localChannel := hit.Channel % geometry.ChannelsPerModule
		for _, link := range tc.assns.DepositsForFEBData(febs[0]) {
			if link.LocalChannel != localChannel {
				continue
			}
			energies[tc.RollUp(link.Deposit.TrackID)] += link.Deposit.Energy
			totalEnergy += link.Deposit.Energy
		}
	}

	if totalEnergy == 0 {
		return NoMatch, nil
	}

	ids := make([]int, 0, len(energies))
	for id := range energies {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	best := NoMatch
	bestEnergy := 0.
	for _, id := range ids {
		purity := energies[id] / totalEnergy
		if purity > best.Purity {
			best.TrackID = id
			best.Purity = purity
			bestEnergy = energies[id]
		}
	}
	if !best.Matched() {
		return NoMatch, nil
	}

	trackEnergy := tc.index.Energy(best.TrackID, tagger)
	if trackEnergy == 0 {
		return NoMatch, nil
	}
	best.Completeness = bestEnergy / trackEnergy

	return best, nil
}
