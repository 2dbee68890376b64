package event

import (
	"fmt"

	"github.com/banshee-data/crtreco/internal/crt"
	"github.com/banshee-data/crtreco/internal/crt/backtrack"
)

// Index resolves the associations of one event. It implements
// backtrack.Associations.
type Index struct {
	hits        map[uint64]crt.StripHit
	hitFEB      map[uint64][]uint64
	febDeposits map[uint64][]backtrack.DepositLink
	clusterHits map[uint64][]crt.StripHit
}

// NewIndex builds lookups for ev using the collections selected by labels.
// Strip hit to FEB associations are read under the strip hit label, FEB to
// deposit associations under the FEB label and cluster to hit
// associations under the cluster label.
func NewIndex(ev *Event, labels Labels) (*Index, error) {
	idx := &Index{
		hits:        make(map[uint64]crt.StripHit),
		hitFEB:      make(map[uint64][]uint64),
		febDeposits: make(map[uint64][]backtrack.DepositLink),
		clusterHits: make(map[uint64][]crt.StripHit),
	}

	for _, h := range ev.Hits(labels) {
		idx.hits[h.Key] = h
	}

	for _, a := range ev.HitFEBAssns[labels.StripHit] {
		idx.hitFEB[a.HitKey] = append(idx.hitFEB[a.HitKey], a.FEBKey)
	}

	deposits := make(map[uint64]backtrack.EnergyDeposit)
	for _, d := range ev.Deposits[labels.SimDeposit] {
		deposits[d.Key] = d
	}
	for _, a := range ev.FEBDepositAssns[labels.FEBData] {
		d, ok := deposits[a.DepositKey]
		if !ok {
			return nil, fmt.Errorf("%w: event %s FEB %d -> deposit %d", ErrDanglingAssociation, ev.ID(), a.FEBKey, a.DepositKey)
		}
		idx.febDeposits[a.FEBKey] = append(idx.febDeposits[a.FEBKey], backtrack.DepositLink{
			Deposit:      d,
			LocalChannel: a.LocalChannel,
		})
	}

	for _, a := range ev.ClusterHitAssns[labels.Cluster] {
		h, ok := idx.hits[a.HitKey]
		if !ok {
			return nil, fmt.Errorf("%w: event %s cluster %d -> hit %d", ErrDanglingAssociation, ev.ID(), a.ClusterKey, a.HitKey)
		}
		idx.clusterHits[a.ClusterKey] = append(idx.clusterHits[a.ClusterKey], h)
	}

	return idx, nil
}

// FEBDataForHit implements backtrack.Associations.
func (idx *Index) FEBDataForHit(hitKey uint64) []uint64 {
	return idx.hitFEB[hitKey]
}

// DepositsForFEBData implements backtrack.Associations.
func (idx *Index) DepositsForFEBData(febKey uint64) []backtrack.DepositLink {
	return idx.febDeposits[febKey]
}

// Hit returns the strip hit with the given key.
func (idx *Index) Hit(key uint64) (crt.StripHit, bool) {
	h, ok := idx.hits[key]
	return h, ok
}

// ClusterHits returns the hits associated with an upstream cluster.
func (idx *Index) ClusterHits(clusterKey uint64) []crt.StripHit {
	return idx.clusterHits[clusterKey]
}

// Verify at compile time that *Index implements backtrack.Associations.
var _ backtrack.Associations = (*Index)(nil)
