// Package event holds the per-event input records for CRT reconstruction
// and the association lookups truth matching runs over.
package event

import (
	"errors"
	"fmt"

	"github.com/banshee-data/crtreco/internal/crt"
	"github.com/banshee-data/crtreco/internal/crt/backtrack"
)

// ErrDanglingAssociation is returned when an association refers to a record
// that is not in the event.
var ErrDanglingAssociation = errors.New("event: association refers to a missing record")

// FEBData is one front-end board readout.
type FEBData struct {
	Key   uint64 `json:"key"`
	Mac5  uint16 `json:"mac5"`
	Ts0   uint32 `json:"ts0"`
	Ts1   uint32 `json:"ts1"`
	UnixS uint32 `json:"unixs"`
}

// HitFEBAssn links a strip hit to the FEB record it was built from.
type HitFEBAssn struct {
	HitKey uint64 `json:"hit_key"`
	FEBKey uint64 `json:"feb_key"`
}

// FEBDepositAssn links an FEB record to a simulated deposit, annotated with
// the FEB-local channel that saw it.
type FEBDepositAssn struct {
	FEBKey       uint64 `json:"feb_key"`
	DepositKey   uint64 `json:"deposit_key"`
	LocalChannel uint32 `json:"local_channel"`
}

// ClusterRecord is a cluster produced upstream, with its key.
type ClusterRecord struct {
	Key uint64 `json:"key"`
	crt.Cluster
}

// ClusterHitAssn links an upstream cluster to one of its strip hits.
type ClusterHitAssn struct {
	ClusterKey uint64 `json:"cluster_key"`
	HitKey     uint64 `json:"hit_key"`
}

// Event is everything read for one event. Collections are keyed by the
// label of the producer that made them.
type Event struct {
	Run    uint32 `json:"run"`
	SubRun uint32 `json:"subrun"`
	Event  uint32 `json:"event"`

	StripHits       map[string][]crt.StripHit            `json:"strip_hits,omitempty"`
	FEBData         map[string][]FEBData                 `json:"feb_data,omitempty"`
	Deposits        map[string][]backtrack.EnergyDeposit `json:"deposits,omitempty"`
	HitFEBAssns     map[string][]HitFEBAssn              `json:"hit_feb_assns,omitempty"`
	FEBDepositAssns map[string][]FEBDepositAssn          `json:"feb_deposit_assns,omitempty"`
	Clusters        map[string][]ClusterRecord           `json:"clusters,omitempty"`
	ClusterHitAssns map[string][]ClusterHitAssn          `json:"cluster_hit_assns,omitempty"`

	// DroppedTrackMaps are all used, whatever produced them.
	DroppedTrackMaps []backtrack.DroppedTrackMap `json:"dropped_track_maps,omitempty"`
}

// Labels select which collections of an Event are read.
type Labels struct {
	StripHit   string
	FEBData    string
	SimDeposit string
	Cluster    string
}

// ID returns a printable run/subrun/event identifier.
func (e *Event) ID() string {
	return fmt.Sprintf("%d/%d/%d", e.Run, e.SubRun, e.Event)
}

// Hits returns the strip hits produced under labels.StripHit.
func (e *Event) Hits(labels Labels) []crt.StripHit {
	return e.StripHits[labels.StripHit]
}

// TruthInputs returns the deposits and dropped-track maps for building a
// backtrack.TruthContext.
func (e *Event) TruthInputs(labels Labels) backtrack.TruthInputs {
	return backtrack.TruthInputs{
		Deposits:         e.Deposits[labels.SimDeposit],
		DroppedTrackMaps: e.DroppedTrackMaps,
	}
}

// InputClusters returns clusters produced upstream under labels.Cluster.
func (e *Event) InputClusters(labels Labels) []ClusterRecord {
	return e.Clusters[labels.Cluster]
}
