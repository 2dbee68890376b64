package backtrack

import (
	"sort"

	"github.com/banshee-data/crtreco/internal/crt/geometry"
)

// EnergyDeposit is one simulated energy deposition in a CRT strip.
type EnergyDeposit struct {
	Key     uint64         `json:"key"`
	TrackID int            `json:"track_id"`
	Entry   geometry.Point `json:"entry"`
	Exit    geometry.Point `json:"exit"`
	Energy  float64        `json:"energy"`
}

// Midpoint returns the position used to place the deposit in a tagger.
func (d EnergyDeposit) Midpoint() geometry.Point {
	return geometry.Midpoint(d.Entry, d.Exit)
}

// DepositKey identifies an (ancestor track, tagger) category.
type DepositKey struct {
	TrackID int
	Tagger  geometry.Tagger
}

// DepositTally is the deposit count and summed energy for one category.
type DepositTally struct {
	Count  int
	Energy float64
}

// DepositIndex holds, per ancestor track and tagger, everything that was
// deposited in the event. It is the denominator for completeness.
type DepositIndex struct {
	tallies   map[DepositKey]DepositTally
	ancestors []int
}

// BuildDepositIndex tallies deposits by rolled-up track id and by the
// tagger containing each deposit's midpoint.
func BuildDepositIndex(deposits []EnergyDeposit, ancestry *AncestorMap, geo geometry.Lookup) *DepositIndex {
	keys := make([]DepositKey, len(deposits))
	idx := &DepositIndex{tallies: make(map[DepositKey]DepositTally)}

	// Register every category first so that a category is queryable even
	// when nothing later adds to it.
	seen := make(map[int]bool)
	for i, d := range deposits {
		keys[i] = DepositKey{
			TrackID: ancestry.RollUp(d.TrackID),
			Tagger:  geo.PositionToTagger(d.Midpoint()),
		}
		if _, ok := idx.tallies[keys[i]]; !ok {
			idx.tallies[keys[i]] = DepositTally{}
		}
		if !seen[keys[i].TrackID] {
			seen[keys[i].TrackID] = true
			idx.ancestors = append(idx.ancestors, keys[i].TrackID)
		}
	}
	sort.Ints(idx.ancestors)

	for i, d := range deposits {
		tally := idx.tallies[keys[i]]
		tally.Count++
		tally.Energy += d.Energy
		idx.tallies[keys[i]] = tally
	}

	return idx
}

// Tally returns the tally for a category and whether it was registered.
func (d *DepositIndex) Tally(trackID int, tagger geometry.Tagger) (DepositTally, bool) {
	t, ok := d.tallies[DepositKey{TrackID: trackID, Tagger: tagger}]
	return t, ok
}

// Energy returns the summed deposited energy for a category, 0 if unknown.
func (d *DepositIndex) Energy(trackID int, tagger geometry.Tagger) float64 {
	t, _ := d.Tally(trackID, tagger)
	return t.Energy
}

// Count returns the number of deposits for a category, 0 if unknown.
func (d *DepositIndex) Count(trackID int, tagger geometry.Tagger) int {
	t, _ := d.Tally(trackID, tagger)
	return t.Count
}

// Ancestors returns the distinct rolled-up track ids seen, ascending.
func (d *DepositIndex) Ancestors() []int {
	return append([]int(nil), d.ancestors...)
}

// Len returns the number of registered categories.
func (d *DepositIndex) Len() int {
	return len(d.tallies)
}
