package crt

import (
	"fmt"
	"sort"

	"github.com/banshee-data/crtreco/internal/crt/geometry"
)

// GroupStripHits partitions hits by the tagger their channel belongs to.
// Input order is preserved within each group. An unmapped channel aborts
// the grouping.
func GroupStripHits(hits []StripHit, geo geometry.Lookup) (map[Tagger][]StripHit, error) {
	groups := make(map[Tagger][]StripHit)

	for _, hit := range hits {
		tagger, err := geo.ChannelToTagger(hit.Channel)
		if err != nil {
			return nil, fmt.Errorf("group strip hit %d: %w", hit.Key, err)
		}
		groups[tagger] = append(groups[tagger], hit)
	}

	return groups, nil
}

// SortedTaggers returns the keys of groups in ascending tagger order.
func SortedTaggers(groups map[Tagger][]StripHit) []Tagger {
	taggers := make([]Tagger, 0, len(groups))
	for t := range groups {
		taggers = append(taggers, t)
	}
	sort.Slice(taggers, func(i, j int) bool { return taggers[i] < taggers[j] })
	return taggers
}
