package pipeline

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/crtreco/internal/crt/geometry"
)

// Moments are the population mean and standard deviation of a sample.
type Moments struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Summary describes one event's reconstruction. Purity and completeness
// moments are over matched objects only.
type Summary struct {
	NHits            int                     `json:"n_hits"`
	NClusters        int                     `json:"n_clusters"`
	NThreeD          int                     `json:"n_three_d"`
	ClustersByTagger map[geometry.Tagger]int `json:"clusters_by_tagger"`

	MatchedClusters int `json:"matched_clusters"`
	MatchedHits     int `json:"matched_hits"`
	Inconsistent    int `json:"inconsistent"`

	ClusterPurity       Moments `json:"cluster_purity"`
	ClusterCompleteness Moments `json:"cluster_completeness"`
	HitPurity           Moments `json:"hit_purity"`
	HitCompleteness     Moments `json:"hit_completeness"`
}

// Summarise computes the per-event summary of res.
func Summarise(res *EventResult) Summary {
	s := Summary{
		NHits:            len(res.HitMatches),
		NClusters:        len(res.Clusters),
		ClustersByTagger: make(map[geometry.Tagger]int),
	}
	for _, c := range res.Clusters {
		s.ClustersByTagger[c.Cluster.Tagger]++
		if c.Cluster.ThreeD {
			s.NThreeD++
		}
	}

	var purity, completeness []float64
	for _, m := range res.ClusterMatches {
		if !m.Consistent() {
			s.Inconsistent++
		}
		if m.Matched() {
			purity = append(purity, m.Purity)
			completeness = append(completeness, m.Completeness)
		}
	}
	s.MatchedClusters = len(purity)
	s.ClusterPurity = moments(purity)
	s.ClusterCompleteness = moments(completeness)

	purity, completeness = purity[:0], completeness[:0]
	for _, h := range res.HitMatches {
		m := h.Match
		if !m.Consistent() {
			s.Inconsistent++
		}
		if m.Matched() {
			purity = append(purity, m.Purity)
			completeness = append(completeness, m.Completeness)
		}
	}
	s.MatchedHits = len(purity)
	s.HitPurity = moments(purity)
	s.HitCompleteness = moments(completeness)

	return s
}

func moments(x []float64) Moments {
	if len(x) == 0 {
		return Moments{}
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	return Moments{N: len(x), Mean: mean, StdDev: std}
}
