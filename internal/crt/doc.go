// Package crt owns CRT strip-hit reconstruction: grouping strip hits by
// tagger, forming time-coincident clusters, and characterising each
// cluster into a single record.
//
// Key types: StripHit, Cluster, ClusteredHits.
//
// Geometry is consumed through geometry.Lookup. Truth matching lives in
// the backtrack subpackage and never feeds back into clustering.
// No SQL/database code is allowed in this package.
package crt
