// Package backtrack matches reconstructed CRT objects to the simulated
// particles that produced them.
//
// A TruthContext is built once per event from the event's energy
// deposits and dropped-track maps. It is read-only afterwards and answers
// Match queries for strip hits and clusters, reporting the best matching
// ancestor track with its purity and completeness.
package backtrack
