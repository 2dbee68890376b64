// Package geometry resolves CRT readout channels and positions to taggers
// and strips.
//
// The rest of the CRT code only sees the Lookup interface; Table is the
// production implementation, built from a YAML description of the walls
// and their modules.
package geometry

import "errors"

// ErrUnknownChannel is returned when a channel has no geometry mapping.
var ErrUnknownChannel = errors.New("geometry: unknown channel")

// ChannelsPerModule is the number of SiPM channels read out by one FEB.
const ChannelsPerModule = 32

// StripsPerModule is the number of scintillator strips in one module.
// Each strip is read out by two adjacent channels.
const StripsPerModule = ChannelsPerModule / 2

// Point is a position in detector coordinates (cm).
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Midpoint returns the point halfway between p and q.
func Midpoint(p, q Point) Point {
	return Point{
		X: (p.X + q.X) / 2.,
		Y: (p.Y + q.Y) / 2.,
		Z: (p.Z + q.Z) / 2.,
	}
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min Point
	Max Point
}

// Contains reports whether p lies inside b, bounds inclusive.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Strip describes one scintillator strip.
type Strip struct {
	Name        string
	Channel0    uint32
	Channel1    uint32
	Module      string
	Tagger      Tagger
	Orientation int
	Bounds      Box
}

// Lookup is the geometry service consumed by clustering and truth matching.
type Lookup interface {
	// ChannelToTagger returns the tagger a readout channel belongs to.
	ChannelToTagger(channel uint32) (Tagger, error)

	// PositionToTagger returns the tagger enclosing a position, or
	// TaggerUndefined when no tagger contains it.
	PositionToTagger(p Point) Tagger

	// Strip returns the strip read out by a channel.
	Strip(channel uint32) (Strip, error)

	// DifferentOrientations reports whether two strips sense different
	// coordinates.
	DifferentOrientations(a, b Strip) bool
}
