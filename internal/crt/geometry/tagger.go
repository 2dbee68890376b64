package geometry

import (
	"fmt"
	"strings"
)

// Tagger identifies one of the CRT walls surrounding the detector.
type Tagger int

const (
	TaggerUndefined Tagger = iota - 1
	TaggerBottom
	TaggerSouth
	TaggerNorth
	TaggerWest
	TaggerEast
	TaggerTopLow
	TaggerTopHigh
)

var taggerNames = map[Tagger]string{
	TaggerUndefined: "undefined",
	TaggerBottom:    "bottom",
	TaggerSouth:     "south",
	TaggerNorth:     "north",
	TaggerWest:      "west",
	TaggerEast:      "east",
	TaggerTopLow:    "toplow",
	TaggerTopHigh:   "tophigh",
}

// AllTaggers lists the defined taggers in enum order.
func AllTaggers() []Tagger {
	return []Tagger{TaggerBottom, TaggerSouth, TaggerNorth, TaggerWest, TaggerEast, TaggerTopLow, TaggerTopHigh}
}

func (t Tagger) String() string {
	if name, ok := taggerNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tagger(%d)", int(t))
}

// ParseTagger accepts the names produced by String, case-insensitively.
func ParseTagger(s string) (Tagger, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for t, name := range taggerNames {
		if name == want {
			return t, nil
		}
	}
	return TaggerUndefined, fmt.Errorf("unknown tagger %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tagger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tagger) UnmarshalText(text []byte) error {
	parsed, err := ParseTagger(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
