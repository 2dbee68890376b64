package geometry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Description is the on-disk YAML form of a CRT geometry.
type Description struct {
	Taggers []TaggerDescription `yaml:"taggers"`
	Modules []ModuleDescription `yaml:"modules"`
}

// TaggerDescription bounds one tagger wall.
type TaggerDescription struct {
	Name string     `yaml:"name"`
	Min  [3]float64 `yaml:"min"`
	Max  [3]float64 `yaml:"max"`
}

// ModuleDescription describes one module of StripsPerModule strips.
//
// FirstChannel defaults to ChannelsPerModule times the module's position
// in the list. WidthAxis names the axis ("x", "y" or "z") along which the
// strips are laid side by side.
type ModuleDescription struct {
	Name         string     `yaml:"name"`
	Tagger       string     `yaml:"tagger"`
	Orientation  int        `yaml:"orientation"`
	FirstChannel *uint32    `yaml:"first_channel,omitempty"`
	WidthAxis    string     `yaml:"width_axis"`
	Min          [3]float64 `yaml:"min"`
	Max          [3]float64 `yaml:"max"`
}

type taggerBox struct {
	tagger Tagger
	box    Box
}

type module struct {
	name         string
	tagger       Tagger
	orientation  int
	firstChannel uint32
	widthAxis    int
	box          Box
}

// Table is a Lookup backed by an in-memory module table.
type Table struct {
	taggers []taggerBox
	modules map[uint32]*module // keyed by first channel
}

// LoadTable reads a YAML geometry description from path.
func LoadTable(path string) (*Table, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("geometry file must have .yaml extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry file: %w", err)
	}
	return ParseTable(data)
}

// ParseTable builds a Table from YAML bytes.
func ParseTable(data []byte) (*Table, error) {
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse geometry YAML: %w", err)
	}
	return NewTable(desc)
}

// NewTable validates desc and builds the lookup tables.
func NewTable(desc Description) (*Table, error) {
	t := &Table{modules: make(map[uint32]*module, len(desc.Modules))}

	seen := make(map[Tagger]bool)
	for _, td := range desc.Taggers {
		tagger, err := ParseTagger(td.Name)
		if err != nil {
			return nil, err
		}
		if tagger == TaggerUndefined {
			return nil, fmt.Errorf("tagger %q cannot be declared", td.Name)
		}
		if seen[tagger] {
			return nil, fmt.Errorf("tagger %s declared twice", tagger)
		}
		seen[tagger] = true
		t.taggers = append(t.taggers, taggerBox{tagger: tagger, box: toBox(td.Min, td.Max)})
	}

	for i, md := range desc.Modules {
		tagger, err := ParseTagger(md.Tagger)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", md.Name, err)
		}
		if !seen[tagger] {
			return nil, fmt.Errorf("module %q: tagger %s is not declared", md.Name, tagger)
		}
		axis, err := parseAxis(md.WidthAxis)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", md.Name, err)
		}
		first := uint32(i) * ChannelsPerModule
		if md.FirstChannel != nil {
			first = *md.FirstChannel
		}
		if first%ChannelsPerModule != 0 {
			return nil, fmt.Errorf("module %q: first_channel %d is not a multiple of %d", md.Name, first, ChannelsPerModule)
		}
		if _, dup := t.modules[first]; dup {
			return nil, fmt.Errorf("module %q: channels %d-%d already assigned", md.Name, first, first+ChannelsPerModule-1)
		}
		name := md.Name
		if name == "" {
			name = fmt.Sprintf("module_%d", first/ChannelsPerModule)
		}
		t.modules[first] = &module{
			name:         name,
			tagger:       tagger,
			orientation:  md.Orientation,
			firstChannel: first,
			widthAxis:    axis,
			box:          toBox(md.Min, md.Max),
		}
	}

	return t, nil
}

func toBox(lo, hi [3]float64) Box {
	return Box{
		Min: Point{X: lo[0], Y: lo[1], Z: lo[2]},
		Max: Point{X: hi[0], Y: hi[1], Z: hi[2]},
	}
}

func parseAxis(s string) (int, error) {
	switch strings.ToLower(s) {
	case "x":
		return 0, nil
	case "y":
		return 1, nil
	case "z":
		return 2, nil
	}
	return 0, fmt.Errorf("width_axis must be x, y or z, got %q", s)
}

func (t *Table) moduleFor(channel uint32) (*module, error) {
	m, ok := t.modules[channel-channel%ChannelsPerModule]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}
	return m, nil
}

// ChannelToTagger implements Lookup.
func (t *Table) ChannelToTagger(channel uint32) (Tagger, error) {
	m, err := t.moduleFor(channel)
	if err != nil {
		return TaggerUndefined, err
	}
	return m.tagger, nil
}

// PositionToTagger implements Lookup. Taggers are tested in declaration
// order and the first containing one wins.
func (t *Table) PositionToTagger(p Point) Tagger {
	for _, tb := range t.taggers {
		if tb.box.Contains(p) {
			return tb.tagger
		}
	}
	return TaggerUndefined
}

// Strip implements Lookup.
func (t *Table) Strip(channel uint32) (Strip, error) {
	m, err := t.moduleFor(channel)
	if err != nil {
		return Strip{}, err
	}
	index := (channel % ChannelsPerModule) / 2
	ch0 := m.firstChannel + 2*index

	bounds := m.box
	lo := axisValue(m.box.Min, m.widthAxis)
	width := (axisValue(m.box.Max, m.widthAxis) - lo) / StripsPerModule
	setAxis(&bounds.Min, m.widthAxis, lo+float64(index)*width)
	setAxis(&bounds.Max, m.widthAxis, lo+float64(index+1)*width)

	return Strip{
		Name:        fmt.Sprintf("%s_strip%02d", m.name, index),
		Channel0:    ch0,
		Channel1:    ch0 + 1,
		Module:      m.name,
		Tagger:      m.tagger,
		Orientation: m.orientation,
		Bounds:      bounds,
	}, nil
}

// DifferentOrientations implements Lookup.
func (t *Table) DifferentOrientations(a, b Strip) bool {
	return a.Orientation != b.Orientation
}

func axisValue(p Point, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

func setAxis(p *Point, axis int, v float64) {
	switch axis {
	case 0:
		p.X = v
	case 1:
		p.Y = v
	default:
		p.Z = v
	}
}

// Verify at compile time that *Table implements Lookup.
var _ Lookup = (*Table)(nil)
