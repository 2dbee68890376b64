package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Format is the serialisation of an event file.
type Format int

const (
	FormatJSON Format = iota
	FormatCBOR
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	cborEnc, err = encOptions.EncMode()
	if err != nil {
		panic("event: CBOR encoder initialization failed: " + err.Error())
	}

	cborDec, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("event: CBOR decoder initialization failed: " + err.Error())
	}
}

// DetectFormat infers the format and compression from a file name:
// .json or .cbor, optionally followed by .zst.
func DetectFormat(path string) (format Format, compressed bool, err error) {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".zst") {
		compressed = true
		name = strings.TrimSuffix(name, ".zst")
	}
	switch filepath.Ext(name) {
	case ".json":
		return FormatJSON, compressed, nil
	case ".cbor":
		return FormatCBOR, compressed, nil
	}
	return 0, false, fmt.Errorf("unsupported event file %q: want .json or .cbor, optionally .zst", path)
}

// ReadFile reads all events from path.
func ReadFile(path string) ([]*Event, error) {
	format, compressed, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	events, err := ReadEvents(r, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// ReadEvents decodes either a single event or an array of events.
func ReadEvents(r io.Reader, format Format) ([]*Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	switch format {
	case FormatJSON:
		if bytes.TrimSpace(data)[0] == '[' {
			var events []*Event
			if err := json.Unmarshal(data, &events); err != nil {
				return nil, fmt.Errorf("failed to parse events JSON: %w", err)
			}
			return events, nil
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event JSON: %w", err)
		}
		return []*Event{&ev}, nil

	case FormatCBOR:
		// Major type 4 is an array.
		if data[0]>>5 == 4 {
			var events []*Event
			if err := cborDec.Unmarshal(data, &events); err != nil {
				return nil, fmt.Errorf("failed to parse events CBOR: %w", err)
			}
			return events, nil
		}
		var ev Event
		if err := cborDec.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event CBOR: %w", err)
		}
		return []*Event{&ev}, nil
	}

	return nil, fmt.Errorf("unknown event format %d", format)
}

// WriteFile writes events to path as an array, in the format implied by
// the file name.
func WriteFile(path string, events []*Event) (err error) {
	format, compressed, err := DetectFormat(path)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(events, "", "  ")
	case FormatCBOR:
		data, err = cborEnc.Marshal(events)
	}
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create event file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !compressed {
		_, err = f.Write(data)
		return err
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to open zstd stream: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
