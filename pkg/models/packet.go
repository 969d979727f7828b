// Package models re-exports core types and defines the structured record
// form of a packet used by reporters.
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"firestige.xyz/speadcap/internal/core"
)

// Re-export core packet types for plugins
type (
	Word        = core.Word
	MagicHeader = core.MagicHeader
	Packet      = core.Packet
)

// HeaderField is one item pointer header.
type HeaderField struct {
	ID    uint64 `json:"id" yaml:"id" cbor:"1,keyasint"`
	Value uint64 `json:"value" yaml:"value" cbor:"2,keyasint"`
}

// Record is the serialisable form of a packet. Headers keep wire order.
type Record struct {
	Version    uint8         `json:"version" yaml:"version" cbor:"1,keyasint"`
	Flavour    string        `json:"flavour" yaml:"flavour" cbor:"2,keyasint"`
	NumHeaders uint16        `json:"num_headers" yaml:"num_headers" cbor:"3,keyasint"`
	Headers    []HeaderField `json:"headers" yaml:"headers" cbor:"4,keyasint"`
	Payload    []uint64      `json:"payload,omitempty" yaml:"payload,omitempty" cbor:"5,keyasint,omitempty"`
}

// NewRecord converts a packet. headersOnly drops the payload.
func NewRecord(pkt core.Packet, headersOnly bool) Record {
	m := pkt.Magic()
	r := Record{
		Version:    m.Version,
		Flavour:    m.Flavour(),
		NumHeaders: m.NumHeaders,
		Headers:    make([]HeaderField, 0, pkt.HeaderCount()-1),
	}
	for _, id := range pkt.HeaderIDs()[1:] {
		v, _ := pkt.Header(id)
		r.Headers = append(r.Headers, HeaderField{ID: id, Value: v})
	}
	if !headersOnly {
		payload := pkt.Payload()
		r.Payload = make([]uint64, len(payload))
		for i, w := range payload {
			r.Payload[i] = uint64(w)
		}
	}
	return r
}

// Formats accepted by Encode.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCBOR = "cbor"
)

// Encode serialises pkt in the given format. Text output is the line
// rendering joined with newlines.
func Encode(format string, pkt core.Packet, opts core.RenderOptions) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatText, "":
		return []byte(strings.Join(pkt.Strings(opts), "\n") + "\n"), nil
	case FormatJSON:
		return json.Marshal(NewRecord(pkt, opts.HeadersOnly))
	case FormatYAML:
		return yaml.Marshal(NewRecord(pkt, opts.HeadersOnly))
	case FormatCBOR:
		return cbor.Marshal(NewRecord(pkt, opts.HeadersOnly))
	default:
		return nil, fmt.Errorf("%w: unknown format %q", core.ErrConfigInvalid, format)
	}
}

// ValidFormat reports whether Encode accepts format.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatText, FormatJSON, FormatYAML, FormatCBOR, "":
		return true
	}
	return false
}
