package core

import (
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Headers is an insertion-ordered map of item pointer id to value.
// Id 0 belongs to the magic header and is never stored here.
type Headers struct {
	m *orderedmap.OrderedMap[uint64, uint64]
}

// NewHeaders returns an empty header map.
func NewHeaders() *Headers {
	return &Headers{m: orderedmap.New[uint64, uint64]()}
}

// Add inserts id=value. It returns false, leaving the map untouched, when id
// is already present or is the reserved magic id.
func (h *Headers) Add(id, value uint64) bool {
	if id == ItemMagic {
		return false
	}
	if _, ok := h.m.Get(id); ok {
		return false
	}
	h.m.Set(id, value)
	return true
}

// Get returns the value stored for id.
func (h *Headers) Get(id uint64) (uint64, bool) {
	if h == nil || h.m == nil {
		return 0, false
	}
	return h.m.Get(id)
}

// Len returns the number of item pointers, excluding the magic header.
func (h *Headers) Len() int {
	if h == nil || h.m == nil {
		return 0
	}
	return h.m.Len()
}

// IDs returns item ids in insertion order.
func (h *Headers) IDs() []uint64 {
	ids := make([]uint64, 0, h.Len())
	if h.Len() == 0 {
		return ids
	}
	for pair := h.m.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

func (h *Headers) clone() *Headers {
	c := NewHeaders()
	if h.Len() == 0 {
		return c
	}
	for pair := h.m.Oldest(); pair != nil; pair = pair.Next() {
		c.m.Set(pair.Key, pair.Value)
	}
	return c
}

// Packet is one decoded SPEAD packet: the magic header (id 0), the item
// pointer headers in wire order and the payload words. A Packet is never
// modified after construction; accessors return copies.
type Packet struct {
	magic   MagicHeader
	headers *Headers
	payload []Word
}

// NewPacket builds a Packet, copying headers and payload.
func NewPacket(magic MagicHeader, headers *Headers, payload []Word) Packet {
	return Packet{
		magic:   magic,
		headers: headers.clone(),
		payload: slices.Clone(payload),
	}
}

// Magic returns the magic header, i.e. header id 0.
func (p Packet) Magic() MagicHeader { return p.magic }

// Header returns the value of item pointer id. The magic header is read
// with Magic, so id 0 always reports false.
func (p Packet) Header(id uint64) (uint64, bool) {
	return p.headers.Get(id)
}

// HeaderIDs returns every header id in insertion order, starting with 0.
func (p Packet) HeaderIDs() []uint64 {
	return append([]uint64{ItemMagic}, p.headers.IDs()...)
}

// HeaderCount returns the number of headers including the magic header.
func (p Packet) HeaderCount() int { return p.headers.Len() + 1 }

// DeclaredLength returns the payload length in bytes announced by header 0x0004.
func (p Packet) DeclaredLength() (uint64, bool) {
	return p.headers.Get(ItemPayloadLength)
}

// Payload returns a copy of the payload words.
func (p Packet) Payload() []Word { return slices.Clone(p.payload) }

// PayloadLen returns the number of payload words.
func (p Packet) PayloadLen() int { return len(p.payload) }

// Equal reports whether both packets carry the same headers, in the same
// order, and the same payload.
func (p Packet) Equal(o Packet) bool {
	if p.magic != o.magic || !slices.Equal(p.payload, o.payload) {
		return false
	}
	ids := p.headers.IDs()
	if !slices.Equal(ids, o.headers.IDs()) {
		return false
	}
	for _, id := range ids {
		a, _ := p.headers.Get(id)
		b, _ := o.headers.Get(id)
		if a != b {
			return false
		}
	}
	return true
}
