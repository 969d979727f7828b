// Package core defines core data structures shared by decoders, sources and reporters.
package core

import "fmt"

// Word is one 64-bit unit of the SPEAD wire format.
type Word uint64

// MagicNumber is the value of the top byte of every SPEAD magic word.
const MagicNumber = 83

// Well-known item pointer ids.
const (
	ItemMagic         uint64 = 0x0000 // reserved for the magic header itself
	ItemHeapCounter   uint64 = 0x0001
	ItemHeapSize      uint64 = 0x0002
	ItemHeapOffset    uint64 = 0x0003
	ItemPayloadLength uint64 = 0x0004 // payload length in bytes
	ItemDescriptor    uint64 = 0x0005
	ItemStreamControl uint64 = 0x0006
)

// MagicHeader is the decoded first word of a packet.
type MagicHeader struct {
	MagicNumber uint8
	Version     uint8
	IDBits      uint // id width in bytes * 8
	AddressBits uint // address width in bytes * 8
	Reserved    uint16
	NumHeaders  uint16 // item pointers following the magic word
}

// Flavour returns "<id_bits+address_bits>,<address_bits>", e.g. "64,48".
func (m MagicHeader) Flavour() string {
	return fmt.Sprintf("%d,%d", m.IDBits+m.AddressBits, m.AddressBits)
}

// ItemPointer is one decoded header word.
type ItemPointer struct {
	ID        uint64
	Value     uint64
	Immediate bool // flag bit was set in the raw id and has been cleared from ID
}
