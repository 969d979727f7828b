package decoder

import "firestige.xyz/speadcap/internal/core"

// DecodeMagic decodes the first word of a packet.
//
//	bits 56-63 magic number (83)
//	bits 48-55 version
//	bits 40-47 id width in bytes
//	bits 32-39 address width in bytes
//	bits 16-31 reserved (0)
//	bits  0-15 number of item pointers
func DecodeMagic(w core.Word, exp Expectations) (core.MagicHeader, error) {
	m := core.MagicHeader{
		MagicNumber: uint8(w >> 56),
		Version:     uint8(w >> 48),
		IDBits:      uint(uint8(w>>40)) * 8,
		AddressBits: uint(uint8(w>>32)) * 8,
		Reserved:    uint16(w >> 16),
		NumHeaders:  uint16(w),
	}

	if m.MagicNumber != core.MagicNumber {
		return core.MagicHeader{}, &core.DecodeError{Err: core.ErrMagicMismatch, Field: "magic_number", Got: m.MagicNumber, Want: core.MagicNumber}
	}
	if m.Reserved != 0 {
		return core.MagicHeader{}, &core.DecodeError{Err: core.ErrReservedNonzero, Field: "reserved", Got: m.Reserved, Want: 0}
	}
	if exp.Version != nil && m.Version != *exp.Version {
		return core.MagicHeader{}, &core.DecodeError{Err: core.ErrVersionMismatch, Field: "version", Got: m.Version, Want: *exp.Version}
	}
	if exp.Flavour != nil && m.Flavour() != *exp.Flavour {
		return core.MagicHeader{}, &core.DecodeError{Err: core.ErrFlavourMismatch, Field: "flavour", Got: m.Flavour(), Want: *exp.Flavour}
	}
	if exp.NumHeaders != nil && m.NumHeaders != *exp.NumHeaders {
		return core.MagicHeader{}, &core.DecodeError{Err: core.ErrHeaderCountMismatch, Field: "num_headers", Got: m.NumHeaders, Want: *exp.NumHeaders}
	}
	return m, nil
}

// FindMagic returns the index and header of the first word in words that
// decodes as a magic word satisfying exp. Words that fail to decode are
// skipped. It returns -1 when nothing matches.
func FindMagic(words []core.Word, exp Expectations) (int, core.MagicHeader) {
	for i, w := range words {
		if m, err := DecodeMagic(w, exp); err == nil {
			return i, m
		}
	}
	return -1, core.MagicHeader{}
}

// EncodeMagic builds a magic word. Widths are given in bytes.
func EncodeMagic(version, idBytes, addressBytes uint8, numHeaders uint16) core.Word {
	return core.Word(uint64(core.MagicNumber)<<56 |
		uint64(version)<<48 |
		uint64(idBytes)<<40 |
		uint64(addressBytes)<<32 |
		uint64(numHeaders))
}
