package decoder

import "firestige.xyz/speadcap/internal/core"

// DecodeItemPointer splits a header word into id and value. The id is the
// top idBits bits; its own top bit is the immediate-addressing flag and is
// cleared from the returned ID.
func DecodeItemPointer(w core.Word, idBits, addressBits uint) core.ItemPointer {
	raw := uint64(w) >> addressBits
	ip := core.ItemPointer{
		ID:    raw,
		Value: uint64(w) & (uint64(1)<<addressBits - 1),
	}
	if idBits == 0 {
		return ip
	}
	flag := uint64(1) << (idBits - 1)
	if raw&flag != 0 {
		ip.ID = raw & (flag - 1)
		ip.Immediate = true
	}
	return ip
}

// EncodeItemPointer builds a header word. The id is truncated to idBits-1
// bits and the flag bit is set when immediate is true.
func EncodeItemPointer(id, value uint64, idBits, addressBits uint, immediate bool) core.Word {
	if idBits > 0 {
		flag := uint64(1) << (idBits - 1)
		id &= flag - 1
		if immediate {
			id |= flag
		}
	}
	return core.Word(id<<addressBits | value&(uint64(1)<<addressBits-1))
}
