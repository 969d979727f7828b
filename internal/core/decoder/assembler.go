package decoder

import (
	"fmt"

	"firestige.xyz/speadcap/internal/core"
)

// Assembler turns word sequences into validated packets.
type Assembler struct {
	Expect        Expectations
	MissingLength LengthPolicy
}

// FromWords assembles one packet with the default length policy.
func FromWords(words []core.Word, exp Expectations) (core.Packet, error) {
	return Assembler{Expect: exp}.FromWords(words)
}

// FromWords decodes words[0] as the magic header, the next NumHeaders words as
// item pointers and the rest as payload. Any failed check aborts assembly and
// no packet is returned.
func (a Assembler) FromWords(words []core.Word) (core.Packet, error) {
	if len(words) == 0 {
		return core.Packet{}, &core.DecodeError{Err: core.ErrTruncatedPacket, Field: "words", Got: 0, Want: "at least 1"}
	}

	magic, err := DecodeMagic(words[0], a.Expect)
	if err != nil {
		return core.Packet{}, err
	}

	headerEnd := int(magic.NumHeaders) + 1
	if len(words) < headerEnd {
		return core.Packet{}, &core.DecodeError{Err: core.ErrTruncatedPacket, Field: "words", Got: len(words), Want: fmt.Sprintf("at least %d", headerEnd)}
	}

	headers := core.NewHeaders()
	for _, w := range words[1:headerEnd] {
		ip := DecodeItemPointer(w, magic.IDBits, magic.AddressBits)
		if !headers.Add(ip.ID, ip.Value) {
			return core.Packet{}, &core.DecodeError{Err: core.ErrDuplicateHeaderID, Field: "header id", Got: fmt.Sprintf("0x%04x", ip.ID)}
		}
	}

	if n := a.Expect.NumHeaders; n != nil && headers.Len()+1 != int(*n)+1 {
		return core.Packet{}, &core.DecodeError{Err: core.ErrHeaderCountMismatch, Field: "headers", Got: headers.Len() + 1, Want: int(*n) + 1}
	}

	payload := words[headerEnd:]
	if n := a.Expect.PayloadLen; n != nil && len(payload) != *n {
		return core.Packet{}, &core.DecodeError{Err: core.ErrPayloadLengthMismatch, Field: "payload_words", Got: len(payload), Want: *n}
	}

	declared, ok := headers.Get(core.ItemPayloadLength)
	switch {
	case ok && uint64(len(payload))*8 != declared:
		return core.Packet{}, &core.DecodeError{Err: core.ErrLengthFieldMismatch, Field: "payload_bytes", Got: len(payload) * 8, Want: declared}
	case !ok && a.MissingLength == LengthRequired:
		return core.Packet{}, &core.DecodeError{Err: core.ErrMissingLengthHeader, Field: "payload_bytes", Got: len(payload) * 8}
	}

	return core.NewPacket(magic, headers, payload), nil
}
