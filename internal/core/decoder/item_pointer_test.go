package decoder

import (
	"testing"
	"testing/quick"

	"firestige.xyz/speadcap/internal/core"
)

func TestDecodeItemPointerImmediateFlag(t *testing.T) {
	const idBits, addrBits = 8, 56
	value := uint64(0x00123456789abc)

	set := core.Word(uint64(0x85)<<addrBits | value)
	ip := DecodeItemPointer(set, idBits, addrBits)
	if ip.ID != 0x05 {
		t.Errorf("expected flag bit cleared (0x05), got 0x%x", ip.ID)
	}
	if !ip.Immediate {
		t.Error("expected Immediate=true")
	}
	if ip.Value != value {
		t.Errorf("expected value 0x%x, got 0x%x", value, ip.Value)
	}

	unset := core.Word(uint64(0x05)<<addrBits | value)
	ip = DecodeItemPointer(unset, idBits, addrBits)
	if ip.ID != 0x05 || ip.Immediate {
		t.Errorf("expected unchanged id 0x05 without flag, got 0x%x (immediate=%v)", ip.ID, ip.Immediate)
	}
}

func TestDecodeItemPointerSpead6448(t *testing.T) {
	// Immediate 0x0004 = 16 in SPEAD-64-48.
	ip := DecodeItemPointer(core.Word(0x8004000000000010), 16, 48)
	if ip.ID != 0x0004 || ip.Value != 16 || !ip.Immediate {
		t.Errorf("unexpected item pointer %+v", ip)
	}
}

func TestDecodeItemPointerWidthEdges(t *testing.T) {
	tests := []struct {
		name             string
		w                core.Word
		idBits, addrBits uint
		want             core.ItemPointer
	}{
		{"address fills word", 0xffffffffffffffff, 0, 64, core.ItemPointer{ID: 0, Value: 0xffffffffffffffff}},
		{"id fills word", 0x8000000000000001, 64, 0, core.ItemPointer{ID: 1, Value: 0, Immediate: true}},
		{"zero id width", 0x00ff000000000000, 0, 48, core.ItemPointer{ID: 0xff, Value: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeItemPointer(tt.w, tt.idBits, tt.addrBits); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestItemPointerRoundTrip(t *testing.T) {
	f := func(id uint16, value uint64, immediate bool) bool {
		const idBits, addrBits = 16, 48
		w := EncodeItemPointer(uint64(id), value, idBits, addrBits, immediate)
		ip := DecodeItemPointer(w, idBits, addrBits)
		return ip.ID == uint64(id)&0x7fff &&
			ip.Value == value&(1<<addrBits-1) &&
			ip.Immediate == immediate
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
