package utils

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// UDPPortFilter returns a classic BPF program accepting Ethernet frames that
// carry IPv4 UDP with the given destination port, untagged or behind one
// 802.1Q tag. Non-first IPv4 fragments are accepted too since their UDP
// header lives in the first fragment.
func UDPPortFilter(port uint16) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},                            // ethertype
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x8100, SkipTrue: 9},     // vlan tagged
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: 0x0800, SkipTrue: 18}, // not IPv4
		bpf.LoadAbsolute{Off: 23, Size: 1},                            // ip protocol
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: 17, SkipTrue: 16},     // not UDP
		bpf.LoadAbsolute{Off: 20, Size: 2},                            // flags + fragment offset
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 13},  // later fragment
		bpf.LoadMemShift{Off: 14},                                     // X = ip header length
		bpf.LoadIndirect{Off: 16, Size: 2},                            // udp dst port
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(port), SkipTrue: 11},
		bpf.Jump{Skip: 9},

		// 802.1Q: everything shifted by the 4 byte tag
		bpf.LoadAbsolute{Off: 16, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: 0x0800, SkipTrue: 8},
		bpf.LoadAbsolute{Off: 27, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: 17, SkipTrue: 6},
		bpf.LoadAbsolute{Off: 24, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 3},
		bpf.LoadMemShift{Off: 18},
		bpf.LoadIndirect{Off: 20, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(port), SkipTrue: 1},

		bpf.RetConstant{Val: 0xffff},
		bpf.RetConstant{Val: 0},
	}
}

// PacketFilter runs a BPF program in userspace over captured frames.
type PacketFilter struct {
	vm *bpf.VM
}

// NewPacketFilter validates and loads a BPF program.
func NewPacketFilter(prog []bpf.Instruction) (*PacketFilter, error) {
	vm, err := bpf.NewVM(prog)
	if err != nil {
		return nil, fmt.Errorf("failed to load BPF program: %w", err)
	}
	return &PacketFilter{vm: vm}, nil
}

// Match reports whether the program accepts frame. A nil filter matches
// everything.
func (f *PacketFilter) Match(frame []byte) bool {
	if f == nil {
		return true
	}
	n, err := f.vm.Run(frame)
	return err == nil && n > 0
}
