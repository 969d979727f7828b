package core

import "fmt"

// RenderOptions controls Packet.Strings.
type RenderOptions struct {
	HeadersOnly bool // omit payload words
	Hex         bool // header values as 0x%x instead of decimal
}

// Strings renders the packet as diagnostic lines: headers in insertion order,
// then one decimal line per payload word. The caller decides where they go.
func (p Packet) Strings(opts RenderOptions) []string {
	lines := make([]string, 0, p.HeaderCount()+len(p.payload))
	lines = append(lines, fmt.Sprintf("header 0x0000: version(%d) flavour(%s) num_headers(%d)",
		p.magic.Version, p.magic.Flavour(), p.magic.NumHeaders))
	for _, id := range p.headers.IDs() {
		v, _ := p.headers.Get(id)
		if opts.Hex {
			lines = append(lines, fmt.Sprintf("header 0x%04x: 0x%x", id, v))
		} else {
			lines = append(lines, fmt.Sprintf("header 0x%04x: %d", id, v))
		}
	}
	if opts.HeadersOnly {
		return lines
	}
	for _, w := range p.payload {
		lines = append(lines, fmt.Sprintf("%d", uint64(w)))
	}
	return lines
}
