// Package decoder implements SPEAD magic word, item pointer and packet decoding.
package decoder

import (
	"fmt"
	"strings"

	"firestige.xyz/speadcap/internal/core"
)

// Expectations are the optional checks applied while decoding. A nil field
// is not checked.
type Expectations struct {
	Version    *uint8
	Flavour    *string
	NumHeaders *uint16 // item pointers, excluding the magic word
	PayloadLen *int    // payload words
}

// Ptr returns a pointer to v, for filling Expectations.
func Ptr[T any](v T) *T { return &v }

// LengthPolicy decides what happens when a packet carries no 0x0004 header.
type LengthPolicy int

const (
	// LengthRequired rejects packets without a length header.
	LengthRequired LengthPolicy = iota
	// LengthOptional skips the length check when the header is absent.
	LengthOptional
)

func (p LengthPolicy) String() string {
	switch p {
	case LengthRequired:
		return "require"
	case LengthOptional:
		return "skip"
	default:
		return fmt.Sprintf("LengthPolicy(%d)", int(p))
	}
}

// ParseLengthPolicy parses "require" or "skip" (empty means require).
func ParseLengthPolicy(s string) (LengthPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "require", "required":
		return LengthRequired, nil
	case "skip", "optional":
		return LengthOptional, nil
	default:
		return LengthRequired, fmt.Errorf("%w: missing_length must be require or skip, got %q", core.ErrConfigInvalid, s)
	}
}
