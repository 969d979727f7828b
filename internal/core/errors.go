// Package core defines sentinel errors.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Decoders wrap them in a *DecodeError carrying the
// offending values; match with errors.Is.
var (
	// Magic word errors
	ErrMagicMismatch       = errors.New("spead: magic number mismatch")
	ErrReservedNonzero     = errors.New("spead: reserved field not zero")
	ErrVersionMismatch     = errors.New("spead: version mismatch")
	ErrFlavourMismatch     = errors.New("spead: flavour mismatch")
	ErrHeaderCountMismatch = errors.New("spead: header count mismatch")

	// Packet assembly errors
	ErrDuplicateHeaderID     = errors.New("spead: duplicate header id")
	ErrPayloadLengthMismatch = errors.New("spead: payload length mismatch")
	ErrLengthFieldMismatch   = errors.New("spead: payload does not match length header")
	ErrMissingLengthHeader   = errors.New("spead: length header 0x0004 missing")
	ErrTruncatedPacket       = errors.New("spead: truncated packet")

	// Configuration errors
	ErrConfigInvalid = errors.New("speadcap: invalid configuration")

	// Plugin errors
	ErrSourceNotFound   = errors.New("speadcap: source not found")
	ErrReporterNotFound = errors.New("speadcap: reporter not found")
)

// DecodeError reports which structural check failed and the values involved.
type DecodeError struct {
	Err   error  // one of the sentinel errors above
	Field string // e.g. "magic_number", "header 0x0004"
	Got   any
	Want  any
}

func (e *DecodeError) Error() string {
	if e.Want == nil {
		return fmt.Sprintf("%v: %s=%v", e.Err, e.Field, e.Got)
	}
	return fmt.Sprintf("%v: %s %v != %v", e.Err, e.Field, e.Got, e.Want)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorKind maps err to a stable snake_case label for metrics and logs.
// Unknown errors map to "other", nil to "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "other"
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrMagicMismatch, "magic_mismatch"},
	{ErrReservedNonzero, "reserved_nonzero"},
	{ErrVersionMismatch, "version_mismatch"},
	{ErrFlavourMismatch, "flavour_mismatch"},
	{ErrHeaderCountMismatch, "header_count_mismatch"},
	{ErrDuplicateHeaderID, "duplicate_header_id"},
	{ErrPayloadLengthMismatch, "payload_length_mismatch"},
	{ErrLengthFieldMismatch, "length_field_mismatch"},
	{ErrMissingLengthHeader, "missing_length_header"},
	{ErrTruncatedPacket, "truncated_packet"},
}
