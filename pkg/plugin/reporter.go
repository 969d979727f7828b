package plugin

import (
	"context"

	"firestige.xyz/speadcap/internal/core"
)

// Reporter delivers decoded packets to an external system.
type Reporter interface {
	Plugin
	Report(ctx context.Context, pkt core.Packet) error
	Flush(ctx context.Context) error
}
