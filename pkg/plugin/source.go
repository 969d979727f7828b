package plugin

import (
	"context"

	"firestige.xyz/speadcap/internal/core"
)

// Source produces word sequences, one per candidate packet.
type Source interface {
	Plugin
	Read(ctx context.Context) ([][]core.Word, error)
}
