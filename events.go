package subledger

import (
	"context"

	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/id"
)

// emit appends one event record to the store and forwards it to indexer
// plugins. Exactly one event is emitted per successful mutation; the
// append itself is best-effort because event content is advisory for
// off-chain observers, never load-bearing for ledger correctness.
func (l *Ledger) emit(ctx context.Context, typ event.Type, actor id.Principal, height uint64, payload map[string]any) {
	e := event.New(typ, actor, height, payload)

	if err := l.store.AppendEvent(ctx, e); err != nil {
		l.logger.Warn("event append failed",
			"type", typ,
			"actor", actor.String(),
			"error", err,
		)
	}

	l.plugins.EmitEvent(ctx, e)
}
