package session

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Ticker drives the session's coalesced clock event. One loop replaces the
// per-consumer polling intervals: the calendar, ledger and reset check all
// run off the same tick.
type Ticker struct {
	session  *Session
	interval time.Duration
}

func NewTicker(s *Session) *Ticker {
	return &Ticker{session: s, interval: time.Second}
}

// StartTicker wires the tick loop to the fx lifecycle.
func StartTicker(lc fx.Lifecycle, t *Ticker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go t.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (t *Ticker) run(ctx context.Context) {
	zap.L().Info("[Ticker] session clock started", zap.Duration("interval", t.interval))

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.session.Tick(ctx, t.session.Now())
		case <-ctx.Done():
			zap.L().Info("[Ticker] session clock stopped")
			return
		}
	}
}
