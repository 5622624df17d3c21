package bus

import (
	"context"

	"shiftops-controlplane/pkg/config"
	"shiftops-controlplane/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("bus",
	fx.Provide(
		NewHub,
		ProvideBus,
	),
	fx.Invoke(Run),
)

func ProvideBus(cfg *config.Config, hub *Hub, rdb *redis.Client) *Bus {
	channel := cfg.Sync.Channel
	if channel == "" {
		channel = "dashboard"
	}
	return New(
		hub.Transport(),
		NewRedisTransport(rdb, rediskey.BuildSyncChannelKey(channel)),
	)
}

func Run(lc fx.Lifecycle, b *Bus) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := b.Start(ctx); err != nil {
				return err
			}
			zap.L().Info("[Bus] broadcast channels subscribed")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return b.Close()
		},
	})
}
