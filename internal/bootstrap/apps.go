package bootstrap

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/banktrail/ingestor/internal/adapters/rabbitmq"
	"github.com/banktrail/ingestor/internal/platform/launcher"
	"github.com/banktrail/ingestor/internal/platform/mmongo"
	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/internal/platform/mredis"
)

// httpApp adapts the fiber server to launcher.App. It holds the Postgres,
// Redis and Mongo connections but does not close them when the server stops.
type httpApp struct {
	app       *fiber.App
	addr      string
	conn      *mpostgres.PostgresConnection
	redisConn *mredis.RedisConnection
	mongoConn *mmongo.MongoConnection
}

func (h *httpApp) Run(l *launcher.Launcher) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.app.Listen(h.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		l.Logger.Info("httpApp: shutdown signal received, draining")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := h.app.ShutdownWithContext(shutdownCtx); err != nil {
			l.Logger.Errorf("httpApp: shutdown error: %v", err)
		}

		return <-errCh
	}
}

// consumerApp adapts rabbitmq.Consumer to launcher.App. It runs until the
// process receives a shutdown signal, per §4.7's async health aggregation
// path.
type consumerApp struct {
	consumer *rabbitmq.Consumer
}

func (a *consumerApp) Run(l *launcher.Launcher) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.consumer.Start(ctx)
}
