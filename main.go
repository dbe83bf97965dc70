package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	subscriber "github.com/arthurdotwork/relay/internal/adapters/primary/redis"
	"github.com/arthurdotwork/relay/internal/adapters/primary/ws"
	"github.com/arthurdotwork/relay/internal/adapters/secondary/auth"
	"github.com/arthurdotwork/relay/internal/adapters/secondary/bridge"
	"github.com/arthurdotwork/relay/internal/adapters/secondary/directory"
	"github.com/arthurdotwork/relay/internal/bus"
	"github.com/arthurdotwork/relay/internal/dispatch"
	"github.com/arthurdotwork/relay/internal/group"
	"github.com/arthurdotwork/relay/internal/hub"
	"github.com/arthurdotwork/relay/internal/infrastructure/log"
	"github.com/arthurdotwork/relay/internal/infrastructure/redis"
	"github.com/arthurdotwork/relay/internal/infrastructure/runner"
	"github.com/arthurdotwork/relay/internal/presence"
	"github.com/arthurdotwork/relay/internal/registry"
	"github.com/arthurdotwork/relay/internal/typing"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Config(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sig
		slog.DebugContext(ctx, "received signal, initiating shutdown")
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.ErrorContext(ctx, "error running gateway", "error", err)
	}
}

func run(ctx context.Context) error {
	redisClient := redis.NewClient(env("REDIS_ADDR", "localhost:6379"))

	// Two distinct channels: the ingress carries service-originated events
	// into the gateway, the egress carries gateway-originated events out.
	// Sharing one channel would feed the bridge's output back into the
	// subscriber.
	ingressChannel := env("REDIS_INGRESS_CHANNEL", "relay:events")
	egressChannel := env("REDIS_EGRESS_CHANNEL", "relay:gateway")

	eventBus := bus.New()
	sessionRegistry := registry.New()
	groupStore := group.NewStore()

	tracker := typing.NewTracker(typing.DefaultTTL, typing.DefaultMinInterval)
	tracker.Start(ctx)

	presenceService := presence.NewService(sessionRegistry)
	redisDirectory := directory.NewRedisDirectory(redisClient)

	dispatcher := dispatch.NewDispatcher(eventBus, sessionRegistry, groupStore, redisDirectory)
	dispatcher.Start()
	defer dispatcher.Stop()

	egress := bridge.NewBridge(redisClient, eventBus, egressChannel)
	egress.Start()
	defer egress.Stop()

	sessionHub := hub.NewHub(sessionRegistry, groupStore, tracker, presenceService, eventBus, redisDirectory)
	verifier := auth.NewRedisVerifier(redisClient)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", env("WS_PORT", "56000")),
		Handler: ws.NewServer(sessionHub, verifier).Handler(),
	}

	r := runner.New(ctx)
	r.Go(func(ctx context.Context) error {
		errCh := make(chan error, 1)

		go func() {
			slog.DebugContext(ctx, "starting gateway", "address", srv.Addr)

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("srv.ListenAndServe: %w", err)
				return
			}

			errCh <- nil
		}()

		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "context done, stopping gateway")
			return ctx.Err()
		case err := <-errCh:
			return err
		}
	})

	r.Go(func(ctx context.Context) error {
		sub := subscriber.NewSubscriber(redisClient, eventBus)
		errCh := make(chan error, 1)

		go func() {
			errCh <- sub.Subscribe(ctx, ingressChannel)
		}()

		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "context done, stopping subscriber")
			return ctx.Err()
		case err := <-errCh:
			if err != nil {
				slog.ErrorContext(ctx, "error subscribing", "error", err)
				return fmt.Errorf("sub.Subscribe: %w", err)
			}
		}

		slog.DebugContext(ctx, "subscriber stopped")
		return nil
	})

	if err := r.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "error running gateway", "error", err)
		return fmt.Errorf("runner.Wait: %w", err)
	}

	slog.DebugContext(ctx, "initiating gateway shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer shutdownCancel()

	sessionHub.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "error shutting down gateway", "error", err)
	}

	return nil
}

func env(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}
