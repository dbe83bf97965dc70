package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arthurdotwork/relay/internal/adapters/primary/ws"
	"github.com/arthurdotwork/relay/internal/adapters/secondary/auth"
	"github.com/arthurdotwork/relay/internal/adapters/secondary/directory"
	"github.com/arthurdotwork/relay/internal/bus"
	"github.com/arthurdotwork/relay/internal/dispatch"
	"github.com/arthurdotwork/relay/internal/group"
	"github.com/arthurdotwork/relay/internal/hub"
	"github.com/arthurdotwork/relay/internal/presence"
	"github.com/arthurdotwork/relay/internal/registry"
	"github.com/arthurdotwork/relay/internal/typing"
	"github.com/spf13/cobra"
)

// Server runs a standalone development gateway: no redis, every user is
// authorized everywhere and tokens are of the form "<user-id>:<user-name>".
func Server(ctx context.Context, cmd *cobra.Command) error {
	eventBus := bus.New()
	sessionRegistry := registry.New()
	groupStore := group.NewStore()

	tracker := typing.NewTracker(typing.DefaultTTL, typing.DefaultMinInterval)
	tracker.Start(ctx)

	presenceService := presence.NewService(sessionRegistry)

	dispatcher := dispatch.NewDispatcher(eventBus, sessionRegistry, groupStore, directory.PermitAll{})
	dispatcher.Start()
	defer dispatcher.Stop()

	sessionHub := hub.NewHub(sessionRegistry, groupStore, tracker, presenceService, eventBus, directory.PermitAll{})

	srv := &http.Server{
		Addr:    ":56001",
		Handler: ws.NewServer(sessionHub, auth.StaticVerifier{}).Handler(),
	}

	sink := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "error serving", "error", err)
			sink <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.DebugContext(ctx, "initiating server shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer shutdownCancel()

		sessionHub.Shutdown(shutdownCtx)

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "error shutting down server", "error", err)
		}
	case err := <-sink:
		return fmt.Errorf("srv.ListenAndServe: %w", err)
	}

	return nil
}
