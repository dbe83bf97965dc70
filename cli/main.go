package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arthurdotwork/relay/cmd"
	"github.com/arthurdotwork/relay/internal/infrastructure/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Config(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sig
		cancel()
	}()

	rootCmd := &cobra.Command{
		Use:          "relay",
		Short:        "relay development tooling",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "server",
		Short: "run a standalone development gateway",
		RunE: func(c *cobra.Command, _ []string) error {
			return cmd.Server(c.Context(), c)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "client",
		Short: "run an interactive gateway client",
		RunE: func(c *cobra.Command, _ []string) error {
			return cmd.Client(c.Context(), c)
		},
	})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
