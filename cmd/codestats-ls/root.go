// ABOUTME: Root Cobra command for codestats-ls; by default serves LSP on stdio.
// ABOUTME: Sets up lifecycle hooks for config loading and pulse cache initialization.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389-research/codestats-ls/internal/config"
	"github.com/2389-research/codestats-ls/internal/lsp"
	"github.com/2389-research/codestats-ls/internal/pulse"
	"github.com/2389-research/codestats-ls/internal/storage"
	"github.com/2389-research/codestats-ls/internal/version"
)

var globalConfig *config.Config
var globalStore *storage.PulseSQLiteStore

var rootCmd = &cobra.Command{
	Use:     version.Name,
	Short:   "Code::Stats language server",
	Version: version.Version,
	Long: `Language server that counts your keystrokes as Code::Stats XP.

Run it from your editor as a language server for every file type. Each
document change earns XP for the file's language; XP is sent to Code::Stats
in pulses, and pulses that cannot be delivered are cached on disk and
retried until they are.

The API token is read from CODE_STATS_API_TOKEN, the config file, or the
config.toml shared with other Code::Stats plugins. Run 'codestats-ls setup'
to configure it interactively.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "setup" {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		globalConfig = cfg

		cacheDir, err := cfg.GetCacheDir()
		if err != nil {
			return fmt.Errorf("failed to resolve cache dir: %w", err)
		}
		store, err := storage.NewPulseSQLiteStore(cacheDir)
		if err != nil {
			return fmt.Errorf("failed to open pulse cache: %w", err)
		}
		globalStore = store

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if globalStore != nil {
			_ = globalStore.Close()
			globalStore = nil
		}
		return nil
	},
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := globalConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries protocol frames only; logs go to the editor and stderr.
	conn := lsp.NewConn(os.Stdin, os.Stdout)
	logger := slog.New(lsp.NewLogHandler(conn, os.Stderr, globalConfig.LogLevel()))

	client, err := newRemoteClient()
	if err != nil {
		return err
	}

	service := pulse.NewService(client, globalStore, logger, pulse.DefaultOptions())
	server := lsp.NewServer(conn, service, logger, lsp.WithClientInfo(client.SetClientInfo))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return service.Run(gctx)
	})
	g.Go(func() error {
		// The session is over once the editor leaves; stop the pulse loops too.
		defer cancel()
		return server.Serve(gctx)
	})
	return g.Wait()
}

// newRemoteClient builds the delivery client from the loaded config.
func newRemoteClient() (*storage.RemoteClient, error) {
	client, err := storage.NewRemoteClient(globalConfig.GetAPIURL(), globalConfig.API.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// newCLILogger returns the logger used by subcommands other than the server.
func newCLILogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: globalConfig.LogLevel()}))
}
