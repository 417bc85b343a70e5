// ABOUTME: CLI commands for the pulse cache.
// ABOUTME: Provides list, flush, and clear subcommands for pulses awaiting delivery.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389-research/codestats-ls/internal/pulse"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached pulses",
	Long:  "Inspect, retry, or delete XP pulses that could not be delivered to Code::Stats.",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached pulses",
	Long:  "List every pulse waiting in the cache, oldest first.",
	RunE:  runCacheList,
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Send cached pulses now",
	Long:  "Make one delivery attempt for every cached pulse. Delivered pulses are removed.",
	RunE:  runCacheFlush,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached pulses",
	Long:  "Delete every cached pulse without sending it. The XP they carry is lost.",
	RunE:  runCacheClear,
}

var cacheClearYes bool

func init() {
	cacheClearCmd.Flags().BoolVarP(&cacheClearYes, "yes", "y", false, "Confirm deleting the cache")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheFlushCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	pulses, err := globalStore.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list cached pulses: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(pulses) == 0 {
		fmt.Fprintln(out, "No cached pulses.")
		return nil
	}

	var total uint64
	for _, p := range pulses {
		fmt.Fprintf(out, "%s  %s  %s\n", p.CodedAt, p.ID, p.Summary())
		total += p.TotalXP()
	}
	fmt.Fprintf(out, "\n%d cached pulse(s), %d XP in total. Cache: %s\n", len(pulses), total, globalStore.Path())
	return nil
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	if err := globalConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := newRemoteClient()
	if err != nil {
		return err
	}

	flusher := pulse.NewFlusher(client, globalStore, newCLILogger(), pulse.DefaultOptions().FlushPacing)
	start := time.Now()
	sent, err := flusher.Flush(ctx)
	if err != nil {
		return fmt.Errorf("flush stopped after %d pulse(s): %w", sent, err)
	}

	remaining, err := globalStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count cached pulses: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %d cached pulse(s) in %s. %d remaining.\n",
		sent, time.Since(start).Round(time.Millisecond), remaining)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	if !cacheClearYes {
		return fmt.Errorf("refusing to delete cached pulses without --yes")
	}

	count, err := globalStore.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count cached pulses: %w", err)
	}
	if err := globalStore.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear cached pulses: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached pulse(s).\n", count)
	return nil
}
