package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/parkgate/internal/config"
	"github.com/goodtune/parkgate/internal/storage"
	"github.com/spf13/cobra"
)

var (
	sessionsLimit int
	sessionsStats bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show recent parking sessions",
	Long:  `Show the most recent parking sessions, or aggregate statistics with --stats.`,
	RunE:  runSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 10, "Number of sessions to show")
	sessionsCmd.Flags().BoolVar(&sessionsStats, "stats", false, "Show aggregate statistics instead of the session list")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	if sessionsStats {
		return printStats(ctx, store)
	}
	return printSessions(ctx, store, cfg.Fees.Currency)
}

func printSessions(ctx context.Context, store storage.Store, currency string) error {
	sessions, err := store.Sessions().Recent(ctx, sessionsLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(os.Stdout, "No sessions recorded.")
		return nil
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	bold.Fprintf(os.Stdout, "%-6s %-12s %-20s %-20s %8s %10s %-6s\n",
		"ID", "PLATE", "ENTRY", "EXIT", "MINUTES", "FEE", "STATUS")

	for _, s := range sessions {
		exit := "-"
		if s.ExitTime != nil {
			exit = s.ExitTime.Local().Format("2006-01-02 15:04:05")
		}
		fee := "-"
		if s.Status == storage.StatusOut {
			fee = fmt.Sprintf("%.2f %s", s.Fee, currency)
		}

		line := fmt.Sprintf("%-6d %-12s %-20s %-20s %8d %10s %-6s\n",
			s.ID, s.Plate,
			s.EntryTime.Local().Format("2006-01-02 15:04:05"),
			exit, s.DurationMinutes, fee, s.Status)

		if s.Status == storage.StatusIn {
			green.Fprint(os.Stdout, line)
		} else {
			fmt.Fprint(os.Stdout, line)
		}
	}

	cyan.Fprintf(os.Stdout, "\n%d session(s) shown.\n", len(sessions))
	return nil
}

func printStats(ctx context.Context, store storage.Store) error {
	stats, err := store.Sessions().Statistics(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Fprintln(os.Stdout, "Parking statistics")
	fmt.Fprintf(os.Stdout, "  Total sessions:   %d\n", stats.TotalCount)
	fmt.Fprintf(os.Stdout, "  Currently inside: %d\n", stats.OpenCount)
	fmt.Fprintf(os.Stdout, "  Unique plates:    %d\n", stats.UniquePlates)
	fmt.Fprintf(os.Stdout, "  Entries today:    %d\n", stats.TodayCount)
	if stats.AverageConfidence != nil {
		fmt.Fprintf(os.Stdout, "  Avg confidence:   %.2f\n", *stats.AverageConfidence)
	}
	return nil
}
