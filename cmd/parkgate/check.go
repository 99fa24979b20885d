package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/parkgate/internal/config"
	"github.com/goodtune/parkgate/internal/plate"
	"github.com/goodtune/parkgate/internal/storage"
	"github.com/spf13/cobra"
)

var checkMinutes int

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check engine decisions interactively",
	Long:  `Check how ParkGate would treat a given input, without touching storage or gates.`,
}

var checkPlateCmd = &cobra.Command{
	Use:   "plate TEXT",
	Short: "Check plate normalization and fee preview",
	Long:  `Normalize and validate a raw plate reading, and preview the fee for a stay length.`,
	Example: `  parkgate check plate "abc-1234"
  parkgate check plate --minutes 90 "W 123 XY"`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckPlate,
}

func init() {
	checkPlateCmd.Flags().IntVar(&checkMinutes, "minutes", 0, "Preview the fee for a stay of this many minutes")
	checkCmd.AddCommand(checkPlateCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckPlate(cmd *cobra.Command, args []string) error {
	raw := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	normalized := plate.Normalize(raw)
	fmt.Fprintf(os.Stdout, "Raw reading:  %q\n", raw)
	fmt.Fprintf(os.Stdout, "Normalized:   %q\n", normalized)

	if !plate.IsValid(normalized) {
		red.Fprintln(os.Stdout, "Result:       DROPPED (unreadable plate)")
		return nil
	}
	green.Fprintln(os.Stdout, "Result:       ACCEPTED")

	if checkMinutes > 0 {
		fees := storage.FeeSchedule{
			Tier1:           cfg.Fees.Tier1,
			Tier2:           cfg.Fees.Tier2,
			BoundaryMinutes: cfg.Fees.BoundaryMinutes,
			Currency:        cfg.Fees.Currency,
		}
		fmt.Fprintf(os.Stdout, "Fee preview:  %.2f %s for a %d minute stay\n",
			fees.Fee(checkMinutes), fees.Currency, checkMinutes)
	}

	return nil
}
