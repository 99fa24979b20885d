package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goodtune/parkgate/internal/config"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export session history as CSV",
	Long:  `Export recorded parking sessions to a CSV file, newest first.`,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (required)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 10000, "Maximum number of sessions to export")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	sessions, err := store.Sessions().Recent(context.Background(), exportLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	f, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := []string{"id", "plate", "entry_time", "exit_time", "duration_minutes", "fee", "status", "confidence", "image_path"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, s := range sessions {
		exit := ""
		if s.ExitTime != nil {
			exit = s.ExitTime.Format(time.RFC3339)
		}
		confidence := ""
		if s.Confidence != nil {
			confidence = strconv.FormatFloat(*s.Confidence, 'f', 2, 64)
		}

		record := []string{
			strconv.FormatInt(s.ID, 10),
			s.Plate,
			s.EntryTime.Format(time.RFC3339),
			exit,
			strconv.Itoa(s.DurationMinutes),
			strconv.FormatFloat(s.Fee, 'f', 2, 64),
			string(s.Status),
			confidence,
			s.ImagePath,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Exported %d session(s) to %s\n", len(sessions), exportOutput)
	return nil
}
