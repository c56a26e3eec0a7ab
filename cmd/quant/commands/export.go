package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [period]",
	Short: "Write a period's performance table as flat CSV",
	Long: `Flattens the cached performance table of one period into CSV with one
row per (expected return, risk model, optimizer) and the Allocation_* and
Performance_* columns of every allocator.

The table must already be cached; run the pipeline first.

Example:
  go run ./cmd/quant export 2024
  go run ./cmd/quant export 2024-03 --out -`,
	Args: cobra.ExactArgs(1),
	RunE: exportPeriod,
}

var exportOut string

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file, - for stdout (default <OUTPUT_DIR>/<period>/performance.csv)")
}

func exportPeriod(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	period := args[0]

	s, err := openStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	key := artifact.Key{Period: period, Stage: contracts.StagePerformance, Method: artifact.AllMethods}
	if err := key.Validate(); err != nil {
		return err
	}

	var rows []contracts.OptimizationRow
	found, err := s.cache.Load(ctx, key, &rows)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no performance table cached for %s", period)
	}

	out := exportOut
	if out == "" {
		out = filepath.Join(s.env.OutputDir, period, "performance.csv")
	}

	var w io.Writer = os.Stdout
	if out != "-" {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	if err := writeTable(w, rows); err != nil {
		return err
	}
	if out != "-" {
		PrintSuccess(fmt.Sprintf("Exported %d rows to %s", len(rows), out))
	}
	return nil
}

// writeTable writes the flattened rows with a header line
func writeTable(w io.Writer, rows []contracts.OptimizationRow) error {
	header, records := contracts.FlattenRows(rows)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
