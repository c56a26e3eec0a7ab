package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/frontier/internal/data"
	"github.com/wonny/frontier/pkg/database"
)

// dataCmd represents the data command
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Price data tools",
	Long: `Manages the PostgreSQL price table read by the postgres source.

Example:
  go run ./cmd/quant data import data/prices.csv
  go run ./cmd/quant data import data/prices.csv --table market.daily_prices`,
}

var dataImportCmd = &cobra.Command{
	Use:   "import [csv]",
	Short: "Load a price CSV into PostgreSQL",
	Long: `Creates the price table when missing and upserts every non-empty cell
of the CSV as one (ticker, trade_date, adj_close) row.`,
	Args: cobra.ExactArgs(1),
	RunE: runDataImport,
}

var dataTable string

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataImportCmd)

	dataImportCmd.Flags().StringVar(&dataTable, "table", "", "target table (default data.table or "+data.DefaultTable+")")
}

func runDataImport(cmd *cobra.Command, args []string) error {
	env, log, err := loadEnv()
	if err != nil {
		return err
	}

	table := dataTable
	if table == "" {
		if p, err := pipelineLoader(env)(); err == nil {
			table = p.Data.Table
		}
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	series, err := data.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, env)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	src, err := data.NewPostgresSource(db.Pool, table)
	if err != nil {
		return err
	}
	if err := src.EnsureSchema(ctx); err != nil {
		return err
	}

	start := time.Now()
	n, err := src.Import(ctx, series)
	if err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"rows":     n,
		"table":    data.Describe(src),
		"duration": time.Since(start),
	}).Info("Price import completed")
	PrintSuccess(fmt.Sprintf("Imported %d price rows", n))
	return nil
}
