package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/frontier/internal/data"
	"github.com/wonny/frontier/internal/pricegen"
)

// sampleDataCmd represents the sample-data command
var sampleDataCmd = &cobra.Command{
	Use:   "sample-data",
	Short: "Generate a synthetic price CSV",
	Long: `Writes deterministic synthetic daily prices (weekdays only) in the
CSV layout the csv source reads: a Date column, then one column per ticker.

Example:
  go run ./cmd/quant sample-data
  go run ./cmd/quant sample-data --from 2020 --to 2024 --tickers AAPL,MSFT,JNJ --out data/prices.csv`,
	RunE: runSampleData,
}

var (
	sampleFrom    int
	sampleTo      int
	sampleSeed    uint64
	sampleTickers []string
	sampleOut     string
)

func init() {
	rootCmd.AddCommand(sampleDataCmd)

	sampleDataCmd.Flags().IntVar(&sampleFrom, "from", 2022, "first year")
	sampleDataCmd.Flags().IntVar(&sampleTo, "to", 2024, "last year")
	sampleDataCmd.Flags().Uint64Var(&sampleSeed, "seed", 42, "random seed")
	sampleDataCmd.Flags().StringSliceVar(&sampleTickers, "tickers", []string{"AAPL", "MSFT", "AMZN", "JNJ", "XOM", "JPM"}, "ticker columns")
	sampleDataCmd.Flags().StringVar(&sampleOut, "out", "data/prices.csv", "output file")
}

func runSampleData(cmd *cobra.Command, args []string) error {
	if sampleTo < sampleFrom {
		return fmt.Errorf("--to %d is before --from %d", sampleTo, sampleFrom)
	}
	if len(sampleTickers) == 0 {
		return fmt.Errorf("--tickers is empty")
	}

	series := pricegen.Generate(pricegen.Options{
		Tickers: sampleTickers,
		Start:   time.Date(sampleFrom, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(sampleTo, time.December, 31, 0, 0, 0, 0, time.UTC),
		Seed:    sampleSeed,
	})

	if err := os.MkdirAll(filepath.Dir(sampleOut), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(sampleOut)
	if err != nil {
		return fmt.Errorf("create %s: %w", sampleOut, err)
	}
	defer f.Close()

	if err := data.WriteCSV(f, series); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Wrote %d rows × %d tickers to %s", len(series.Dates), len(series.Tickers), sampleOut))
	return nil
}
