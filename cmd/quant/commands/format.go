package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// every command prints through these so the output looks the same
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string, fields [][2]string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, f := range fields {
		fmt.Printf("  %-10s: %s\n", f[0], f[1])
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintRunResult prints the per-period outcome table and the stage timings
func PrintRunResult(result *brain.RunResult) {
	widths := []int{12, 10, 6, 7, 12, 6}
	PrintTableHeader([]string{"PERIOD", "STATUS", "ROWS", "ERRORS", "INVOCATIONS", "HITS"}, widths)
	for _, p := range result.Periods {
		PrintTableRow([]string{
			p.Period.StorageKey,
			p.Status,
			fmt.Sprint(p.RowCount),
			fmt.Sprint(p.ErrorRows),
			fmt.Sprint(p.Invocations),
			fmt.Sprint(p.CacheHits),
		}, widths)
		if p.Reason != "" {
			fmt.Printf("   ↳ %s\n", p.Reason)
		}
	}

	if result.Timings != nil {
		fmt.Println()
		byStage := result.Timings.ByStage()
		for _, stage := range contracts.AllStages() {
			if d, ok := byStage[stage]; ok {
				PrintKeyValue(string(stage), d.Round(time.Millisecond).String(), 16)
			}
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Println()
		for _, w := range result.Warnings {
			PrintWarning(w)
		}
	}
}
