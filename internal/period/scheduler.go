// Package period expands a (years, months, frequency) request into the
// ordered, non-overlapping periods the pipeline works on.
package period

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/frontier/internal/contracts"
)

// Generate expands years and months into periods.
// years and months are sets: duplicates are dropped and output is ascending.
// months is ignored unless frequency is monthly; nil or empty means all 12.
func Generate(years []int, months []int, frequency contracts.Frequency) ([]contracts.Period, error) {
	ys := uniqueSorted(years)
	if len(ys) == 0 {
		return nil, contracts.NewConfigurationError("years", "at least one year is required")
	}

	switch frequency {
	case contracts.FrequencyMonthly:
		ms, err := normalizeMonths(months)
		if err != nil {
			return nil, err
		}
		periods := make([]contracts.Period, 0, len(ys)*len(ms))
		for _, y := range ys {
			for _, m := range ms {
				periods = append(periods, Monthly(y, time.Month(m)))
			}
		}
		return periods, nil

	case contracts.FrequencyYearly:
		periods := make([]contracts.Period, 0, len(ys))
		for _, y := range ys {
			periods = append(periods, Yearly(y))
		}
		return periods, nil

	case contracts.FrequencyMultiyear:
		if len(ys) < 2 {
			return nil, contracts.NewConfigurationError("years", "multiyear frequency needs at least two distinct years, got %d", len(ys))
		}
		return []contracts.Period{Multiyear(ys[0], ys[len(ys)-1])}, nil

	default:
		_, err := contracts.ParseFrequency(string(frequency))
		return nil, err
	}
}

// Monthly returns [first day, last day] of a month
func Monthly(year int, month time.Month) contracts.Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	// day 0 of the next month is the last day of this one, across December too
	end := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return contracts.Period{
		Start:      start,
		End:        end,
		Frequency:  contracts.FrequencyMonthly,
		StorageKey: fmt.Sprintf("%04d%02d", year, int(month)),
	}
}

// Yearly returns [Jan 1, Dec 31] of a year
func Yearly(year int) contracts.Period {
	return contracts.Period{
		Start:      time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		Frequency:  contracts.FrequencyYearly,
		StorageKey: fmt.Sprintf("%04d", year),
	}
}

// Multiyear returns the half-open range [Jan 1 first, Jan 1 last+1).
// The storage key joins the start year and the end-date year.
func Multiyear(first, last int) contracts.Period {
	return contracts.Period{
		Start:      time.Date(first, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(last+1, time.January, 1, 0, 0, 0, 0, time.UTC),
		Frequency:  contracts.FrequencyMultiyear,
		StorageKey: fmt.Sprintf("%04d_%04d", first, last+1),
	}
}

// Find returns the period whose storage key matches
func Find(periods []contracts.Period, key string) (contracts.Period, bool) {
	for _, p := range periods {
		if p.StorageKey == key {
			return p, true
		}
	}
	return contracts.Period{}, false
}

func normalizeMonths(months []int) ([]int, error) {
	if len(months) == 0 {
		all := make([]int, 12)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}
	for _, m := range months {
		if m < 1 || m > 12 {
			return nil, contracts.NewConfigurationError("months", "month %d outside 1-12", m)
		}
	}
	return uniqueSorted(months), nil
}

func uniqueSorted(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
