package contracts

import (
	"fmt"
	"path/filepath"
	"time"
)

// Frequency controls how a schedule request is split into periods
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyMultiyear Frequency = "multiyear"
)

// ParseFrequency validates a frequency string
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case FrequencyMonthly, FrequencyYearly, FrequencyMultiyear:
		return f, nil
	default:
		return "", NewConfigurationError("frequency", "unknown frequency %q (want monthly, yearly or multiyear)", s)
	}
}

// Period is one unit of pipeline work and caching.
// Multiyear periods are half-open: End is excluded.
type Period struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Frequency  Frequency `json:"frequency"`
	StorageKey string    `json:"storage_key"`
}

// HalfOpen reports whether End is excluded from the period
func (p Period) HalfOpen() bool {
	return p.Frequency == FrequencyMultiyear
}

// LastDay returns the last date that belongs to the period
func (p Period) LastDay() time.Time {
	if p.HalfOpen() {
		return p.End.AddDate(0, 0, -1)
	}
	return p.End
}

// Contains reports whether t falls inside the period
func (p Period) Contains(t time.Time) bool {
	if t.Before(p.Start) {
		return false
	}
	if p.HalfOpen() {
		return t.Before(p.End)
	}
	return !t.After(p.End)
}

// Dir returns the period's storage directory under root
func (p Period) Dir(root string) string {
	return filepath.Join(root, p.StorageKey)
}

func (p Period) String() string {
	closing := "]"
	if p.HalfOpen() {
		closing = ")"
	}
	return fmt.Sprintf("%s[%s, %s%s", p.StorageKey, p.Start.Format(DateLayout), p.End.Format(DateLayout), closing)
}

// DateLayout is the canonical date format used in keys, files and logs
const DateLayout = "2006-01-02"
