package scheduledscan

import (
	"fmt"
	"time"

	"github.com/sentineld/avengine/internal/scanner"
)

// Kind identifies the calendar recurrence of a Config.
type Kind int

const (
	Disabled Kind = iota
	Daily
	Weekly
	Monthly
)

func (k Kind) String() string {
	switch k {
	case Disabled:
		return "DISABLED"
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	default:
		return "UNKNOWN"
	}
}

// Config describes when the scheduled scan fires.
type Config struct {
	Kind       Kind
	Hour       int // 0..23
	DayOfWeek  time.Weekday
	DayOfMonth int // 1..31
	Enabled    bool
	ScanKind   scanner.Kind
}

// validate rejects an invalid schedule at set-time so it never corrupts
// the in-memory config.
func (c Config) validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("hour %d out of range 0..23", c.Hour)
	}
	switch c.Kind {
	case Monthly:
		if c.DayOfMonth < 1 || c.DayOfMonth > 31 {
			return fmt.Errorf("day_of_month %d out of range 1..31", c.DayOfMonth)
		}
	case Weekly:
		if c.DayOfWeek < time.Sunday || c.DayOfWeek > time.Saturday {
			return fmt.Errorf("day_of_week %d out of range", c.DayOfWeek)
		}
	case Daily, Disabled:
	default:
		return fmt.Errorf("unknown schedule kind %d", c.Kind)
	}
	return nil
}
