package scheduledscan

import "time"

// nextFire computes the next calendar trigger time for cfg given the
// local time now, applying whichever of the three recurrence rules
// cfg.Kind selects. The bool return is false for a Disabled schedule,
// which never fires.
func nextFire(cfg Config, now time.Time) (time.Time, bool) {
	switch cfg.Kind {
	case Daily:
		return nextDaily(cfg, now), true
	case Weekly:
		return nextWeekly(cfg, now), true
	case Monthly:
		return nextMonthly(cfg, now), true
	default:
		return time.Time{}, false
	}
}

func atHour(base time.Time, hour int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, 0, 0, 0, base.Location())
}

func nextDaily(cfg Config, now time.Time) time.Time {
	today := atHour(now, cfg.Hour)
	if today.After(now) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

func nextWeekly(cfg Config, now time.Time) time.Time {
	today := atHour(now, cfg.Hour)
	daysUntil := (int(cfg.DayOfWeek) - int(now.Weekday()) + 7) % 7
	if daysUntil == 0 {
		if today.After(now) {
			return today
		}
		return today.AddDate(0, 0, 7)
	}
	return today.AddDate(0, 0, daysUntil)
}

func nextMonthly(cfg Config, now time.Time) time.Time {
	thisMonth := time.Date(now.Year(), now.Month(), cfg.DayOfMonth, cfg.Hour, 0, 0, 0, now.Location())
	if thisMonth.After(now) {
		return thisMonth
	}
	// time.Date normalizes an out-of-range month back into a valid
	// year/month, so this also handles the December-to-January wrap.
	return time.Date(now.Year(), now.Month()+1, cfg.DayOfMonth, cfg.Hour, 0, 0, 0, now.Location())
}
