package scheduler

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// nextCronRun computes the next run time in unix milliseconds for a
// standard 5-field cron expression: minute hour day-of-month month
// day-of-week. Fields support numbers, *, */N, ranges (a-b, a-b/N), and
// lists (a,b,c). Returns 0 when the expression cannot be parsed.
func nextCronRun(expr, tz string, nowMs int64) int64 {
	if expr == "" {
		return 0
	}

	loc := time.Local
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		slog.Warn("Invalid cron expression", "expr", expr)
		return 0
	}

	minutes := parseCronField(fields[0], 0, 59)
	hours := parseCronField(fields[1], 0, 23)
	doms := parseCronField(fields[2], 1, 31)
	months := parseCronField(fields[3], 1, 12)
	dows := parseCronField(fields[4], 0, 6)

	if minutes == nil || hours == nil || doms == nil || months == nil || dows == nil {
		slog.Warn("Failed to parse cron expression", "expr", expr)
		return 0
	}

	t := time.UnixMilli(nowMs).In(loc)
	t = t.Truncate(time.Minute).Add(time.Minute)

	// Search up to 366 days ahead.
	end := t.Add(366 * 24 * time.Hour)
	for t.Before(end) {
		if months[int(t.Month())] && doms[t.Day()] && dows[int(t.Weekday())] &&
			hours[t.Hour()] && minutes[t.Minute()] {
			return t.UnixMilli()
		}

		// Skip non-matching months and days wholesale before stepping
		// by hours and minutes.
		if !months[int(t.Month())] {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !doms[t.Day()] || !dows[int(t.Weekday())] {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !hours[t.Hour()] {
			t = t.Truncate(time.Hour).Add(time.Hour)
			continue
		}
		t = t.Add(time.Minute)
	}

	return 0
}

// parseCronField parses one cron field into the set of matching values.
// Returns nil on invalid input.
func parseCronField(field string, min, max int) map[int]bool {
	result := make(map[int]bool)

	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)

		if strings.HasPrefix(part, "*/") {
			step, err := strconv.Atoi(part[2:])
			if err != nil || step <= 0 {
				return nil
			}
			for i := min; i <= max; i += step {
				result[i] = true
			}
			continue
		}

		if part == "*" {
			for i := min; i <= max; i++ {
				result[i] = true
			}
			continue
		}

		if strings.Contains(part, "-") {
			rangeParts := strings.SplitN(part, "/", 2)
			bounds := strings.SplitN(rangeParts[0], "-", 2)
			if len(bounds) != 2 {
				return nil
			}
			lo, err1 := strconv.Atoi(bounds[0])
			hi, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil || lo < min || hi > max {
				return nil
			}
			step := 1
			if len(rangeParts) == 2 {
				s, err := strconv.Atoi(rangeParts[1])
				if err != nil || s <= 0 {
					return nil
				}
				step = s
			}
			for i := lo; i <= hi; i += step {
				result[i] = true
			}
			continue
		}

		val, err := strconv.Atoi(part)
		if err != nil || val < min || val > max {
			return nil
		}
		result[val] = true
	}

	return result
}
