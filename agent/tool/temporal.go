package tool

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/reservation"
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// NormalizeDate resolves relative dates against now and returns YYYY-MM-DD.
// "next <weekday>" is the first such day strictly after today; an
// unrecognised "next ..." means one week out.
func NormalizeDate(raw string, now time.Time) (string, error) {
	s := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s {
	case "today", "tonight", "this evening":
		return today.Format(reservation.DateLayout), nil
	case "tomorrow", "tomorrow night", "tomorrow evening":
		return today.AddDate(0, 0, 1).Format(reservation.DateLayout), nil
	case "day after tomorrow", "the day after tomorrow":
		return today.AddDate(0, 0, 2).Format(reservation.DateLayout), nil
	}

	if rest, ok := strings.CutPrefix(s, "next"); ok {
		if wd, ok := weekdays[strings.TrimSpace(rest)]; ok {
			return nextWeekday(today, wd).Format(reservation.DateLayout), nil
		}
		return today.AddDate(0, 0, 7).Format(reservation.DateLayout), nil
	}
	if wd, ok := weekdays[s]; ok {
		return nextWeekday(today, wd).Format(reservation.DateLayout), nil
	}

	if t, err := time.Parse(reservation.DateLayout, s); err == nil {
		return t.Format(reservation.DateLayout), nil
	}
	return "", fmt.Errorf("%w: date %q must be YYYY-MM-DD, today, tomorrow or next <weekday>", contractx.ErrValidation, raw)
}

func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

// NormalizeTime converts 12-hour forms (7pm, 7:30 pm, 12am) and 24-hour
// forms (19:00, 19:00:00) to HH:MM. Already-normalised input is unchanged.
func NormalizeTime(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")

	switch s {
	case "noon", "midday":
		return "12:00", nil
	case "midnight":
		return "00:00", nil
	}

	meridiem := ""
	for _, suffix := range []string{"am", "pm"} {
		if body, ok := strings.CutSuffix(s, suffix); ok {
			meridiem, s = suffix, body
			break
		}
	}

	hour, minute, err := splitClock(s)
	if err != nil {
		return "", fmt.Errorf("%w: time %q must look like 19:00 or 7pm", contractx.ErrValidation, raw)
	}

	switch meridiem {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return "", fmt.Errorf("%w: time %q has an hour outside 1-12", contractx.ErrValidation, raw)
		}
		if meridiem == "pm" && hour != 12 {
			hour += 12
		}
		if meridiem == "am" && hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return "", fmt.Errorf("%w: time %q has an hour outside 0-23", contractx.ErrValidation, raw)
		}
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

func splitClock(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("bad clock %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 {
		return 0, 0, fmt.Errorf("bad hour %q", parts[0])
	}
	minute := 0
	if len(parts) >= 2 {
		if len(parts[1]) != 2 {
			return 0, 0, fmt.Errorf("bad minute %q", parts[1])
		}
		minute, err = strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return 0, 0, fmt.Errorf("bad minute %q", parts[1])
		}
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || len(parts[2]) != 2 || sec < 0 || sec > 59 {
			return 0, 0, fmt.Errorf("bad second %q", parts[2])
		}
	}
	return hour, minute, nil
}
