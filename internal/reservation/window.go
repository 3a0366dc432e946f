package reservation

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
)

const (
	MinDuration     = 1
	MaxDuration     = 240
	DefaultDuration = 60

	dateLayout = "2006-01-02"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Window is the half-open interval [Start, End) a reservation occupies.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow resolves a calendar date, a 24-hour HH:MM time of day and a
// duration in minutes into absolute instants, interpreting the wall clock in
// loc.  The returned instants are in UTC.
func NewWindow(date, hhmm string, durationMin int, loc *time.Location) (Window, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return Window{}, err
	}
	m := clockPattern.FindStringSubmatch(hhmm)
	if m == nil {
		return Window{}, apperr.Wrap(apperr.CodeValidation, ErrInvalidTimeFormat, "time must match HH:MM (24-hour)").
			WithDetails(map[string]string{"time": hhmm})
	}
	if err := ValidateDuration(durationMin); err != nil {
		return Window{}, err
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
	return Window{
		Start: start.UTC(),
		End:   start.Add(time.Duration(durationMin) * time.Minute).UTC(),
	}, nil
}

// ParseDate parses YYYY-MM-DD as local midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.CodeValidation, ErrInvalidDate, "date must be YYYY-MM-DD").
			WithDetails(map[string]string{"date": date})
	}
	return day, nil
}

func ValidateDuration(durationMin int) error {
	if durationMin < MinDuration || durationMin > MaxDuration {
		return apperr.Wrap(apperr.CodeValidation, ErrInvalidDuration,
			fmt.Sprintf("duration must be between %d and %d minutes", MinDuration, MaxDuration)).
			WithDetails(map[string]int{"duration": durationMin})
	}
	return nil
}

// Overlaps reports whether [start, end) intersects w.  Touching boundaries do
// not overlap.
func (w Window) Overlaps(start, end time.Time) bool {
	return end.After(w.Start) && start.Before(w.End)
}
