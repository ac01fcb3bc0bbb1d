package benefits

import (
	"time"

	"cardperks-go/internal/models"
)

// oneTimeStart/oneTimeEnd bound the single period of a one_time benefit.
// The window is effectively "forever": one accumulation bucket per account.
var (
	oneTimeStart = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	oneTimeEnd   = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// PeriodBounds derives the current accounting window for a cadence at the
// given instant. Windows are half-open [start, end): a period is open while
// now < end. Unknown cadences fall back to monthly, the most common case.
func PeriodBounds(cadence string, now time.Time) (time.Time, time.Time) {
	y, m, _ := now.Date()
	loc := now.Location()

	switch cadence {
	case models.CadenceQuarterly:
		qStart := time.Month(((int(m)-1)/3)*3 + 1)
		start := time.Date(y, qStart, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 3, 0)
	case models.CadenceSemiAnnual:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		if m >= time.July {
			start = time.Date(y, time.July, 1, 0, 0, 0, 0, loc)
		}
		return start, start.AddDate(0, 6, 0)
	case models.CadenceAnnual:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	case models.CadenceOneTime:
		return oneTimeStart, oneTimeEnd
	default: // monthly
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	}
}
