package similarity

import (
	"math"
	"time"
)

// DateWindowDays is the distance at which date proximity reaches zero.
const DateWindowDays = 30

// DaysApart is the absolute number of UTC calendar days between a and b.
func DaysApart(a, b time.Time) int {
	da := civil(a)
	db := civil(b)
	d := da.Sub(db).Hours() / 24
	return int(math.Round(math.Abs(d)))
}

func civil(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateProximity decays linearly from 1 on the same day to 0 at
// DateWindowDays apart. An unset date scores 0.
func DateProximity(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	return math.Max(0, 1-float64(DaysApart(a, b))/DateWindowDays)
}
