package value

import "time"

// Ticks is a 64-bit signed count of 100-nanosecond units elapsed since
// the fixed epoch 0001-01-01T00:00:00Z, the proleptic Gregorian
// calendar's start of year 1. The epoch is part of the wire contract:
// every encoded DateTime is interpreted against it.
type Ticks int64

const ticksPerSecond = 10_000_000

// epoch is the instant Ticks(0) represents.
var epoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// FromTime converts a time.Time to Ticks relative to the fixed epoch.
func FromTime(t time.Time) Ticks {
	d := t.UTC().Sub(epoch)
	return Ticks(d.Nanoseconds() / 100)
}

// ToTime converts Ticks back to a time.Time in UTC.
func (t Ticks) ToTime() time.Time {
	return epoch.Add(time.Duration(int64(t) * 100))
}
