package sla

import "time"

// ZoneOffsets maps supported timezone names to a constant whole-hour UTC
// offset. This is a deliberate simplification: period boundaries use the same
// offset year-round instead of DST-aware calendar rules. Unknown names are
// rejected at policy validation time.
var ZoneOffsets = map[string]int{
	"UTC":                 0,
	"Europe/London":       0,
	"Europe/Berlin":       1,
	"Europe/Paris":        1,
	"Europe/Madrid":       1,
	"Europe/Helsinki":     2,
	"America/New_York":    -5,
	"America/Chicago":     -6,
	"America/Denver":      -7,
	"America/Los_Angeles": -8,
	"America/Sao_Paulo":   -3,
	"Asia/Dubai":          4,
	"Asia/Singapore":      8,
	"Asia/Tokyo":          9,
	"Australia/Sydney":    10,
}

// ZoneOffset returns the fixed hour offset for a timezone name.
func ZoneOffset(name string) (int, bool) {
	off, ok := ZoneOffsets[name]
	return off, ok
}

// MonthBounds returns the [start-of-month, start-of-next-month) period
// containing at, computed in a fixed zone of offsetHours. Both bounds are
// returned in UTC.
func MonthBounds(at time.Time, offsetHours int) (time.Time, time.Time) {
	loc := time.FixedZone("fixed", offsetHours*3600)
	local := at.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	return start.UTC(), end.UTC()
}
