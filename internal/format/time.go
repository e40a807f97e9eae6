package format

import "time"

const (
	filetimeOffset = 116444736000000000 // 1601-01-01 to 1970-01-01 in 100ns units
	filetimeUnit   = 100
)

// FiletimeToTime converts a Windows FILETIME to UTC time. Values before the
// Unix epoch collapse to the epoch.
func FiletimeToTime(v uint64) time.Time {
	if v <= filetimeOffset {
		return time.Unix(0, 0).UTC()
	}
	ns := int64((v - filetimeOffset) * filetimeUnit)
	return time.Unix(0, ns).UTC()
}

// TimeToFiletime converts t to a Windows FILETIME. The zero time and anything
// before the Unix epoch encode as the epoch.
func TimeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return filetimeOffset
	}
	ns := t.UnixNano()
	if ns < 0 {
		ns = 0
	}
	return uint64(ns)/filetimeUnit + filetimeOffset
}
