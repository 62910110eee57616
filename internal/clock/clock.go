package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// SinceMillis returns whole milliseconds elapsed from start.
func SinceMillis(start time.Time) uint64 {
	if start.IsZero() {
		return 0
	}
	elapsed := Now().Sub(start)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / time.Millisecond)
}

// TimeVal splits t into seconds and the microsecond remainder.
func TimeVal(t time.Time) (sec uint64, usec uint64) {
	micros := uint64(t.UnixMicro())
	return micros / 1_000_000, micros % 1_000_000
}
