package basictypes

import (
	"strconv"
	"time"
)

// UnixTimestamp is a number of whole seconds since the Unix epoch, in UTC.
type UnixTimestamp uint64

// UnixTimestampNow returns the current time truncated to seconds.
func UnixTimestampNow() UnixTimestamp {
	return UnixTimestampFromTime(time.Now())
}

// UnixTimestampFromTime converts a time. Times before the epoch are clamped to zero.
func UnixTimestampFromTime(t time.Time) UnixTimestamp {
	secs := t.Unix()
	if secs < 0 {
		return 0
	}
	return UnixTimestamp(secs)
}

// AsTime returns the timestamp as a UTC time.
func (t UnixTimestamp) AsTime() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Add returns the timestamp offset by a duration, truncated to whole seconds.
func (t UnixTimestamp) Add(d time.Duration) UnixTimestamp {
	return UnixTimestampFromTime(t.AsTime().Add(d))
}

func (t UnixTimestamp) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
