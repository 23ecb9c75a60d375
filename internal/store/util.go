package store

import "time"

func unixToTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// timeToUnixPtr converts t to a SQL arg: NULL for a nil/zero pointer,
// otherwise its Unix seconds. Used for the nullable assignment timestamps
// and the always-present AssignedAt (passed as &ta.AssignedAt).
func timeToUnixPtr(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}
