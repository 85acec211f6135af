package common

import (
	"time"
)

func TimestampToTime(timestamp int64) time.Time {
	return time.Unix(timestamp, 0)
}

// SlotIndex returns the number of whole slots elapsed since genesis. Any instant
// before genesis belongs to slot 0.
func SlotIndex(genesis time.Time, slotDuration time.Duration, now time.Time) uint64 {
	if slotDuration <= 0 || !now.After(genesis) {
		return 0
	}
	return uint64(now.Sub(genesis) / slotDuration)
}

func SlotStart(genesis time.Time, slotDuration time.Duration, index uint64) time.Time {
	return genesis.Add(time.Duration(index) * slotDuration)
}
