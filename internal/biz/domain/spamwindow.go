package domain

import "time"

// AdmitResult is the outcome of a spam-guard check. Rejection is a
// normal classification outcome, not an error.
type AdmitResult int

const (
	AdmitAccepted AdmitResult = iota
	AdmitRejected
)

// Accepted checks if the message passed the spam guard
func (r AdmitResult) Accepted() bool {
	return r == AdmitAccepted
}

func (r AdmitResult) String() string {
	if r == AdmitAccepted {
		return "accepted"
	}
	return "rejected"
}

// SpamWindow holds the recent message timestamps for one (chat, user)
// pair. The window is pruned lazily on each check, so its length never
// exceeds what the configured time window implies.
type SpamWindow struct {
	times []time.Time
}

// Prune drops timestamps strictly older than cutoff.
func (w *SpamWindow) Prune(cutoff time.Time) {
	keep := w.times[:0]
	for _, ts := range w.times {
		if !ts.Before(cutoff) {
			keep = append(keep, ts)
		}
	}
	w.times = keep
}

// Record appends a timestamp to the window.
func (w *SpamWindow) Record(ts time.Time) {
	w.times = append(w.times, ts)
}

// Len returns the number of timestamps currently in the window
func (w *SpamWindow) Len() int {
	return len(w.times)
}

// LastActivity returns the newest recorded timestamp, or the zero time
// for an empty window.
func (w *SpamWindow) LastActivity() time.Time {
	if len(w.times) == 0 {
		return time.Time{}
	}
	return w.times[len(w.times)-1]
}
