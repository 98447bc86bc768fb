package actors

const (
	// SignalChanLen is the capacity of every box's runtime-request queue.
	// Control signals are rare and small; this does not scale with the
	// data queue capacity.
	SignalChanLen = 4
)
