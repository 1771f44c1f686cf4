package engine

import "time"

// Adaptive retry and liveness-eviction constants, mirrored exactly
// from the reference implementation's tuning values.
const (
	// chunkRetryLimit caps attempts on a single chunk lease before it's
	// requeued for another worker to try fresh.
	chunkRetryLimit = 5

	// adaptiveRetryThreshold: once a chunk's retry count reaches this,
	// speed enforcement is disabled for it — a struggling chunk should
	// be allowed to limp to completion rather than be killed forever.
	adaptiveRetryThreshold = 3

	// speedEnforcementThresholdKBs is the minimum sustained throughput
	// before a chunk attempt is abandoned as too slow to be worth the
	// connection.
	speedEnforcementThresholdKBs = 300.0

	// speedEnforcementDelay is how long a slow attempt is given before
	// the threshold above is actually checked.
	speedEnforcementDelay = 3 * time.Second

	// retryBackoffUnit scales linearly with the attempt ordinal:
	// attempt 1 waits 200ms, attempt 2 waits 400ms, and so on.
	retryBackoffUnit = 200 * time.Millisecond

	// queuePollInterval is how long an idle worker sleeps before
	// re-checking the queue when it's empty but the download isn't done.
	queuePollInterval = 100 * time.Millisecond

	// monitorInterval is how often the monitor syncs live byte counts
	// into registered metadata.
	monitorInterval = 1 * time.Second

	// writerBufferSize matches the reference implementation's buffered
	// writer capacity per worker.
	writerBufferSize = 128 * 1024
)
