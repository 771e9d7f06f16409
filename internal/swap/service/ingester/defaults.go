package ingester

import "time"

const (
	defaultWorkerCount = 8

	// Blocks fetched ahead per follower iteration.
	defaultFetchBatch = 32

	// Further behind the node than this, new orders are ingested unverified.
	defaultCatchUpThreshold int32 = 144

	defaultHistoryBlocks int32 = 10_000
	defaultJournalDepth  int32 = 1000

	sleepDuration      = 5 * time.Second
	maxBackoffDuration = 1 * time.Minute
	idleSleepDuration  = 2 * time.Second
	mempoolInterval    = 2 * time.Second
	pruneInterval      = 60 * time.Second
)
