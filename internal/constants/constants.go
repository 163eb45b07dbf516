package constants

import "time"

const (
	// RequestDelay is slept before every outbound API call; the tracker
	// bans aggressive clients, so one in-flight request with this gap is
	// the only safe schedule.
	RequestDelay = 2 * time.Second

	RateLimitBackoff   = 10 * time.Minute
	UnavailableBackoff = 30 * time.Second

	LifetimeStatsTTL = 24 * time.Hour
)

const (
	// HistoryPageSize is fixed server-side; a shorter raw page signals
	// end of history.
	HistoryPageSize = 20
)

const (
	ExternalAPITimeout = 30 * time.Second
)

const (
	DBBatchSize = 100
)
