package domain

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformBattlenet  Platform = "battlenet"
	PlatformActivision Platform = "atvi"
	PlatformPSN        Platform = "psn"
)

// PlayerIdentity is immutable and doubles as a cache key.
type PlayerIdentity struct {
	Username string // "Name#1234"
	Platform Platform
}

func (p PlayerIdentity) Key() string {
	return string(p.Platform) + "/" + p.Username
}

// DetectPlatform guesses the network from the tag part of the username:
// short numeric tags are battle.net, longer ones are Activision IDs.
func DetectPlatform(username string) Platform {
	_, tag, ok := strings.Cut(username, "#")
	if ok && len(tag) <= 5 {
		return PlatformBattlenet
	}
	return PlatformActivision
}

// HistoryEntry is the lightweight pagination unit; Timestamp is in
// milliseconds since epoch, as returned by the history endpoint.
type HistoryEntry struct {
	MatchID   string
	Timestamp int64
}

// HourWindow restricts history to games whose local hour of day falls
// inside [Start, End], inclusive. Start == End disables the filter, and
// End < Start wraps past midnight.
type HourWindow struct {
	Start int
	End   int
}

func (w HourWindow) Disabled() bool {
	return w.Start == w.End
}

func (w HourWindow) Contains(hour int) bool {
	if w.Disabled() {
		return true
	}
	if w.End < w.Start {
		return hour >= w.Start || hour <= w.End
	}
	return hour >= w.Start && hour <= w.End
}

// StatMissing marks per-player stats absent from the source payload.
const StatMissing = -1

type PlayerStat struct {
	Name             string
	KDRatio          float64 // lifetime, 0 when the account hides stats
	Kills            float64
	Deaths           float64
	Damage           float64
	Headshots        float64
	TeamSurvivalTime float64
}

type MatchRecord struct {
	MatchID   string
	Mode      string
	Timestamp int64 // seconds since epoch, UTC
	Duration  int64 // seconds
	TeamKD    float64
	Teams     map[string][]PlayerStat
}

func (m MatchRecord) PlayerCount() int {
	n := 0
	for _, team := range m.Teams {
		n += len(team)
	}
	return n
}

type LifetimeStats struct {
	KDRatio     float64
	Kills       int
	Deaths      int
	Wins        int
	GamesPlayed int
	FetchedAt   time.Time
}

func (s LifetimeStats) Fresh(now time.Time, ttl time.Duration) bool {
	return !s.FetchedAt.IsZero() && now.Sub(s.FetchedAt) <= ttl
}

// MatchRow is one row of the tabular output consumed by the plotting
// side; ordering matches fetch order (newest first).
type MatchRow struct {
	ID        string
	Mode      string
	Timestamp int64
	Duration  int64
	TeamKD    float64
	Players   int
}

type MatchRows []MatchRow

// Slice returns rows [start:end), clamped to the available range, for
// picking a game interval out of the latest games.
func (r MatchRows) Slice(start, end int) MatchRows {
	if start < 0 {
		start = 0
	}
	if end > len(r) {
		end = len(r)
	}
	if start >= end {
		return MatchRows{}
	}
	return r[start:end]
}

func (r MatchRows) KDs() []float64 {
	kds := make([]float64, len(r))
	for i, row := range r {
		kds[i] = row.TeamKD
	}
	return kds
}
