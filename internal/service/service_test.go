package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
	"warzone-tracker/internal/api"
	"warzone-tracker/internal/cache"
	"warzone-tracker/internal/config"
	"warzone-tracker/internal/domain"

	"github.com/rs/zerolog"
)

var testPlayer = domain.PlayerIdentity{Username: "TheHound#2293", Platform: domain.PlatformBattlenet}

type fakeTracker struct {
	history func(cursor string) (*api.HistoryResponse, error)
	detail  func(matchID string) (*api.MatchDetailResponse, error)
	profile func() (*api.ProfileResponse, error)

	historyCalls int
	detailCalls  int
	profileCalls int
}

func (f *fakeTracker) MatchHistory(ctx context.Context, player domain.PlayerIdentity, cursor string) (*api.HistoryResponse, error) {
	f.historyCalls++
	return f.history(cursor)
}

func (f *fakeTracker) MatchDetail(ctx context.Context, matchID string) (*api.MatchDetailResponse, error) {
	f.detailCalls++
	return f.detail(matchID)
}

func (f *fakeTracker) ProfileStats(ctx context.Context, player domain.PlayerIdentity) (*api.ProfileResponse, error) {
	f.profileCalls++
	return f.profile()
}

func fastBackoffs() backoffPolicy {
	return backoffPolicy{rateLimit: time.Millisecond, unavailable: time.Millisecond}
}

func testStore(t *testing.T) *cache.Store {
	t.Helper()
	cfg := &config.Config{CachePath: filepath.Join(t.TempDir(), "matches.json.gz")}
	return cache.NewStore(cfg, zerolog.Nop())
}

func histMatch(id, mode string, ts time.Time) api.HistoryMatch {
	var m api.HistoryMatch
	m.Attributes = api.HistoryMatchAttributes{ID: id, ModeID: mode}
	m.Metadata.Timestamp = ts.Format(time.RFC3339)
	m.Metadata.Duration.Value = 1800000
	return m
}

func historyPage(next string, matches ...api.HistoryMatch) *api.HistoryResponse {
	resp := &api.HistoryResponse{Data: &api.HistoryData{Matches: matches}}
	resp.Data.Metadata.Next = json.Number(next)
	return resp
}

func detailResp(id, mode string, ts time.Time, segs ...api.MatchSegment) *api.MatchDetailResponse {
	d := &api.MatchDetailData{Segments: segs}
	d.Attributes.ID = id
	d.Attributes.ModeID = mode
	d.Metadata.Timestamp = ts.Format(time.RFC3339)
	d.Metadata.Duration = 1800000
	return &api.MatchDetailResponse{Data: d}
}

func seg(team, name string, kd float64) api.MatchSegment {
	var s api.MatchSegment
	s.Attributes = api.SegmentAttributes{Team: team, PlatformUserIdentifier: name}
	if kd > 0 {
		s.Attributes.LifeTimeStats = &api.LifetimeBlock{KDRatio: kd}
	}
	s.Stats = api.SegmentStats{
		Kills:            &api.StatValue{Value: 4},
		Deaths:           &api.StatValue{Value: 3},
		DamageDone:       &api.StatValue{Value: 1500},
		TeamSurvivalTime: &api.StatValue{Value: 1100},
		Headshots:        &api.StatValue{Value: 1},
	}
	return s
}

func profileResp(kd float64) *api.ProfileResponse {
	d := &api.ProfileData{Segments: []api.ProfileSegment{{Type: "overview"}}}
	d.Segments[0].Stats.KDRatio = &api.StatValue{Value: kd}
	d.Segments[0].Stats.Kills = &api.StatValue{Value: 4200}
	d.Segments[0].Stats.Deaths = &api.StatValue{Value: 3900}
	d.Segments[0].Stats.Wins = &api.StatValue{Value: 17}
	d.Segments[0].Stats.GamesPlayed = &api.StatValue{Value: 600}
	return &api.ProfileResponse{Data: d}
}
