package service

import (
	"context"
	"math"
	"time"
	"warzone-tracker/internal/api"
	"warzone-tracker/internal/cache"
	"warzone-tracker/internal/config"
	"warzone-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type MatchService struct {
	tracker   TrackerAPI
	store     *cache.Store
	precision int
	logger    zerolog.Logger
	policy    backoffPolicy
}

func NewMatchService(tracker TrackerAPI, store *cache.Store, cfg *config.Config, logger zerolog.Logger) *MatchService {
	return &MatchService{
		tracker:   tracker,
		store:     store,
		precision: cfg.KDPrecision,
		logger:    logger,
		policy:    defaultBackoffs(),
	}
}

// FetchMatch returns the match record, from cache when possible. A
// cached match is returned unchanged; match results never change after
// the fact, so cached entries are never re-fetched or re-validated.
func (s *MatchService) FetchMatch(ctx context.Context, matchID string) (domain.MatchRecord, error) {
	if rec, ok := s.store.Match(matchID); ok {
		s.logger.Debug().Str("match_id", matchID).Msg("match found in cache")
		return rec, nil
	}

	resp, err := fetchRetry(ctx, s.store, s.logger, s.policy, "match detail", func(ctx context.Context) (*api.MatchDetailResponse, error) {
		return s.tracker.MatchDetail(ctx, matchID)
	})
	if err != nil {
		return domain.MatchRecord{}, err
	}

	rec := s.buildRecord(resp.Data)

	s.store.PutMatch(rec)
	if err := s.store.Flush(); err != nil {
		s.logger.Error().Err(err).Str("match_id", matchID).Msg("cache flush after match fetch failed")
	}

	s.logger.Info().Str("match_id", rec.MatchID).Float64("team_kd", rec.TeamKD).Msg("match fetched")
	return rec, nil
}

func (s *MatchService) buildRecord(data *api.MatchDetailData) domain.MatchRecord {
	teams := make(map[string][]domain.PlayerStat)
	for _, seg := range data.Segments {
		var kd float64
		if seg.Attributes.LifeTimeStats != nil {
			kd = seg.Attributes.LifeTimeStats.KDRatio
		}
		team := seg.Attributes.Team
		teams[team] = append(teams[team], domain.PlayerStat{
			Name:             seg.Attributes.PlatformUserIdentifier,
			KDRatio:          kd,
			Kills:            seg.Stats.Kills.ValueOr(domain.StatMissing),
			Deaths:           seg.Stats.Deaths.ValueOr(domain.StatMissing),
			Damage:           seg.Stats.DamageDone.ValueOr(domain.StatMissing),
			Headshots:        seg.Stats.Headshots.ValueOr(domain.StatMissing),
			TeamSurvivalTime: seg.Stats.TeamSurvivalTime.ValueOr(domain.StatMissing),
		})
	}

	var ts int64
	if t, err := time.Parse(time.RFC3339, data.Metadata.Timestamp); err == nil {
		ts = t.Unix()
	} else {
		s.logger.Warn().Str("match_id", data.Attributes.ID).Str("timestamp", data.Metadata.Timestamp).Msg("match detail has unparsable timestamp")
	}

	return domain.MatchRecord{
		MatchID:   data.Attributes.ID,
		Mode:      data.Attributes.ModeID,
		Timestamp: ts,
		Duration:  data.Metadata.Duration / 1000,
		TeamKD:    roundTo(teamKD(teams), s.precision),
		Teams:     teams,
	}
}

// teamKD averages the lifetime KDs of each team's qualifying members
// (KD strictly above zero), then averages those team values across the
// match. A team only contributes when it has more than one member and
// at least one known KD; teams failing that still count in the
// divisor. That lopsided divisor is the tracker's own published
// algorithm, kept as-is so numbers line up with the site.
func teamKD(teams map[string][]domain.PlayerStat) float64 {
	if len(teams) == 0 {
		return 0
	}

	var matchKD float64
	for _, members := range teams {
		var sum float64
		known := 0
		for _, p := range members {
			if p.KDRatio > 0 {
				known++
				sum += p.KDRatio
			}
		}
		if known >= 1 && len(members) > 1 {
			matchKD += sum / float64(known)
		}
	}

	return matchKD / float64(len(teams))
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
