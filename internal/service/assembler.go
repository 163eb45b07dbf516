package service

import (
	"context"
	"time"
	"warzone-tracker/internal/api"
	"warzone-tracker/internal/cache"
	"warzone-tracker/internal/constants"
	"warzone-tracker/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Assembler orchestrates the pipeline for one player: lifetime stats,
// history pagination, per-match detail, final flush.
type Assembler struct {
	tracker TrackerAPI
	store   *cache.Store
	history *HistoryService
	matches *MatchService
	logger  zerolog.Logger
	policy  backoffPolicy
	now     func() time.Time
}

func NewAssembler(tracker TrackerAPI, store *cache.Store, history *HistoryService, matches *MatchService, logger zerolog.Logger) *Assembler {
	return &Assembler{
		tracker: tracker,
		store:   store,
		history: history,
		matches: matches,
		logger:  logger,
		policy:  defaultBackoffs(),
		now:     time.Now,
	}
}

type UserData struct {
	Player   domain.PlayerIdentity
	Lifetime domain.LifetimeStats
	Rows     domain.MatchRows
	Records  []domain.MatchRecord
}

// AssembleUserData produces one row per match for the player's latest
// `count` accepted games, newest first. Fewer rows come back when the
// player's history is shorter than requested. The cache is flushed on
// the way out regardless of outcome.
func (a *Assembler) AssembleUserData(ctx context.Context, player domain.PlayerIdentity, count int, window domain.HourWindow) (*UserData, error) {
	log := a.logger.With().
		Str("run_id", uuid.New().String()).
		Str("player", player.Username).
		Str("platform", string(player.Platform)).
		Logger()

	defer func() {
		if err := a.store.Flush(); err != nil {
			log.Error().Err(err).Msg("final cache flush failed")
		}
	}()

	lifetime, err := a.lifetimeStats(ctx, player, log)
	if err != nil {
		return nil, err
	}

	entries, err := a.history.ListRecentMatches(ctx, player, count, window)
	if err != nil {
		return nil, err
	}
	// A splice can over-supply; the caller asked for count.
	if len(entries) > count {
		entries = entries[:count]
	}

	log.Info().Int("matches", len(entries)).Msg("assembling user data")

	seen := make(map[string]struct{}, len(entries))
	rows := make(domain.MatchRows, 0, len(entries))
	records := make([]domain.MatchRecord, 0, len(entries))

	for _, e := range entries {
		if _, dup := seen[e.MatchID]; dup {
			// The upstream cursor defect can leak duplicates this far;
			// worth noticing but never worth failing the run.
			log.Warn().Str("match_id", e.MatchID).Msg("duplicate match id survived pagination")
			continue
		}
		seen[e.MatchID] = struct{}{}

		rec, err := a.matches.FetchMatch(ctx, e.MatchID)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
		rows = append(rows, domain.MatchRow{
			ID:        rec.MatchID,
			Mode:      rec.Mode,
			Timestamp: rec.Timestamp,
			Duration:  rec.Duration,
			TeamKD:    rec.TeamKD,
			Players:   rec.PlayerCount(),
		})
	}

	log.Info().Int("rows", len(rows)).Float64("lifetime_kd", lifetime.KDRatio).Msg("user data assembled")
	return &UserData{Player: player, Lifetime: lifetime, Rows: rows, Records: records}, nil
}

// lifetimeStats reuses the cached aggregate when it was fetched within
// the freshness window, otherwise refetches the profile.
func (a *Assembler) lifetimeStats(ctx context.Context, player domain.PlayerIdentity, log zerolog.Logger) (domain.LifetimeStats, error) {
	if stats, ok := a.store.Lifetime(player); ok && stats.Fresh(a.now(), constants.LifetimeStatsTTL) {
		log.Debug().Time("fetched_at", stats.FetchedAt).Msg("reusing cached lifetime stats")
		return stats, nil
	}

	resp, err := fetchRetry(ctx, a.store, log, a.policy, "profile stats", func(ctx context.Context) (*api.ProfileResponse, error) {
		return a.tracker.ProfileStats(ctx, player)
	})
	if err != nil {
		return domain.LifetimeStats{}, err
	}

	stats := domain.LifetimeStats{FetchedAt: a.now()}
	if seg := resp.Data.Overview(); seg != nil {
		stats.KDRatio = seg.Stats.KDRatio.ValueOr(0)
		stats.Kills = int(seg.Stats.Kills.ValueOr(0))
		stats.Deaths = int(seg.Stats.Deaths.ValueOr(0))
		stats.Wins = int(seg.Stats.Wins.ValueOr(0))
		stats.GamesPlayed = int(seg.Stats.GamesPlayed.ValueOr(0))
	} else {
		log.Warn().Msg("profile response has no overview segment")
	}

	a.store.PutLifetime(player, stats)
	if err := a.store.Flush(); err != nil {
		log.Error().Err(err).Msg("cache flush after lifetime fetch failed")
	}

	return stats, nil
}
