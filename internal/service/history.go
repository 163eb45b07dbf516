package service

import (
	"context"
	"time"
	"warzone-tracker/internal/api"
	"warzone-tracker/internal/cache"
	"warzone-tracker/internal/constants"
	"warzone-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// TrackerAPI is the outbound surface the services need; satisfied by
// *api.TrackerClient.
type TrackerAPI interface {
	MatchHistory(ctx context.Context, player domain.PlayerIdentity, cursor string) (*api.HistoryResponse, error)
	MatchDetail(ctx context.Context, matchID string) (*api.MatchDetailResponse, error)
	ProfileStats(ctx context.Context, player domain.PlayerIdentity) (*api.ProfileResponse, error)
}

// Modes counted toward statistics: the team-size 2-4 battle royale
// playlists. Everything else is discarded during pagination.
var acceptedModes = map[string]struct{}{
	"br_brduos":  {},
	"br_brtrios": {},
	"br_brquads": {},
}

type HistoryService struct {
	tracker TrackerAPI
	store   *cache.Store
	logger  zerolog.Logger
	policy  backoffPolicy
}

func NewHistoryService(tracker TrackerAPI, store *cache.Store, logger zerolog.Logger) *HistoryService {
	return &HistoryService{tracker: tracker, store: store, logger: logger, policy: defaultBackoffs()}
}

// ListRecentMatches walks the history endpoint newest-first until at
// least minCount accepted entries are accumulated or history runs out.
// Before each further page request the cached history is consulted: if
// the fetched entries reach back to the cached head, the cached tail is
// spliced on and pagination stops. Under rate limiting the per-page
// request is the dominant cost, so that splice is the optimization this
// whole pipeline exists for.
func (s *HistoryService) ListRecentMatches(ctx context.Context, player domain.PlayerIdentity, minCount int, window domain.HourWindow) ([]domain.HistoryEntry, error) {
	var acc []domain.HistoryEntry
	cursor := ""

	for {
		resp, err := fetchRetry(ctx, s.store, s.logger, s.policy, "match history", func(ctx context.Context) (*api.HistoryResponse, error) {
			return s.tracker.MatchHistory(ctx, player, cursor)
		})
		if err != nil {
			return nil, err
		}

		raw := resp.Data.Matches
		acc = append(acc, s.filterPage(raw, window)...)

		if len(raw) < constants.HistoryPageSize {
			s.logger.Debug().Str("player", player.Username).Int("entries", len(acc)).Msg("end of history reached")
			break
		}

		deduped := dedupeEntries(acc)
		if len(deduped) >= minCount {
			acc = deduped
			break
		}

		if spliced := s.reconcile(player, deduped); spliced != nil {
			s.logger.Info().
				Str("player", player.Username).
				Int("fetched", len(deduped)).
				Int("total", len(spliced)).
				Msg("spliced cached history, skipping further pagination")
			acc = spliced
			break
		}

		cursor = resp.Data.Metadata.Next.String()
		if cursor == "" {
			break
		}
	}

	final := dedupeEntries(acc)

	// The merged list becomes the player's history of record.
	s.store.PutHistory(player, final)
	if err := s.store.Flush(); err != nil {
		s.logger.Error().Err(err).Msg("cache flush after history update failed")
	}

	return final, nil
}

func (s *HistoryService) filterPage(raw []api.HistoryMatch, window domain.HourWindow) []domain.HistoryEntry {
	var out []domain.HistoryEntry
	for _, m := range raw {
		if _, ok := acceptedModes[m.Attributes.ModeID]; !ok {
			continue
		}
		ts, err := m.TimestampMS()
		if err != nil {
			s.logger.Warn().Err(err).Str("match_id", m.Attributes.ID).Msg("skipping history entry with bad timestamp")
			continue
		}
		if !window.Contains(time.UnixMilli(ts).Hour()) {
			continue
		}
		out = append(out, domain.HistoryEntry{MatchID: m.Attributes.ID, Timestamp: ts})
	}
	return out
}

// reconcile attempts to extend the fetched entries with the cached
// tail. Nil means the cache cannot help and pagination must continue.
func (s *HistoryService) reconcile(player domain.PlayerIdentity, fresh []domain.HistoryEntry) []domain.HistoryEntry {
	cached, ok := s.store.History(player)
	if !ok || len(cached) == 0 || len(fresh) == 0 {
		return nil
	}

	// Everything fetched so far is newer than anything cached: the
	// cache is behind and a gap may still exist.
	if fresh[len(fresh)-1].Timestamp > cached[0].Timestamp {
		s.logger.Debug().Str("player", player.Username).Msg("cached history behind fetched page, continuing pagination")
		return nil
	}

	return trySplice(cached, fresh)
}

// trySplice finds the seam where fresh overlaps the cached head and
// returns fresh-up-to-the-seam followed by the whole cached tail. The
// seam is matched on timestamps only; two distinct matches sharing a
// second-resolution timestamp could mis-splice. Known limitation,
// mirrored from the upstream tracker.
func trySplice(cached, fresh []domain.HistoryEntry) []domain.HistoryEntry {
	if len(cached) == 0 || len(fresh) == 0 {
		return nil
	}
	// Fresh page supplies nothing newer than the cache already has.
	if fresh[0].Timestamp <= cached[0].Timestamp {
		return nil
	}
	for idx, e := range fresh {
		if e.Timestamp == cached[0].Timestamp {
			out := make([]domain.HistoryEntry, 0, idx+len(cached))
			out = append(out, fresh[:idx]...)
			out = append(out, cached...)
			return out
		}
	}
	return nil
}

// dedupeEntries drops repeated match ids while preserving order; the
// upstream cursor occasionally re-serves a page.
func dedupeEntries(entries []domain.HistoryEntry) []domain.HistoryEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.MatchID]; dup {
			continue
		}
		seen[e.MatchID] = struct{}{}
		out = append(out, e)
	}
	return out
}
