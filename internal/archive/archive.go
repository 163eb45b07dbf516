package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"warzone-tracker/internal/constants"
	"warzone-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Archive persists assembled match records into SQLite so plotting
// tools can query history with plain SQL instead of parsing the cache
// snapshot.
type Archive struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *sql.DB, logger zerolog.Logger) *Archive {
	return &Archive{db: db, logger: logger}
}

const upsertMatchSQL = `
INSERT INTO matches (match_id, mode, timestamp, duration, team_kd, players, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(match_id) DO UPDATE SET
    mode = excluded.mode,
    timestamp = excluded.timestamp,
    duration = excluded.duration,
    team_kd = excluded.team_kd,
    players = excluded.players,
    updated_at = excluded.updated_at`

const upsertPlayerSQL = `
INSERT INTO match_players (id, match_id, team, name, kd_ratio, kills, deaths, damage, headshots, survival_time, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(match_id, team, name) DO UPDATE SET
    kd_ratio = excluded.kd_ratio,
    kills = excluded.kills,
    deaths = excluded.deaths,
    damage = excluded.damage,
    headshots = excluded.headshots,
    survival_time = excluded.survival_time`

func (a *Archive) UpsertBatch(ctx context.Context, records []domain.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	for i := 0; i < len(records); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(records) {
			end = len(records)
		}

		for _, rec := range records[i:end] {
			_, err := tx.ExecContext(ctx, upsertMatchSQL,
				rec.MatchID, rec.Mode, rec.Timestamp, rec.Duration, rec.TeamKD, rec.PlayerCount(), now, now)
			if err != nil {
				return fmt.Errorf("failed to upsert match %s: %w", rec.MatchID, err)
			}

			for team, members := range rec.Teams {
				for _, p := range members {
					id, err := gonanoid.New()
					if err != nil {
						return fmt.Errorf("failed to generate row id: %w", err)
					}
					_, err = tx.ExecContext(ctx, upsertPlayerSQL,
						id, rec.MatchID, team, p.Name, p.KDRatio, p.Kills, p.Deaths, p.Damage, p.Headshots, p.TeamSurvivalTime, now)
					if err != nil {
						return fmt.Errorf("failed to upsert match player %s/%s: %w", rec.MatchID, p.Name, err)
					}
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	a.logger.Info().Int("matches", len(records)).Msg("archived match records")
	return nil
}

// RecentMatches returns the newest archived rows, newest first. The
// scraper itself only writes the archive; this is the read surface for
// the plotting tools that query it out of process.
func (a *Archive) RecentMatches(ctx context.Context, limit int) (domain.MatchRows, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT match_id, mode, timestamp, duration, team_kd, players
		 FROM matches ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out domain.MatchRows
	for rows.Next() {
		var r domain.MatchRow
		if err := rows.Scan(&r.ID, &r.Mode, &r.Timestamp, &r.Duration, &r.TeamKD, &r.Players); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
