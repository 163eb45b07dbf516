package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"warzone-tracker/internal/archive"
	"warzone-tracker/internal/cache"
	"warzone-tracker/internal/config"
	"warzone-tracker/internal/domain"
	fxmodules "warzone-tracker/internal/fx"
	"warzone-tracker/internal/service"
	"warzone-tracker/internal/stats"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type options struct {
	users     []string
	count     int
	startGame int
	endGame   int
	window    domain.HourWindow
}

func main() {
	var (
		users     = flag.String("users", "", "comma-separated battle.net or Activision IDs (1 to 4)")
		count     = flag.Int("count", 200, "number of latest matches to fetch per user")
		startGame = flag.Int("start-game", 0, "nth latest game the frame starts at")
		endGame   = flag.Int("end-game", 0, "nth latest game the frame ends at (0 = count)")
		startHour = flag.Int("start-hour", 0, "only count games starting at this local hour")
		endHour   = flag.Int("end-hour", 0, "only count games up to this local hour (equal hours disable the filter)")
	)
	flag.Parse()

	opts := options{
		count:     *count,
		startGame: *startGame,
		endGame:   *endGame,
		window:    domain.HourWindow{Start: *startHour, End: *endHour},
	}
	if *users != "" {
		opts.users = strings.Split(*users, ",")
	}
	if opts.endGame <= 0 || opts.endGame > opts.count {
		opts.endGame = opts.count
	}

	fx.New(
		fxmodules.Module,
		fx.Supply(opts),
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	opts options,
	store *cache.Store,
	assembler *service.Assembler,
	arch *archive.Archive,
	db *sql.DB,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if len(opts.users) < 1 || len(opts.users) > 4 {
				return fmt.Errorf("expected 1 to 4 users, got %d", len(opts.users))
			}
			logger.Info().
				Str("cache_path", cfg.CachePath).
				Str("archive_db_path", cfg.ArchiveDBPath).
				Str("output_dir", cfg.OutputDir).
				Dur("request_delay", cfg.RequestDelay).
				Int("kd_precision", cfg.KDPrecision).
				Str("log_level", cfg.LogLevel).
				Msg("configuration loaded")
			if err := store.Load(); err != nil {
				return err
			}

			go func() {
				code := 0
				if err := pipeline(context.Background(), opts, assembler, arch, cfg, logger); err != nil {
					logger.Error().Err(err).Msg("pipeline failed")
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Error().Err(err).Msg("shutdown failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing archive database")
			}
			return nil
		},
	})
}

func pipeline(
	ctx context.Context,
	opts options,
	assembler *service.Assembler,
	arch *archive.Archive,
	cfg *config.Config,
	logger zerolog.Logger,
) error {
	frames := make([]stats.UserFrame, 0, len(opts.users))

	// Users are walked one after another; the API only tolerates one
	// in-flight request.
	for _, username := range opts.users {
		player := domain.PlayerIdentity{
			Username: username,
			Platform: domain.DetectPlatform(username),
		}

		data, err := assembler.AssembleUserData(ctx, player, opts.count, opts.window)
		if err != nil {
			return err
		}

		if err := arch.UpsertBatch(ctx, data.Records); err != nil {
			logger.Warn().Err(err).Str("player", username).Msg("failed to archive match records")
		}

		rows := data.Rows.Slice(opts.startGame, opts.endGame)
		logger.Info().
			Str("player", username).
			Int("games", len(rows)).
			Float64("avg_kd", stats.Mean(rows.KDs())).
			Msg("user frame ready")

		dailyPath := filepath.Join(cfg.OutputDir, stats.DailyFileName(username, opts.count))
		if err := stats.WriteDailyCSV(dailyPath, stats.Daily(data.Rows)); err != nil {
			return err
		}

		frames = append(frames, stats.UserFrame{Username: username, Rows: data.Rows})
	}

	return stats.WriteComparison(cfg.OutputDir, frames, opts.startGame, opts.endGame, opts.window)
}
