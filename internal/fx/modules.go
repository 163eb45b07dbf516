package fx

import (
	"warzone-tracker/internal/api"
	"warzone-tracker/internal/archive"
	"warzone-tracker/internal/cache"
	"warzone-tracker/internal/config"
	"warzone-tracker/internal/logger"
	"warzone-tracker/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(cache.NewStore),
	fx.Provide(archive.NewDB),
	fx.Provide(archive.New),
	// api client
	fx.Provide(api.NewTrackerClient),
	fx.Provide(func(c *api.TrackerClient) service.TrackerAPI { return c }),
	// svc
	fx.Provide(service.NewHistoryService),
	fx.Provide(service.NewMatchService),
	fx.Provide(service.NewAssembler),
)
