package service

import (
	"context"
	"errors"
	"time"
	"warzone-tracker/internal/api"
	"warzone-tracker/internal/cache"
	"warzone-tracker/internal/constants"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

type backoffPolicy struct {
	rateLimit   time.Duration
	unavailable time.Duration
}

func defaultBackoffs() backoffPolicy {
	return backoffPolicy{
		rateLimit:   constants.RateLimitBackoff,
		unavailable: constants.UnavailableBackoff,
	}
}

// fetchRetry runs op until it succeeds or fails fatally. Recoverable
// errors (429, 503/504/400, missing data payload) flush the cache and
// sleep a class-specific backoff with no retry cap: under-reporting a
// player's history is worse than hanging. Anything else ends the run
// with the cache persisted.
func fetchRetry[T any](ctx context.Context, store *cache.Store, logger zerolog.Logger, policy backoffPolicy, what string, op func(context.Context) (*T, error)) (*T, error) {
	var next time.Duration
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		return next, false
	})

	var out *T
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := op(ctx)
		if err == nil {
			out = res
			return nil
		}

		switch {
		case api.IsRateLimited(err):
			next = policy.rateLimit
		case api.IsUnavailable(err), errors.Is(err, api.ErrMalformedResponse):
			next = policy.unavailable
		default:
			if ferr := store.Flush(); ferr != nil {
				logger.Error().Err(ferr).Msg("cache flush on fatal error failed")
			}
			return err
		}

		if ferr := store.Flush(); ferr != nil {
			logger.Error().Err(ferr).Msg("cache flush before backoff failed")
		}
		logger.Warn().Err(err).Str("op", what).Dur("backoff", next).Msg("tracker API error, backing off")
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
