package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cotiza/internal/collections"
	"github.com/noah-isme/backend-cotiza/internal/obs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPortfolioRefresh recomputes the collections portfolio rollup.
	TaskPortfolioRefresh = "collections:portfolio_refresh"
)

// PortfolioRefreshPayload records why the refresh was requested.
type PortfolioRefreshPayload struct {
	Reason string `json:"reason"`
}

// NewPortfolioRefreshTask constructs the refresh task.
func NewPortfolioRefreshTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(PortfolioRefreshPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPortfolioRefresh, data), nil
}

// PortfolioRefresher rebuilds the cached portfolio rollup.
type PortfolioRefresher interface {
	RefreshPortfolio(ctx context.Context) (collections.PortfolioStats, error)
}

// HandlePortfolioRefresh returns the asynq handler for refresh tasks.
func HandlePortfolioRefresh(refresher PortfolioRefresher, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PortfolioRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		start := time.Now()
		stats, err := refresher.RefreshPortfolio(ctx)
		if obs.PortfolioRefreshDuration != nil {
			obs.PortfolioRefreshDuration.Observe(obs.DurationMillis(time.Since(start)))
		}
		if err != nil {
			logger.Error().Err(err).Str("reason", payload.Reason).Msg("portfolio refresh failed")
			return err
		}
		logger.Info().
			Str("reason", payload.Reason).
			Str("total_pending", stats.TotalPending.String()).
			Int("open_count", stats.OpenCount).
			Msg("portfolio refreshed")
		return nil
	}
}
