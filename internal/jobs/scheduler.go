package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-cotiza/internal/events"
)

// Enqueuer turns payment events into queued portfolio refreshes. It
// implements events.Scheduler.
type Enqueuer struct {
	Client *asynq.Client
}

// Schedule enqueues a refresh for topics that move money; everything
// else is a no-op.
func (e *Enqueuer) Schedule(ctx context.Context, event events.Event) error {
	switch event.Topic {
	case events.TopicPaymentRecorded, events.TopicPaymentVoided, events.TopicQuoteSettled:
	default:
		return nil
	}
	if e == nil || e.Client == nil {
		return errors.New("jobs: asynq client not configured")
	}
	task, err := NewPortfolioRefreshTask(event.Topic)
	if err != nil {
		return fmt.Errorf("jobs: build task: %w", err)
	}
	if _, err := e.Client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		return fmt.Errorf("jobs: enqueue %s: %w", TaskPortfolioRefresh, err)
	}
	return nil
}
