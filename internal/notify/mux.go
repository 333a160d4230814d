package notify

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/events"
)

// NewServeMux routes event topics to their handlers.
func NewServeMux(email EmailNotifier, reconcile ReconcileWorker, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(loggingMiddleware(logger))
	mux.Handle(events.TopicOrderFulfilled, email)
	mux.Handle(events.TopicOrderFailed, email)
	mux.Handle(events.TopicOrderRejected, email)
	mux.Handle(events.TopicOrderReconcile, reconcile)
	return mux
}

func loggingMiddleware(logger zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, task)
			evt := logger.Info()
			if err != nil {
				evt = logger.Warn().Err(err)
			}
			evt.Str("task", task.Type()).Dur("took", time.Since(start)).Msg("task processed")
			return err
		})
	}
}

// RetryDelay backs reconciliation off linearly in minutes and leaves other tasks on asynq's default.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	if task.Type() == events.TopicOrderReconcile {
		return time.Duration(n+1) * time.Minute
	}
	return asynq.DefaultRetryDelayFunc(n, err, task)
}
