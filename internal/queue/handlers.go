package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	mux := asynq.NewServeMux()
	mux.Use(loggingMiddleware)
	return &HandlersRegistry{mux: mux}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

func loggingMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		if err != nil {
			slog.Error("task failed", "type", t.Type(), "duration", time.Since(start), "error", err)
			return err
		}
		slog.Info("task processed", "type", t.Type(), "duration", time.Since(start))
		return nil
	})
}
