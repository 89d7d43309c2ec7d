package scheduler

import (
	"context"
	"errors"
	"fmt"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/platform/config"
	"paylesscars/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Expirer applies the time-driven expiry transition.
type Expirer interface {
	Expire(ctx context.Context, id uuid.UUID) (domain.Negotiation, error)
	ExpireDue(ctx context.Context) (int, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	expirer Expirer
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, expirer Expirer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(expirer, log)
	w.server = server
	return w, nil
}

func newWorker(expirer Expirer, log *logger.Logger) *Worker {
	w := &Worker{
		mux:     asynq.NewServeMux(),
		expirer: expirer,
		log:     log,
	}
	w.mux.HandleFunc(TaskNegotiationExpire, w.handleNegotiationExpire)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleNegotiationExpire(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNegotiationExpirePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	id, err := uuid.Parse(payload.NegotiationID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	n, err := w.expirer.Expire(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNegotiationNotFound):
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	case errors.Is(err, domain.ErrNotYetExpired):
		// Clock skew between scheduler and worker; the sweep catches it.
		w.log.Warn("expiry task ran early", "negotiationId", id)
		return nil
	case err != nil:
		return err
	}

	w.log.Info("negotiation expiry processed", "negotiationId", id, "status", n.Status.String())
	return nil
}
