package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeExpirer struct {
	mu        sync.Mutex
	expireErr error
	dueErr    error
	expired   []uuid.UUID
	sweeps    int
}

func (f *fakeExpirer) Expire(_ context.Context, id uuid.UUID) (domain.Negotiation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expireErr != nil {
		return domain.Negotiation{}, f.expireErr
	}
	f.expired = append(f.expired, id)
	return domain.Negotiation{ID: id, Status: domain.StatusExpired}, nil
}

func (f *fakeExpirer) ExpireDue(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return 0, f.dueErr
}

func (f *fakeExpirer) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func TestExpirePayloadRoundTrip(t *testing.T) {
	id := uuid.New()

	task, err := NewNegotiationExpireTask(NegotiationExpirePayload{NegotiationID: id.String()})
	require.NoError(t, err)
	assert.Equal(t, TaskNegotiationExpire, task.Type())

	payload, err := ParseNegotiationExpirePayload(task)
	require.NoError(t, err)
	assert.Equal(t, id.String(), payload.NegotiationID)
	assert.Equal(t, "negotiations.expire:"+id.String(), expireTaskID(id))
}

func TestHandleNegotiationExpire(t *testing.T) {
	id := uuid.New()
	task, err := NewNegotiationExpireTask(NegotiationExpirePayload{NegotiationID: id.String()})
	require.NoError(t, err)

	tests := []struct {
		name      string
		task      *asynq.Task
		expireErr error
		wantErr   bool
		wantSkip  bool
	}{
		{name: "expires", task: task},
		{name: "early run is dropped", task: task, expireErr: domain.Fail("Expire", domain.ErrNotYetExpired)},
		{name: "missing negotiation is not retried", task: task, expireErr: domain.Fail("Get", domain.ErrNegotiationNotFound), wantErr: true, wantSkip: true},
		{name: "storage failure is retried", task: task, expireErr: errors.New("connection reset"), wantErr: true},
		{name: "bad payload is not retried", task: asynq.NewTask(TaskNegotiationExpire, []byte("{")), wantErr: true, wantSkip: true},
		{name: "bad id is not retried", task: asynq.NewTask(TaskNegotiationExpire, []byte(`{"negotiationId":"nope"}`)), wantErr: true, wantSkip: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expirer := &fakeExpirer{expireErr: tt.expireErr}
			w := newWorker(expirer, logger.Discard())

			err := w.mux.ProcessTask(context.Background(), tt.task)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantSkip, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestExpirySweeperRunsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	expirer := &fakeExpirer{dueErr: errors.New("db down")}
	sweeper := NewExpirySweeper(expirer, logger.Discard(), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return expirer.sweepCount() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("rediss://:secret@cache.internal:6380/2", true)
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)

	opt, err = redisClientOpt("redis://localhost:6379/0", false)
	require.NoError(t, err)
	assert.Nil(t, opt.TLSConfig)
}
