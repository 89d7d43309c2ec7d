package snapshot

import (
	"context"
	"testing"
	"time"

	"paylesscars/internal/negotiation/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, ttl), mr
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, time.Hour)
	userID := uuid.New()

	vehicle := domain.VehicleRef{ID: uuid.New(), Title: "2018 Golf", AskingPrice: domain.MustMoney("15000", "EUR"), DealerID: uuid.New()}
	n, err := domain.Open(uuid.New(), vehicle, domain.PartyRef{ID: userID}, domain.MustMoney("14000", "EUR"), nil, time.Hour, time.Now())
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, userID, []domain.Negotiation{n}))

	loaded, err := store.Load(ctx, userID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, n.ID, loaded[0].ID)
	assert.Equal(t, domain.StatusActive, loaded[0].Status)
	assert.True(t, loaded[0].Offers[0].Amount.Equal(n.Offers[0].Amount))

	other, err := store.Load(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other, "snapshots are per user")
}

func TestSnapshotExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, time.Minute)
	userID := uuid.New()

	require.NoError(t, store.Save(ctx, userID, nil))
	mr.FastForward(2 * time.Minute)

	loaded, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadRejectsCorruptPayload(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	userID := uuid.New()

	require.NoError(t, mr.Set(key(userID), "{not json"))

	_, err := store.Load(context.Background(), userID)
	assert.ErrorContains(t, err, "json.Unmarshal")
}
