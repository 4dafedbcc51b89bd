package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/routediff/internal/models"
)

type fakeRecorder struct {
	got []*models.Divergence
	err error
}

func (f *fakeRecorder) RecordDivergence(_ context.Context, d *models.Divergence) error {
	f.got = append(f.got, d)
	return f.err
}

func sampleDivergence() *models.Divergence {
	return &models.Divergence{
		RunID:       uuid.NewString(),
		RecordIndex: 3,
		OldIndex:    0,
		NewIndex:    1,
		Request: &models.SwapRequest{
			FromToken: "USDT",
			ToToken:   "TRX",
			InAmount:  "1000000",
		},
		Old:        models.Path{Amount: models.StrPtr("100"), Pool: []string{"P1"}},
		New:        models.Path{Amount: models.StrPtr("105"), Pool: []string{"P1"}},
		DiffAmount: 0.05,
		DetectedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ok := &fakeRecorder{}
	bad := &fakeRecorder{err: errors.New("sink down")}
	also := &fakeRecorder{}

	d := sampleDivergence()
	err := Multi{ok, bad, also}.RecordDivergence(context.Background(), d)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	// a failing sink does not stop the others
	assert.Len(t, ok.got, 1)
	assert.Len(t, bad.got, 1)
	assert.Len(t, also.got, 1)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.RecordDivergence(context.Background(), sampleDivergence()))
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "divergences")
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	k, err := NewKafkaPublisher([]string{"localhost:9092"}, "divergences")
	require.NoError(t, err)
	assert.NoError(t, k.Close())
}

func TestPubSub_PublishSubscribe(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	ps := NewPubSub(client, "routediff:test:"+uuid.NewString(), nil)
	received := make(chan *models.Divergence, 1)

	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = ps.Subscribe(subCtx, func(d *models.Divergence) {
			received <- d
		})
	}()

	want := sampleDivergence()
	// publishing before the subscriber is attached drops the message
	require.Eventually(t, func() bool {
		if err := ps.RecordDivergence(ctx, want); err != nil {
			return false
		}
		select {
		case got := <-received:
			assert.Equal(t, want.RunID, got.RunID)
			assert.Equal(t, "100", *got.Old.Amount)
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestClickHouseStore_RecordDivergence(t *testing.T) {
	addr := os.Getenv("ROUTEDIFF_TEST_CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("ROUTEDIFF_TEST_CLICKHOUSE_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewClickHouseStore(ctx, ClickHouseConfig{
		Addr:     addr,
		Database: "default",
		Username: "default",
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))
	assert.NoError(t, store.RecordDivergence(ctx, sampleDivergence()))
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "", deref(nil))
	assert.Equal(t, "7", deref(models.StrPtr("7")))
}
