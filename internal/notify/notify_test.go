package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/fixedpoint"
	"dynamicFee/internal/model"
)

type memStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	records  []model.FeeChangeRecord
}

func (m *memStore) PutFeeChanges(_ context.Context, changes []model.FeeChangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("connection reset")
	}
	m.records = append(m.records, changes...)
	return nil
}

func change(id string, ts uint64) fee.FeeChange {
	return fee.FeeChange{
		ID:         id,
		Pool:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
		OldFee:     fixedpoint.MustParse("0.01"),
		NewFee:     fixedpoint.MustParse("0.02"),
		Volatility: fixedpoint.MustParse("0.25"),
		Timestamp:  ts,
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	var got []string
	ok := fee.NotifierFunc(func(_ context.Context, c fee.FeeChange) error {
		got = append(got, c.ID)
		return nil
	})
	bad := fee.NotifierFunc(func(context.Context, fee.FeeChange) error {
		return errors.New("down")
	})

	err := Multi{ok, nil, bad, ok}.FeeChanged(context.Background(), change("a", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, []string{"a", "a"}, got)

	assert.NoError(t, Multi{ok}.FeeChanged(context.Background(), change("b", 2)))
}

func TestSinkBatchesAndFlushes(t *testing.T) {
	store := &memStore{}
	sink := NewSink(store, SinkConfig{BatchSize: 2}, nil)
	ctx := context.Background()

	require.NoError(t, sink.FeeChanged(ctx, change("a", 1)))
	assert.Equal(t, 0, store.calls)
	require.NoError(t, sink.FeeChanged(ctx, change("b", 2)))
	assert.Equal(t, 1, store.calls)

	require.NoError(t, sink.FeeChanged(ctx, change("c", 3)))
	require.NoError(t, sink.Flush(ctx))
	require.NoError(t, sink.Flush(ctx))

	require.Len(t, store.records, 3)
	assert.Equal(t, "c", store.records[2].ID)
	assert.Equal(t, "0.02", store.records[2].NewFee)
	assert.Equal(t, 3, sink.Written())
}

func TestSinkRetriesTransientFailures(t *testing.T) {
	store := &memStore{failures: 2}
	sink := NewSink(store, SinkConfig{BatchSize: 10, MaxRetries: 3, RetryDelay: time.Millisecond}, nil)

	require.NoError(t, sink.FeeChanged(context.Background(), change("a", 1)))
	require.NoError(t, sink.Flush(context.Background()))
	assert.Equal(t, 3, store.calls)
	assert.Len(t, store.records, 1)
}

func TestSinkGivesUpAndKeepsPending(t *testing.T) {
	store := &memStore{failures: 10}
	sink := NewSink(store, SinkConfig{BatchSize: 10, MaxRetries: 1, RetryDelay: time.Millisecond}, nil)

	require.NoError(t, sink.FeeChanged(context.Background(), change("a", 1)))
	err := sink.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, 0, sink.Written())

	store.failures = 0
	require.NoError(t, sink.Flush(context.Background()))
	assert.Equal(t, 1, sink.Written())
}
