package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/domeok/internal/domain"
)

var fixedNow = time.Date(2026, 3, 14, 21, 30, 15, 500_000_000, time.Local)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewLimiter(rdb, slog.Default())
	l.now = func() time.Time { return fixedNow }
	return l, mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "quota:recipe:u1:20260314", Key(ActionRecipe, "u1", fixedNow))
}

func TestUntilMidnight(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{name: "evening", now: fixedNow, want: 2*time.Hour + 29*time.Minute + 44*time.Second},
		{name: "just after midnight", now: time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local), want: 24 * time.Hour},
		{name: "last instant", now: time.Date(2026, 3, 14, 23, 59, 59, 900_000_000, time.Local), want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UntilMidnight(tt.now)
			// DST transitions shift local midnight by up to an hour.
			assert.InDelta(t, tt.want.Seconds(), got.Seconds(), 3600)
			assert.Zero(t, got%time.Second)
			assert.GreaterOrEqual(t, got, time.Second)
		})
	}
}

func TestCheckAndConsumeCountsUpToLimit(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	for want := int64(1); want <= 10; want++ {
		got, err := l.CheckAndConsume(ctx, "u1", ActionRecipe, 10)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := l.CheckAndConsume(ctx, "u1", ActionRecipe, 10)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	val, err := mr.Get(Key(ActionRecipe, "u1", fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "10", val)

	// Retrying the same day keeps failing and keeps the counter at the limit.
	_, err = l.CheckAndConsume(ctx, "u1", ActionRecipe, 10)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	val, _ = mr.Get(Key(ActionRecipe, "u1", fixedNow))
	assert.Equal(t, "10", val)
}

func TestCheckAndConsumeSetsExpiryOnce(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()
	key := Key(ActionRecipe, "u1", fixedNow)

	_, err := l.CheckAndConsume(ctx, "u1", ActionRecipe, 10)
	require.NoError(t, err)
	first := mr.TTL(key)
	assert.Equal(t, UntilMidnight(fixedNow), first)

	mr.FastForward(time.Minute)
	_, err = l.CheckAndConsume(ctx, "u1", ActionRecipe, 10)
	require.NoError(t, err)

	// The second increment must not push the expiry back out.
	assert.Equal(t, first-time.Minute, mr.TTL(key))
}

func TestCheckAndConsumeKeyExpiresAtMidnight(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.CheckAndConsume(ctx, "u1", ActionRecipe, 3)
		require.NoError(t, err)
	}
	_, err := l.CheckAndConsume(ctx, "u1", ActionRecipe, 3)
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)

	mr.FastForward(UntilMidnight(fixedNow))
	assert.False(t, mr.Exists(Key(ActionRecipe, "u1", fixedNow)))
}

func TestCheckAndConsumeSeparatesActionsAndUsers(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	_, err := l.CheckAndConsume(ctx, "u1", ActionReceipt, 1)
	require.NoError(t, err)
	_, err = l.CheckAndConsume(ctx, "u1", ActionReceipt, 1)
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)

	got, err := l.CheckAndConsume(ctx, "u1", ActionRecipe, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	got, err = l.CheckAndConsume(ctx, "u2", ActionReceipt, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestCheckAndConsumeConcurrent(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.CheckAndConsume(ctx, "u1", ActionRecipe, 10)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
				rejected.Add(1)
				return
			}
			ok.Add(1)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	assert.EqualValues(t, 10, rejected.Load())

	val, err := mr.Get(Key(ActionRecipe, "u1", fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "10", val)
	assert.Positive(t, mr.TTL(Key(ActionRecipe, "u1", fixedNow)))
}

func TestCheckAndConsumeStoreDown(t *testing.T) {
	l, mr := newTestLimiter(t)
	mr.Close()

	_, err := l.CheckAndConsume(context.Background(), "u1", ActionRecipe, 10)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestRemaining(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	left, err := l.Remaining(ctx, "u1", ActionRecipe, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), left)

	for i := 0; i < 4; i++ {
		_, err := l.CheckAndConsume(ctx, "u1", ActionRecipe, 10)
		require.NoError(t, err)
	}

	left, err = l.Remaining(ctx, "u1", ActionRecipe, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(6), left)

	// A lowered limit never reports negative headroom.
	left, err = l.Remaining(ctx, "u1", ActionRecipe, 2)
	require.NoError(t, err)
	assert.Zero(t, left)
}
