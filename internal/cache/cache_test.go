package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLayer(c Client) *Layer {
	return NewLayer(c, LayerOptions{Timeout: 100 * time.Millisecond, DefaultTTL: time.Minute, Logger: zap.NewNop()})
}

func TestMemoryGetSetTTL(t *testing.T) {
	mem := NewMemory("t", time.Hour)
	l := newLayer(mem)
	ctx := context.Background()

	before := time.Now()
	require.True(t, l.Set(ctx, "k", "v", 80*time.Millisecond))

	e, ok := mem.Peek("k")
	require.True(t, ok)
	assert.WithinDuration(t, before.Add(80*time.Millisecond), e.ExpiresAt, 50*time.Millisecond)

	v, found, err := l.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", v)

	time.Sleep(120 * time.Millisecond)
	_, found, err = l.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "expired entry must read as a miss")

	st, _ := mem.Stats(ctx)
	assert.Equal(t, int64(0), st.Keys, "expired entry must not count as a key")
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
}

func TestMemoryMissDoesNotDropConcurrentSet(t *testing.T) {
	mem := NewMemory("t", time.Hour)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		key := "race"
		_ = mem.Delete(ctx, key)

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_, _ = mem.Get(ctx, key)
				}
			}
		}()

		require.NoError(t, mem.Set(ctx, key, "v", time.Minute))
		v, err := mem.Get(ctx, key)
		close(stop)
		wg.Wait()
		if err != nil || v != "v" {
			t.Fatalf("round %d: confirmed set lost: v=%q err=%v", i, v, err)
		}
	}
}

func TestMemoryPrefixIsolation(t *testing.T) {
	a := NewMemory("a", 0)
	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "k", "1", 0))
	_, err := a.Get(ctx, "other")
	assert.True(t, IsNotFound(err))
	require.NoError(t, a.Delete(ctx, "k"))
	_, err = a.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingClient struct {
	Client
	err error
}

func (f failingClient) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingClient) Set(context.Context, string, string, time.Duration) error { return f.err }

type hangingClient struct{ Client }

func (hangingClient) Get(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	time.Sleep(time.Second) // ignora el contexto un rato más
	return "", ctx.Err()
}

func TestGetBackendFailureIsUnavailableMiss(t *testing.T) {
	l := newLayer(failingClient{err: errors.New("conn reset")})
	_, found, err := l.Get(context.Background(), "k")
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, l.Set(context.Background(), "k", "v", 0))
}

func TestGetIsBoundedByTimeout(t *testing.T) {
	l := newLayer(hangingClient{})
	start := time.Now()
	_, found, err := l.Get(context.Background(), "k")
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRedisUnreachableDegrades(t *testing.T) {
	c, err := NewRedis(Config{Addr: "127.0.0.1:1"})
	require.NoError(t, err)
	defer c.Close()

	l := newLayer(c)
	_, found, err := l.Get(context.Background(), "k")
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, l.Set(context.Background(), "k", "v", time.Second))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "memcached"})
	assert.Error(t, err)

	c, err := New(Config{})
	require.NoError(t, err)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestGetOrComputeSingleRecompute(t *testing.T) {
	l := newLayer(NewMemory("", 0))
	var computes int32
	compute := func(context.Context) (string, error) {
		atomic.AddInt32(&computes, 1)
		time.Sleep(50 * time.Millisecond)
		return "fresh", nil
	}

	const n = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			v, _, err := l.GetOrCompute(context.Background(), "hot", 0, ModeWait, compute)
			if err == nil {
				results[i] = v
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))
	for _, r := range results {
		assert.Equal(t, "fresh", r)
	}

	v, cached, err := l.GetOrCompute(context.Background(), "hot", 0, ModeWait, compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "fresh", v)
}

func TestGetOrComputeBypassWhileInFlight(t *testing.T) {
	l := newLayer(NewMemory("", 0))
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _, _ = l.GetOrCompute(context.Background(), "k", 0, ModeWait, func(context.Context) (string, error) {
			close(started)
			<-release
			return "v", nil
		})
	}()
	<-started

	_, _, err := l.GetOrCompute(context.Background(), "k", 0, ModeBypass, func(context.Context) (string, error) {
		t.Fatal("bypass caller must not recompute")
		return "", nil
	})
	assert.ErrorIs(t, err, ErrInFlight)
	close(release)
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	mem := NewMemory("", 0)
	l := newLayer(mem)
	boom := errors.New("boom")
	_, _, err := l.GetOrCompute(context.Background(), "k", 0, ModeWait, func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	_, ok := mem.Peek("k")
	assert.False(t, ok)
}

func TestGetOrComputeWaiterCancel(t *testing.T) {
	l := newLayer(NewMemory("", 0))
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _, _ = l.GetOrCompute(context.Background(), "k", 0, ModeWait, func(context.Context) (string, error) {
			close(started)
			<-release
			return "v", nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, _, err := l.GetOrCompute(ctx, "k", 0, ModeWait, func(context.Context) (string, error) { return "x", nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestGetOrComputeUnavailableStillComputes(t *testing.T) {
	l := newLayer(failingClient{err: errors.New("down")})
	v, cached, err := l.GetOrCompute(context.Background(), "k", 0, ModeWait, func(context.Context) (string, error) {
		return "computed", nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "computed", v)
}
