package rate

import (
	"context"
	"testing"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		if err != nil || !res.Allowed {
			t.Fatalf("hit %d: allowed=%v err=%v", i, res.Allowed, err)
		}
	}
	res, err := l.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.RetryAfter <= 0 || res.Remaining != 0 {
		t.Fatalf("third hit should be limited: %+v", res)
	}
	if other, _ := l.Allow(ctx, "5.6.7.8"); !other.Allowed {
		t.Fatal("keys must be independent")
	}
}

func TestRedisLimiterUnreachable(t *testing.T) {
	c := rdb.NewClient(&rdb.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer c.Close()
	l := NewRedisLimiter(c, "", 10, time.Minute)
	if _, err := l.Allow(context.Background(), "k"); err == nil {
		t.Fatal("expected error from unreachable redis")
	}
}
