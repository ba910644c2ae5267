package calendar

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNoopLocker(t *testing.T) {
	unlock, err := NoopLocker{}.Lock(context.Background(), "adv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unlock()
}

// Requires a reachable Redis; set REDIS_TEST_ADDR to run.
func TestRedisLocker_MutualExclusion(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	locker := NewRedisLocker(rdb, 2*time.Second)
	advisorID := "locker-test-" + time.Now().Format("150405.000000")

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), advisorID)
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(10 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Errorf("max holders = %d, want 1", maxInside.Load())
	}
	if n, _ := rdb.Exists(context.Background(), lockKey(advisorID)).Result(); n != 0 {
		t.Errorf("lock key still present after release")
	}
}
