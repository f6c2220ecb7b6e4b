package runguard

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunGuard grants single-flight execution of named periodic jobs. A slow run
// that overlaps the next tick must not be joined by a second run of the same
// job, so each run acquires the job's slot first and releases it when done.
type RunGuard interface {
	// TryAcquire claims the slot for job. ok is false when another run
	// holds it. On success the returned release func frees the slot.
	TryAcquire(ctx context.Context, job string) (release func(), ok bool, err error)
}

type redisRunGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (g *redisRunGuard) TryAcquire(ctx context.Context, job string) (func(), bool, error) {
	key := g.prefix + ":" + job
	ok, err := g.client.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		_ = g.client.Del(context.Background(), key).Err()
	}
	return release, true, nil
}

type memoryRunGuard struct {
	mu      sync.Mutex
	running map[string]time.Time
	ttl     time.Duration
}

func newMemoryRunGuard(ttl time.Duration) *memoryRunGuard {
	return &memoryRunGuard{
		running: make(map[string]time.Time),
		ttl:     ttl,
	}
}

func (g *memoryRunGuard) TryAcquire(_ context.Context, job string) (func(), bool, error) {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if exp, ok := g.running[job]; ok && exp.After(now) {
		return nil, false, nil
	}

	g.running[job] = now.Add(g.ttl)
	release := func() {
		g.mu.Lock()
		delete(g.running, job)
		g.mu.Unlock()
	}
	return release, true, nil
}

// New builds a Redis-backed run guard and falls back to in-memory on failure.
// The in-memory guard is only correct for a single process; the TTL bounds
// how long a crashed run can hold a slot either way.
func New(addr, pass string, db int, ttl time.Duration) (RunGuard, error) {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if addr == "" {
		return newMemoryRunGuard(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryRunGuard(ttl), err
	}

	return &redisRunGuard{
		client: client,
		prefix: "leadflow:job",
		ttl:    ttl,
	}, nil
}
