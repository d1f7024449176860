// Package rediscache adds a Redis read-through cache in front of a board repository.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/evanschultz/initboard/internal/app"
	"github.com/evanschultz/initboard/internal/domain"
)

// Repository caches ordered task lists per initiative. Every other call goes straight
// to the wrapped repository. Redis failures fall back to the wrapped repository.
type Repository struct {
	app.Repository
	redis  *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the cache logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New wraps base with a cache on client. A zero ttl disables writes to the cache.
func New(base app.Repository, client *redis.Client, ttl time.Duration, opts ...Option) *Repository {
	if base == nil {
		panic("rediscache.New: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	r := &Repository{
		Repository: base,
		redis:      client,
		ttl:        ttl,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect dials addr and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// ListTasks serves from the cache when possible.
func (r *Repository) ListTasks(ctx context.Context, initiativeID string) ([]domain.Task, error) {
	if tasks, ok := r.load(ctx, initiativeID); ok {
		return tasks, nil
	}
	tasks, err := r.Repository.ListTasks(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, initiativeID, tasks)
	return tasks, nil
}

// CreateTask writes through and evicts the initiative's cached list.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	if err := r.Repository.CreateTask(ctx, t); err != nil {
		return err
	}
	r.evict(ctx, t.InitiativeID)
	return nil
}

// ReplaceTaskOrder writes through and evicts the initiative's cached list. The entry is
// evicted on failure too, since a rejected update usually means the cache is stale.
func (r *Repository) ReplaceTaskOrder(ctx context.Context, initiativeID string, tasks []domain.Task, now time.Time) error {
	err := r.Repository.ReplaceTaskOrder(ctx, initiativeID, tasks, now)
	r.evict(ctx, initiativeID)
	return err
}

func (r *Repository) load(ctx context.Context, initiativeID string) ([]domain.Task, bool) {
	if r.redis == nil {
		return nil, false
	}
	key := tasksCacheKey(initiativeID)
	data, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("task cache read failed", "initiative_id", initiativeID, "err", err)
			_ = r.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = r.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

func (r *Repository) store(ctx context.Context, initiativeID string, tasks []domain.Task) {
	if r.redis == nil || r.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, tasksCacheKey(initiativeID), data, r.ttl).Err(); err != nil {
		r.logger.Warn("task cache write failed", "initiative_id", initiativeID, "err", err)
	}
}

func (r *Repository) evict(ctx context.Context, initiativeID string) {
	if r.redis == nil {
		return
	}
	_, _ = r.redis.Del(ctx, tasksCacheKey(initiativeID)).Result()
}

func tasksCacheKey(initiativeID string) string {
	return "tasks:" + initiativeID
}
