package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyAttempts 登录失败次数过多
var ErrTooManyAttempts = errors.New("too many login attempts, please try again later")

// AttemptStore 登录尝试记录
// Check 在超出限制时返回 ErrTooManyAttempts；Record 成功时清零，失败时计数
type AttemptStore interface {
	Check(ctx context.Context, key string) error
	Record(ctx context.Context, key string, success bool) error
}

// AttemptKey 规范化登录标识（邮箱不区分大小写）
func AttemptKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RedisAttemptStore 基于 Redis 计数与 TTL 的实现，可在多实例间共享
type RedisAttemptStore struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	prefix      string
}

// NewRedisAttemptStore 创建 Redis 登录尝试记录
func NewRedisAttemptStore(client *redis.Client, maxAttempts int, window time.Duration) *RedisAttemptStore {
	return &RedisAttemptStore{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		prefix:      "login_attempts:",
	}
}

// Check 检查是否已被锁定
func (s *RedisAttemptStore) Check(ctx context.Context, key string) error {
	count, err := s.client.Get(ctx, s.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get login attempts: %w", err)
	}
	if count >= s.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

// Record 记录一次登录结果
func (s *RedisAttemptStore) Record(ctx context.Context, key string, success bool) error {
	k := s.prefix + key
	if success {
		if err := s.client.Del(ctx, k).Err(); err != nil {
			return fmt.Errorf("reset login attempts: %w", err)
		}
		return nil
	}

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("increment login attempts: %w", err)
	}
	// 首次失败时开始计时窗口
	if count == 1 {
		if err := s.client.Expire(ctx, k, s.window).Err(); err != nil {
			return fmt.Errorf("expire login attempts: %w", err)
		}
	}
	return nil
}

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryAttemptStore 进程内实现，仅适用于单实例部署
type MemoryAttemptStore struct {
	mu          sync.Mutex
	entries     map[string]*attemptEntry
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewMemoryAttemptStore 创建内存登录尝试记录
func NewMemoryAttemptStore(maxAttempts int, window time.Duration) *MemoryAttemptStore {
	return &MemoryAttemptStore{
		entries:     make(map[string]*attemptEntry),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// live 返回未过期的记录，过期记录会被清除
func (s *MemoryAttemptStore) live(key string) *attemptEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

// Check 检查是否已被锁定
func (s *MemoryAttemptStore) Check(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(key); e != nil && e.count >= s.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

// Record 记录一次登录结果
func (s *MemoryAttemptStore) Record(_ context.Context, key string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if success {
		delete(s.entries, key)
		return nil
	}

	if e := s.live(key); e != nil {
		e.count++
		return nil
	}
	s.entries[key] = &attemptEntry{count: 1, expiresAt: s.now().Add(s.window)}
	return nil
}
