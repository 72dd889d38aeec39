package auth

import (
	"context"
	"sync"
	"time"
)

// TokenBlacklist remembers revoked token ids (the JWT "jti") until the
// token would have expired on its own.
type TokenBlacklist interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// MemoryBlacklist 进程内的黑名单，没有 Redis 时使用。
// 其他进程 (例如 chat 服务器) 看不到这里撤销的 token。
type MemoryBlacklist struct {
	mu  sync.Mutex
	now func() time.Time
	ids map[string]time.Time
}

// NewMemoryBlacklist creates an empty MemoryBlacklist. A nil now means time.Now.
func NewMemoryBlacklist(now func() time.Time) *MemoryBlacklist {
	if now == nil {
		now = time.Now
	}
	return &MemoryBlacklist{now: now, ids: make(map[string]time.Time)}
}

// Add revokes jti. Already expired tokens are not stored.
func (b *MemoryBlacklist) Add(_ context.Context, jti string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for id, exp := range b.ids {
		if !exp.After(now) {
			delete(b.ids, id)
		}
	}
	if expiresAt.After(now) {
		b.ids[jti] = expiresAt
	}
	return nil
}

// IsBlacklisted reports whether jti was revoked and has not expired yet.
func (b *MemoryBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.ids[jti]
	return ok && exp.After(b.now()), nil
}
