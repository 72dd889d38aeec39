package activitylog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StorageKey is the single key the whole list is persisted under.
const StorageKey = "userLogs"

// LogEntry is one recorded action.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"userAgent"`
	IP        string    `json:"ip,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

type requestInfoKey struct{}

type requestInfo struct {
	userAgent string
	ip        string
}

// WithRequestInfo attaches the caller's user agent and address to ctx.
func WithRequestInfo(ctx context.Context, userAgent, ip string) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{userAgent: userAgent, ip: ip})
}

// RequestInfoFrom returns what WithRequestInfo stored, or empty strings.
func RequestInfoFrom(ctx context.Context) (userAgent, ip string) {
	info := requestInfoFrom(ctx)
	return info.userAgent, info.ip
}

func requestInfoFrom(ctx context.Context) requestInfo {
	if ctx == nil {
		return requestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(requestInfo)
	return info
}

// Logger keeps the list in memory and mirrors it to the Store after every
// write. It is safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	store  Store
	now    func() time.Time
	logs   []LogEntry
	logger *slog.Logger
}

// New creates a Logger over store, seeded with whatever the store already holds.
// A nil now means time.Now.
func New(store Store, now func() time.Time, logger *slog.Logger) *Logger {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{
		store:  store,
		now:    now,
		logs:   []LogEntry{},
		logger: logger.With("component", "activitylog"),
	}
	if saved, ok := l.load(); ok {
		l.logs = saved
	}
	return l
}

// Log appends an entry and persists the full list. Persist failures are
// dropped: the log carries no correctness obligation.
func (l *Logger) Log(ctx context.Context, action, details string) LogEntry {
	info := requestInfoFrom(ctx)
	entry := LogEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		UserAgent: info.userAgent,
		IP:        info.ip,
		Action:    action,
		Details:   details,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, entry)
	l.persist()
	l.logger.Debug("user activity", "action", action, "details", details)
	return entry
}

// Logs reloads from the store and returns the entries, newest first.
func (l *Logger) Logs(ctx context.Context) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if saved, ok := l.load(); ok {
		l.logs = saved
	}
	sort.SliceStable(l.logs, func(i, j int) bool {
		return l.logs[i].Timestamp.After(l.logs[j].Timestamp)
	})
	out := make([]LogEntry, len(l.logs))
	copy(out, l.logs)
	return out
}

// Clear drops every entry, in memory and in the store.
func (l *Logger) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = []LogEntry{}
	if err := l.store.Delete(StorageKey); err != nil {
		l.logger.Debug("activity log clear failed", "error", err)
	}
}

// must hold l.mu
func (l *Logger) persist() {
	data, err := json.Marshal(l.logs)
	if err != nil {
		l.logger.Debug("activity log encode failed", "error", err)
		return
	}
	if err := l.store.Set(StorageKey, data); err != nil {
		l.logger.Debug("activity log persist failed", "error", err)
	}
}

// load returns the stored list; ok is false when nothing usable is stored.
func (l *Logger) load() ([]LogEntry, bool) {
	data, err := l.store.Get(StorageKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			l.logger.Debug("activity log load failed", "error", err)
		}
		return nil, false
	}
	var saved []LogEntry
	if err := json.Unmarshal(data, &saved); err != nil {
		l.logger.Debug("activity log is corrupt, keeping memory copy", "error", err)
		return nil, false
	}
	if saved == nil {
		saved = []LogEntry{}
	}
	return saved, true
}
