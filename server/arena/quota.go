package arena

import (
	"context"
	"log"
	"strings"
	"sync"
)

const (
	// DefaultPromptLimit is the number of distinct prompts a session may generate.
	DefaultPromptLimit = 5
	maxPromptKeyLen    = 500
)

// NormalizePrompt folds a raw prompt into the key counted against a session.
func NormalizePrompt(raw string) string {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if r := []rune(key); len(r) > maxPromptKeyLen {
		key = string(r[:maxPromptKeyLen])
	}
	return key
}

// QuotaBackend records prompt keys per session. Admit must be atomic: the
// key is added only when it is already present or the session holds fewer
// than limit keys. used is the session's key count after the call.
type QuotaBackend interface {
	Admit(ctx context.Context, sessionID, key string, limit int) (allowed bool, used int, err error)
}

// MemoryQuota is the in-process QuotaBackend.
type MemoryQuota struct {
	mu       sync.Mutex
	sessions map[string]map[string]struct{}
}

func NewMemoryQuota() *MemoryQuota {
	return &MemoryQuota{sessions: make(map[string]map[string]struct{})}
}

func (m *MemoryQuota) Admit(_ context.Context, sessionID, key string, limit int) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen, ok := m.sessions[sessionID]
	if !ok {
		seen = make(map[string]struct{})
		m.sessions[sessionID] = seen
	}
	if _, ok := seen[key]; ok {
		return true, len(seen), nil
	}
	if len(seen) >= limit {
		return false, len(seen), nil
	}
	seen[key] = struct{}{}
	return true, len(seen), nil
}

// Admission is the outcome of a quota check.
type Admission struct {
	Allowed   bool
	Limit     int
	Remaining int
}

// QuotaTracker enforces the per-session budget of distinct prompts.
type QuotaTracker struct {
	limit    int
	backend  QuotaBackend
	fallback *MemoryQuota
}

// NewQuotaTracker uses backend when non-nil and the in-memory store otherwise.
// It also falls back to memory for any call where backend fails. The fallback
// fails open: during a backend outage a session is counted against a fresh
// in-memory budget, so it may get up to limit extra prompts.
func NewQuotaTracker(limit int, backend QuotaBackend) *QuotaTracker {
	if limit <= 0 {
		limit = DefaultPromptLimit
	}
	fallback := NewMemoryQuota()
	if backend == nil {
		backend = fallback
	}
	return &QuotaTracker{limit: limit, backend: backend, fallback: fallback}
}

func (t *QuotaTracker) Limit() int { return t.limit }

// Admit checks rawPrompt against the session budget. Resubmitting a prompt
// already seen by the session is always allowed and never counts twice.
func (t *QuotaTracker) Admit(ctx context.Context, sessionID, rawPrompt string) Admission {
	key := NormalizePrompt(rawPrompt)
	allowed, used, err := t.backend.Admit(ctx, sessionID, key, t.limit)
	if err != nil {
		log.Printf("quota backend failed (using memory): %v", err)
		allowed, used, _ = t.fallback.Admit(ctx, sessionID, key, t.limit)
	}
	if !allowed {
		return Admission{Allowed: false, Limit: t.limit, Remaining: 0}
	}
	remaining := t.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Admission{Allowed: true, Limit: t.limit, Remaining: remaining}
}
