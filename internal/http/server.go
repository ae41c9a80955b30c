// Package http exposes the planning engine over a JSON API.
package http

import (
	"container/list"
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"
	"github.com/xphabletx/envelope-lite/internal/payday"
	"github.com/xphabletx/envelope-lite/internal/services"
)

// LRU cache with TTL and size-based eviction
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *lruCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries.
func (c *lruCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// sessionEntry serializes one session's handler bodies so multi-step
// read-modify-read sequences stay consistent. The session's own lock
// still guards it against the debounced recompute goroutine.
type sessionEntry struct {
	mu      sync.Mutex
	session *payday.Session
	created time.Time
}

type Server struct {
	http.Server
	planner  *services.PlannerService
	backend  string
	freq     core.Frequency
	topGoals int
	debounce time.Duration

	sessions   map[string]*sessionEntry
	sessionsMu sync.Mutex

	analyticsCache *lruCache[analyticsResponse]
	rateLimiter    *rateLimiter

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// Options carries engine defaults into the server. A zero Debounce falls
// back to the engine default.
type Options struct {
	Backend          string
	DefaultFrequency core.Frequency
	TopGoals         int
	Debounce         time.Duration
}

func NewServer(addr string, planner *services.PlannerService, opts Options) *Server {
	if !opts.DefaultFrequency.IsValid() {
		opts.DefaultFrequency = core.Monthly
	}
	if opts.TopGoals < 1 {
		opts.TopGoals = 3
	}

	s := &Server{
		planner:          planner,
		backend:          opts.Backend,
		freq:             opts.DefaultFrequency,
		topGoals:         opts.TopGoals,
		debounce:         opts.Debounce,
		sessions:         make(map[string]*sessionEntry),
		analyticsCache:   newLRUCache[analyticsResponse](64, 30*time.Second),
		rateLimiter:      newRateLimiter(),
		stopCacheCleanup: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/projection", s.handleProjection)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/amount", s.handleSetAmount)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/allocations/{goalID}", s.handleUpdateAllocation)
	mux.HandleFunc("POST /api/v1/sessions/{id}/review", s.handleBeginReview)
	mux.HandleFunc("POST /api/v1/sessions/{id}/execute", s.handleExecute)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleCancelSession)
	mux.HandleFunc("GET /api/v1/analytics", s.handleAnalytics)

	s.Server = http.Server{
		Addr:    addr,
		Handler: s.limit(mux),
	}

	go s.startCacheCleanup()
	return s
}

// limit applies the per-IP rate limit to every request.
func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.analyticsCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
			s.expireSessions(time.Hour)
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// expireSessions drops sessions older than maxAge.
func (s *Server) expireSessions(maxAge time.Duration) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for id, entry := range s.sessions {
		if entry.created.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return time.Now().UTC().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(buf)
}

func (s *Server) putSession(id string, sess *payday.Session) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[id] = &sessionEntry{session: sess, created: time.Now()}
}

func (s *Server) getSession(id string) (*sessionEntry, bool) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	entry, ok := s.sessions[id]
	return entry, ok
}

func (s *Server) dropSession(id string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, id)
}
