// Package ratelimit throttles public visit requests per lead contact and per client IP.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

const (
	window         = time.Hour
	defaultMaxKeys = 10000
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	ContactCooldown   time.Duration // Minimum time between requests from one lead contact
	ContactMaxPerHour int
	IPMaxPerHour      int
	// MaxKeys bounds tracked contacts and IPs; the least recently used are evicted.
	MaxKeys int

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		ContactCooldown:   30 * time.Second,
		ContactMaxPerHour: 5,
		IPMaxPerHour:      30,
		MaxKeys:           defaultMaxKeys,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

type entry struct {
	count   int
	firstAt time.Time // Start of the current window
	lastAt  time.Time
}

// Limiter tracks visit requests by contact and by IP within a rolling hour.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.Mutex
	// Keyed by tenant plus a hash of the contact or IP
	byContact *expirable.LRU[string, entry]
	byIP      *expirable.LRU[string, entry]
}

// New creates a limiter. A nil config uses DefaultConfig.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	return &Limiter{
		config:    cfg,
		clock:     clock,
		byContact: expirable.NewLRU[string, entry](maxKeys, nil, window),
		byIP:      expirable.NewLRU[string, entry](maxKeys, nil, window),
	}
}

// Check reports whether a visit request is allowed. It does not consume quota;
// call Record once the request was accepted.
func (l *Limiter) Check(tenantID int64, contact, ip string) LimitResult {
	now := l.clock.Now()
	contactKey := hashKey(tenantID, "contact:", normalizeContact(contact))
	ipKey := hashKey(tenantID, "ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	if contact != "" {
		if e, ok := l.byContact.Peek(contactKey); ok {
			if elapsed := now.Sub(e.lastAt); elapsed < l.config.ContactCooldown {
				return LimitResult{RetryAfter: l.config.ContactCooldown - elapsed, Reason: "cooldown"}
			}
			if l.config.ContactMaxPerHour > 0 && now.Sub(e.firstAt) < window && e.count >= l.config.ContactMaxPerHour {
				return LimitResult{RetryAfter: window - now.Sub(e.firstAt), Reason: "contact_hourly_limit"}
			}
		}
	}

	if e, ok := l.byIP.Peek(ipKey); ok {
		if l.config.IPMaxPerHour > 0 && now.Sub(e.firstAt) < window && e.count >= l.config.IPMaxPerHour {
			return LimitResult{RetryAfter: window - now.Sub(e.firstAt), Reason: "ip_hourly_limit"}
		}
	}

	return LimitResult{Allowed: true}
}

// Record counts an accepted visit request.
func (l *Limiter) Record(tenantID int64, contact, ip string) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if contact != "" {
		record(l.byContact, hashKey(tenantID, "contact:", normalizeContact(contact)), now)
	}
	record(l.byIP, hashKey(tenantID, "ip:", ip), now)
}

// Len returns the number of tracked contacts and IPs.
func (l *Limiter) Len() int {
	return l.byContact.Len() + l.byIP.Len()
}

func record(cache *expirable.LRU[string, entry], key string, now time.Time) {
	e, ok := cache.Peek(key)
	if !ok || now.Sub(e.firstAt) >= window {
		cache.Add(key, entry{count: 1, firstAt: now, lastAt: now})
		return
	}
	e.count++
	e.lastAt = now
	cache.Add(key, e)
}

func hashKey(tenantID int64, prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return strconv.FormatInt(tenantID, 10) + ":" + prefix + hex.EncodeToString(hash[:8])
}

// normalizeContact lowercases the contact to prevent case-based bypass.
func normalizeContact(contact string) string {
	return strings.ToLower(strings.TrimSpace(contact))
}

// SanitizeContact masks an email or phone for logging.
func SanitizeContact(contact string) string {
	contact = normalizeContact(contact)
	if at := strings.LastIndex(contact, "@"); at >= 0 {
		local, domain := contact[:at], contact[at+1:]
		if len(local) > 2 {
			return local[:2] + "***@" + domain
		}
		return "***@" + domain
	}
	if len(contact) >= 4 {
		return "***" + contact[len(contact)-4:]
	}
	return "***"
}

// LogExceeded logs a rejected visit request with a masked contact.
func LogExceeded(logger *zerolog.Logger, contact, ip string, result LimitResult) {
	logger.Warn().
		Str("event", "rate_limit_exceeded").
		Str("contact", SanitizeContact(contact)).
		Str("ip", ip).
		Str("reason", result.Reason).
		Dur("retry_after", result.RetryAfter).
		Msg("Visit request rate limit exceeded")
}
