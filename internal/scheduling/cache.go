package scheduling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vitrine-imob/vitrine/internal/availability"
)

// SlotCache stores computed slot lists outside the engine. Keys embed hashes of
// every input, so an entry can never be served for different inputs; tenant
// invalidation only frees space early.
type SlotCache interface {
	Get(ctx context.Context, key string) ([]availability.TimeSlot, bool)
	Set(ctx context.Context, key string, slots []availability.TimeSlot)
	InvalidateTenant(ctx context.Context, tenantID int64)
}

func tenantKeyPrefix(tenantID int64) string {
	return "slots:" + strconv.FormatInt(tenantID, 10) + ":"
}

// cacheKey buckets now to the tenant-local day: slot output only depends on the date of now.
func cacheKey(tenantID int64, rules []availability.WeeklyRule, blackouts []availability.BlackoutPeriod, bookings []availability.Appointment, now time.Time) string {
	return tenantKeyPrefix(tenantID) +
		now.Format(availability.DateLayout) + ":" +
		now.Location().String() + ":" +
		hashRules(rules) + ":" +
		hashBlackouts(blackouts) + ":" +
		hashBookings(bookings, now.Location())
}

func hashRules(rules []availability.WeeklyRule) string {
	var b strings.Builder
	for _, r := range rules {
		fmt.Fprintf(&b, "%d|%d|%d|%d|%t;", r.DayOfWeek, r.StartTime, r.EndTime, r.SlotDurationMinutes, r.Active)
	}
	return shortHash(b.String())
}

func hashBlackouts(blackouts []availability.BlackoutPeriod) string {
	var b strings.Builder
	for _, p := range blackouts {
		fmt.Fprintf(&b, "%s|%s|%t;", p.StartDate.Format(availability.DateLayout), p.EndDate.Format(availability.DateLayout), p.Recurring)
	}
	return shortHash(b.String())
}

func hashBookings(bookings []availability.Appointment, loc *time.Location) string {
	var b strings.Builder
	for _, a := range bookings {
		fmt.Fprintf(&b, "%s|%t;", availability.EffectiveTime(a).In(loc).Format(time.RFC3339), a.Blocks())
	}
	return shortHash(b.String())
}

func shortHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}

// MemoryCache is an in-process expirable LRU.
type MemoryCache struct {
	lru *expirable.LRU[string, []availability.TimeSlot]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, []availability.TimeSlot](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]availability.TimeSlot, bool) {
	return c.lru.Get(key)
}

func (c *MemoryCache) Set(_ context.Context, key string, slots []availability.TimeSlot) {
	c.lru.Add(key, slots)
}

func (c *MemoryCache) InvalidateTenant(_ context.Context, tenantID int64) {
	prefix := tenantKeyPrefix(tenantID)
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]availability.TimeSlot, bool) { return nil, false }
func (noCache) Set(context.Context, string, []availability.TimeSlot)        {}
func (noCache) InvalidateTenant(context.Context, int64)                     {}
