package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheck_Cooldown(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ContactCooldown:   60 * time.Second,
		ContactMaxPerHour: 5,
		IPMaxPerHour:      20,
		Clock:             clock,
	})

	contact := "lead@example.com"
	ip := "203.0.113.10"

	if result := limiter.Check(1, contact, ip); !result.Allowed {
		t.Fatalf("first request should be allowed, got %s", result.Reason)
	}
	limiter.Record(1, contact, ip)

	clock.Advance(30 * time.Second)
	result := limiter.Check(1, contact, ip)
	if result.Allowed || result.Reason != "cooldown" {
		t.Fatalf("expected cooldown, got %+v", result)
	}
	if result.RetryAfter != 30*time.Second {
		t.Fatalf("expected RetryAfter 30s, got %v", result.RetryAfter)
	}

	clock.Advance(31 * time.Second)
	if result := limiter.Check(1, contact, ip); !result.Allowed {
		t.Fatalf("request after cooldown should be allowed, got %s", result.Reason)
	}
}

func TestCheck_ContactHourlyLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ContactCooldown:   time.Millisecond,
		ContactMaxPerHour: 3,
		IPMaxPerHour:      100,
		Clock:             clock,
	})

	for i := 0; i < 3; i++ {
		limiter.Record(1, "lead@example.com", "203.0.113.10")
		clock.Advance(time.Second)
	}

	result := limiter.Check(1, "LEAD@example.com ", "203.0.113.99")
	if result.Allowed || result.Reason != "contact_hourly_limit" {
		t.Fatalf("expected contact_hourly_limit for normalized contact, got %+v", result)
	}

	clock.Advance(time.Hour)
	if result := limiter.Check(1, "lead@example.com", "203.0.113.10"); !result.Allowed {
		t.Fatalf("expected window reset after an hour, got %s", result.Reason)
	}
}

func TestCheck_IPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ContactCooldown:   time.Millisecond,
		ContactMaxPerHour: 100,
		IPMaxPerHour:      2,
		Clock:             clock,
	})

	limiter.Record(1, "a@example.com", "203.0.113.10")
	limiter.Record(1, "b@example.com", "203.0.113.10")

	result := limiter.Check(1, "c@example.com", "203.0.113.10")
	if result.Allowed || result.Reason != "ip_hourly_limit" {
		t.Fatalf("expected ip_hourly_limit, got %+v", result)
	}
	if result := limiter.Check(1, "c@example.com", "203.0.113.11"); !result.Allowed {
		t.Fatalf("other IP should be allowed, got %s", result.Reason)
	}
}

func TestCheck_TenantsAreIndependent(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{ContactCooldown: time.Minute, IPMaxPerHour: 1, Clock: clock})

	limiter.Record(1, "lead@example.com", "203.0.113.10")
	if result := limiter.Check(2, "lead@example.com", "203.0.113.10"); !result.Allowed {
		t.Fatalf("expected other tenant allowed, got %s", result.Reason)
	}
}

func TestCheckDoesNotConsumeQuota(t *testing.T) {
	limiter := New(&Config{ContactCooldown: time.Minute, ContactMaxPerHour: 1, IPMaxPerHour: 1, Clock: newMockClock()})

	for i := 0; i < 10; i++ {
		if result := limiter.Check(1, "lead@example.com", "203.0.113.10"); !result.Allowed {
			t.Fatalf("check %d should be allowed without a prior Record", i+1)
		}
	}
	if limiter.Len() != 0 {
		t.Fatalf("expected no tracked keys, got %d", limiter.Len())
	}
}

func TestMaxKeysEvicts(t *testing.T) {
	limiter := New(&Config{IPMaxPerHour: 1, MaxKeys: 2, Clock: newMockClock()})

	limiter.Record(1, "", "203.0.113.1")
	limiter.Record(1, "", "203.0.113.2")
	limiter.Record(1, "", "203.0.113.3")

	if limiter.Len() != 2 {
		t.Fatalf("expected 2 tracked keys, got %d", limiter.Len())
	}
	if result := limiter.Check(1, "", "203.0.113.1"); !result.Allowed {
		t.Fatalf("expected evicted IP to be allowed, got %s", result.Reason)
	}
}

func TestNew_NilConfig(t *testing.T) {
	limiter := New(nil)
	if limiter.config.ContactMaxPerHour != DefaultConfig().ContactMaxPerHour {
		t.Fatalf("expected default config")
	}
}

func TestConcurrentAccess(t *testing.T) {
	limiter := New(&Config{ContactCooldown: time.Millisecond, ContactMaxPerHour: 1000, IPMaxPerHour: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				limiter.Check(1, "lead@example.com", "203.0.113.10")
				limiter.Record(1, "lead@example.com", "203.0.113.10")
			}
		}()
	}
	wg.Wait()
}

func TestSanitizeContact(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"joao.silva@example.com", "jo***@example.com"},
		{"JOAO.SILVA@EXAMPLE.COM", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"+5511987654321", "***4321"},
		{"123", "***"},
		{"", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeContact(tt.input); got != tt.expected {
				t.Errorf("SanitizeContact(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expected   string
	}{
		{
			name:       "rightmost public forwarded hop",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.50",
		},
		{
			name:       "all forwarded hops private",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "10.0.0.1",
		},
		{
			name:       "real ip header",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.51",
		},
		{
			name:       "untrusted proxy ignores headers",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			remoteAddr: "192.168.1.100:54321",
			expected:   "192.168.1.100",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.168.1.100",
			expected:   "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.expected {
				t.Errorf("ClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.0.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"fe80::1", true},
		{"::ffff:192.168.1.1", true},
		{"::ffff:8.8.8.8", false},
		{"203.0.113.50", false},
		{"2001:4860:4860::8888", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := isPrivateIP(tt.ip); got != tt.expected {
				t.Errorf("isPrivateIP(%q) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
}
