package safety

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultRateLimitMessage = "Too many requests. Try again shortly."

type Config struct {
	Enabled          bool
	PerSecond        float64
	Burst            int
	IdleTTL          time.Duration
	RateLimitMessage string
}

type Decision struct {
	Allowed bool
	Notify  string
	Reason  string
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Policy keeps one token bucket per client key.
type Policy struct {
	cfg     Config
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*clientBucket
}

func New(cfg Config) *Policy {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 5
	}
	if cfg.Burst < 1 {
		cfg.Burst = 10
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if strings.TrimSpace(cfg.RateLimitMessage) == "" {
		cfg.RateLimitMessage = defaultRateLimitMessage
	}
	return &Policy{
		cfg:     cfg,
		now:     time.Now,
		buckets: map[string]*clientBucket{},
	}
}

func (p *Policy) Check(client string) Decision {
	if p == nil || !p.cfg.Enabled {
		return Decision{Allowed: true}
	}
	key := normalize(client)
	if key == "" {
		key = "unknown"
	}
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.evictIdle(now)
	bucket, ok := p.buckets[key]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(rate.Limit(p.cfg.PerSecond), p.cfg.Burst)}
		p.buckets[key] = bucket
	}
	bucket.lastSeen = now
	if !bucket.limiter.AllowN(now, 1) {
		return Decision{Allowed: false, Notify: p.cfg.RateLimitMessage, Reason: "rate_limited"}
	}
	return Decision{Allowed: true}
}

func (p *Policy) evictIdle(now time.Time) {
	cutoff := now.Add(-p.cfg.IdleTTL)
	for key, bucket := range p.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(p.buckets, key)
		}
	}
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
