package stats

import (
	"sync"
	"time"
)

const historySize = 50

// Record is one completed search observation.
type Record struct {
	Query      string    `json:"query"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"durationMs"`
	Provider   string    `json:"provider"`
	At         time.Time `json:"at"`
}

// Snapshot is the computed view over everything recorded so far.
type Snapshot struct {
	TotalSearches uint64            `json:"totalSearches"`
	Successful    uint64            `json:"successful"`
	Failed        uint64            `json:"failed"`
	SuccessRate   float64           `json:"successRate"`
	CacheHits     uint64            `json:"cacheHits"`
	CacheMisses   uint64            `json:"cacheMisses"`
	CacheHitRate  float64           `json:"cacheHitRate"`
	RateLimited   uint64            `json:"rateLimited"`
	AvgDurationMs float64           `json:"avgDurationMs"`
	MaxDurationMs int64             `json:"maxDurationMs"`
	Providers     map[string]uint64 `json:"providers"`
	Uptime        string            `json:"uptime"`
	Recent        []Record          `json:"recent"`
}

// Tracker accumulates rolling counters and a bounded recent-history
// ring. Every method is safe for concurrent use and never blocks on
// anything but its own mutex; recording is advisory and cannot fail.
type Tracker struct {
	mu            sync.Mutex
	totalSearches uint64
	successful    uint64
	failed        uint64
	cacheHits     uint64
	cacheMisses   uint64
	rateLimited   uint64
	durationSum   int64
	maxDuration   int64
	providers     map[string]uint64
	recent        [historySize]Record
	recentLen     int
	recentNext    int
	started       time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		providers: make(map[string]uint64),
		started:   time.Now(),
	}
}

// Record notes one completed search.
func (t *Tracker) Record(query string, success bool, duration time.Duration, providerName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalSearches++
	if success {
		t.successful++
	} else {
		t.failed++
	}

	ms := duration.Milliseconds()
	t.durationSum += ms
	if ms > t.maxDuration {
		t.maxDuration = ms
	}

	if providerName != "" {
		t.providers[providerName]++
	}

	t.recent[t.recentNext] = Record{
		Query:      query,
		Success:    success,
		DurationMs: ms,
		Provider:   providerName,
		At:         time.Now(),
	}
	t.recentNext = (t.recentNext + 1) % historySize
	if t.recentLen < historySize {
		t.recentLen++
	}
}

// RecordCacheHit notes a lookup served from cache.
func (t *Tracker) RecordCacheHit() {
	t.mu.Lock()
	t.cacheHits++
	t.mu.Unlock()
}

// RecordCacheMiss notes a lookup that went to a provider.
func (t *Tracker) RecordCacheMiss() {
	t.mu.Lock()
	t.cacheMisses++
	t.mu.Unlock()
}

// RecordRateLimited notes a denied admission.
func (t *Tracker) RecordRateLimited() {
	t.mu.Lock()
	t.rateLimited++
	t.mu.Unlock()
}

// Summary computes the current snapshot. Recent records are returned
// oldest first.
func (t *Tracker) Summary() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		TotalSearches: t.totalSearches,
		Successful:    t.successful,
		Failed:        t.failed,
		CacheHits:     t.cacheHits,
		CacheMisses:   t.cacheMisses,
		RateLimited:   t.rateLimited,
		MaxDurationMs: t.maxDuration,
		Providers:     make(map[string]uint64, len(t.providers)),
		Uptime:        time.Since(t.started).Round(time.Second).String(),
		Recent:        make([]Record, 0, t.recentLen),
	}

	if t.totalSearches > 0 {
		snap.SuccessRate = float64(t.successful) / float64(t.totalSearches)
		snap.AvgDurationMs = float64(t.durationSum) / float64(t.totalSearches)
	}
	if lookups := t.cacheHits + t.cacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(t.cacheHits) / float64(lookups)
	}

	for name, count := range t.providers {
		snap.Providers[name] = count
	}

	start := t.recentNext - t.recentLen
	if start < 0 {
		start += historySize
	}
	for i := 0; i < t.recentLen; i++ {
		snap.Recent = append(snap.Recent, t.recent[(start+i)%historySize])
	}

	return snap
}
