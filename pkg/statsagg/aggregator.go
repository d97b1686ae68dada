// Package statsagg accumulates per-bucket request counters in process
// memory and periodically flushes them into the metadata store,
// grounded on the teacher's pkg/cache/flusher background-ticker
// pattern (Start/Stop over a context + WaitGroup, periodic sweep).
package statsagg

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/byteserve/internal/logger"
	"github.com/marmos91/byteserve/pkg/metadata"
	"github.com/marmos91/byteserve/pkg/metrics"
)

const defaultFlushInterval = time.Minute

// Delta is a single request's contribution to a bucket's day counters.
type Delta struct {
	BucketID      string
	APIRequests   int64
	S3Requests    int64
	WebDAVReqs    int64
	BytesServed   int64
	RequestsCount int64
}

// Aggregator accumulates Deltas in memory, keyed by (bucketID, UTC
// day), and flushes them to a metadata.Store on a timer. Readers of
// the store must tolerate eventual visibility between flushes.
type Aggregator struct {
	store         metadata.Store
	flushInterval time.Duration

	mu      sync.Mutex
	buckets map[string]*metadata.DayStats // key: bucketID|day

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics metrics.StatsMetrics
}

// New returns an Aggregator that flushes into store every
// flushInterval (defaultFlushInterval if zero).
func New(store metadata.Store, flushInterval time.Duration) *Aggregator {
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	return &Aggregator{
		store:         store,
		flushInterval: flushInterval,
		buckets:       map[string]*metadata.DayStats{},
		metrics:       metrics.NewStatsMetrics(),
	}
}

func dayKey(bucketID, day string) string { return bucketID + "|" + day }

// Record merges a request's counters into the current UTC day's
// in-memory bucket, called once per handled request.
func (a *Aggregator) Record(d Delta) {
	a.record(d, time.Now().UTC())
}

func (a *Aggregator) record(d Delta, now time.Time) {
	day := now.Format("2006-01-02")
	key := dayKey(d.BucketID, day)

	a.mu.Lock()
	cur, ok := a.buckets[key]
	if !ok {
		cur = &metadata.DayStats{BucketID: d.BucketID, Day: day}
		a.buckets[key] = cur
	}
	cur.APIRequests += d.APIRequests
	cur.S3Requests += d.S3Requests
	cur.WebDAVReqs += d.WebDAVReqs
	cur.BytesServed += d.BytesServed
	cur.RequestsCount += d.RequestsCount
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.ObserveRequest(d.BucketID, surfaceOf(d), d.BytesServed)
	}
}

// surfaceOf names which wire surface a Delta came from, for the
// Prometheus label; a Delta only ever sets one of these counters.
func surfaceOf(d Delta) string {
	switch {
	case d.S3Requests > 0:
		return "s3"
	case d.WebDAVReqs > 0:
		return "webdav"
	default:
		return "api"
	}
}

// Start begins the periodic flush loop. It runs until ctx is canceled
// or Stop is called.
func (a *Aggregator) Start(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.run()
}

// Stop cancels the flush loop, performs one final flush, and blocks
// until the background goroutine exits.
func (a *Aggregator) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *Aggregator) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			a.flush()
			return
		case <-ticker.C:
			a.flush()
		}
	}
}

// flush drains the in-memory counters and persists them.
func (a *Aggregator) flush() {
	a.mu.Lock()
	if len(a.buckets) == 0 {
		a.mu.Unlock()
		return
	}
	deltas := make([]metadata.DayStats, 0, len(a.buckets))
	for _, d := range a.buckets {
		deltas = append(deltas, *d)
	}
	a.buckets = map[string]*metadata.DayStats{}
	a.mu.Unlock()

	if err := a.store.FlushStats(context.Background(), deltas); err != nil {
		logger.Error("failed to flush stats", "error", err, "buckets", len(deltas))
	}
}
