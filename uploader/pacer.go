package uploader

import (
	"context"
	"fmt"
	"time"

	"github.com/olgasafonova/wiki-templates-uploader/metrics"
	"golang.org/x/time/rate"
)

// DefaultInterval is the pause between page writes.
const DefaultInterval = 6 * time.Second

// Pacer spaces out page writes so the wiki is not overloaded.
// Wait is called once after every saved page.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedPacer sleeps for a fixed interval.
type FixedPacer struct {
	Interval time.Duration
}

// Wait blocks for the interval or until ctx is done.
func (p FixedPacer) Wait(ctx context.Context) error {
	if p.Interval <= 0 {
		return ctx.Err()
	}
	start := time.Now()
	timer := time.NewTimer(p.Interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		metrics.PacerWaitSeconds.WithLabelValues("fixed").Observe(time.Since(start).Seconds())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoPacer never waits.
type NoPacer struct{}

// Wait returns immediately unless ctx is already done.
func (NoPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}

// BucketPacer is a token bucket refilled at one token per interval. Writes
// average one per interval; time a slow save spends beyond the interval is
// banked, so up to burst later writes may follow without a pause.
type BucketPacer struct {
	limiter *rate.Limiter
}

// NewBucketPacer creates a token bucket pacer. The bucket starts empty, so
// the first write is followed by a full interval.
func NewBucketPacer(interval time.Duration, burst int) *BucketPacer {
	if burst < 1 {
		burst = 1
	}
	if interval <= 0 {
		return &BucketPacer{limiter: rate.NewLimiter(rate.Inf, burst)}
	}
	limiter := rate.NewLimiter(rate.Every(interval), burst)
	limiter.ReserveN(time.Now(), burst)
	return &BucketPacer{limiter: limiter}
}

// Wait takes one token from the bucket, blocking until one is available.
func (p *BucketPacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	metrics.PacerWaitSeconds.WithLabelValues("bucket").Observe(time.Since(start).Seconds())
	return nil
}

// PacerFor builds a pacer by name: "fixed", "bucket" or "none".
func PacerFor(kind string, interval time.Duration, burst int) (Pacer, error) {
	switch kind {
	case "", "fixed":
		return FixedPacer{Interval: interval}, nil
	case "bucket":
		return NewBucketPacer(interval, burst), nil
	case "none":
		return NoPacer{}, nil
	default:
		return nil, fmt.Errorf("unknown pacer %q (want fixed, bucket or none)", kind)
	}
}
