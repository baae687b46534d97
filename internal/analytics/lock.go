package analytics

import (
	"context"
	"sync"
	"time"
)

type activeBucket struct {
	start time.Time
	end   time.Time
	done  chan struct{}
}

// BucketLock serializes batches whose time buckets overlap. Disjoint
// buckets proceed concurrently; an overlapping acquire waits for the
// holder to release or for its context to end.
type BucketLock struct {
	mu     sync.Mutex
	active []*activeBucket
}

// NewBucketLock creates an empty lock registry.
func NewBucketLock() *BucketLock {
	return &BucketLock{}
}

// Acquire blocks until no active bucket overlaps [start, end), then
// registers the bucket. The returned release function must be called
// exactly once.
func (l *BucketLock) Acquire(ctx context.Context, start, end time.Time) (func(), error) {
	for {
		l.mu.Lock()

		var conflict *activeBucket
		for _, b := range l.active {
			if start.Before(b.end) && end.After(b.start) {
				conflict = b
				break
			}
		}

		if conflict == nil {
			bucket := &activeBucket{start: start, end: end, done: make(chan struct{})}
			l.active = append(l.active, bucket)
			l.mu.Unlock()
			return func() { l.release(bucket) }, nil
		}

		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-conflict.done:
		}
	}
}

func (l *BucketLock) release(bucket *activeBucket) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, b := range l.active {
		if b == bucket {
			l.active = append(l.active[:i], l.active[i+1:]...)
			break
		}
	}
	close(bucket.done)
}
