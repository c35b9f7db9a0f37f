package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/time/rate"

	"statcube/internal/domain"
)

// DefaultCallTimeout bounds each individual blob-store call.
const DefaultCallTimeout = 30 * time.Second

// Compile-time check.
var _ domain.BlobStore = (*GuardedStore)(nil)

// GuardedStore wraps another blob store with a per-call timeout and a
// token-bucket rate limit. Every operation that loads a file is a potential
// suspension point; the guard turns a deadline hit into a retryable
// TransientStorageError instead of a hang.
type GuardedStore struct {
	inner   domain.BlobStore
	timeout time.Duration
	limiter *rate.Limiter
}

// NewGuardedStore wraps inner. timeout <= 0 uses DefaultCallTimeout;
// rps <= 0 disables throttling.
func NewGuardedStore(inner domain.BlobStore, timeout time.Duration, rps float64, burst int) *GuardedStore {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &GuardedStore{inner: inner, timeout: timeout, limiter: limiter}
}

func (g *GuardedStore) acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, nil, domain.ErrTransientStorage(err, "storage throttle: %v", err)
		}
	}
	bounded, cancel := context.WithTimeout(ctx, g.timeout)
	return bounded, cancel, nil
}

func mapTimeout(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTransientStorage(err, "storage call timed out")
	}
	return err
}

// LoadBuffer reads with a bounded deadline.
func (g *GuardedStore) LoadBuffer(ctx context.Context, datasetID, filename string) ([]byte, error) {
	bounded, cancel, err := g.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	data, err := g.inner.LoadBuffer(bounded, datasetID, filename)
	return data, mapTimeout(err)
}

// SaveBuffer writes with a bounded deadline.
func (g *GuardedStore) SaveBuffer(ctx context.Context, datasetID, filename string, data []byte) error {
	bounded, cancel, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return mapTimeout(g.inner.SaveBuffer(bounded, datasetID, filename, data))
}

// Delete deletes with a bounded deadline.
func (g *GuardedStore) Delete(ctx context.Context, datasetID, filename string) error {
	bounded, cancel, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return mapTimeout(g.inner.Delete(bounded, datasetID, filename))
}

// LoadStream opens a stream. The deadline covers only the open, not the
// lifetime of the returned reader.
func (g *GuardedStore) LoadStream(ctx context.Context, datasetID, filename string) (io.ReadCloser, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, domain.ErrTransientStorage(err, "storage throttle: %v", err)
		}
	}
	rc, err := g.inner.LoadStream(ctx, datasetID, filename)
	return rc, mapTimeout(err)
}
