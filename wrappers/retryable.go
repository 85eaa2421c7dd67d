package wrappers

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

// RetryPolicy is the exponential-backoff schedule of spec §4.9: N attempts
// (default 3), base 100ms, cap 5s. Jitter is the library's multiplicative
// randomisation (see newBackOff); it is not an additive jitter bounded by
// 100ms. Grounded on
// github.com/cenkalti/backoff/v4's ExponentialBackOff, a teacher indirect
// dependency promoted here to direct use.
type RetryPolicy struct {
	MaxAttempts  int
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// DefaultRetryPolicy is 3 attempts, base 100ms, cap 5s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseInterval: 100 * time.Millisecond, MaxInterval: 5 * time.Second}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseInterval
	eb.MaxInterval = p.MaxInterval
	// The randomisation factor is min(1, 100ms/base), so the first interval
	// varies by at most ±100ms. The jitter stays multiplicative: later,
	// longer intervals vary by the same factor of their own length.
	eb.RandomizationFactor = min(1.0, float64(100*time.Millisecond)/float64(p.BaseInterval))
	return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1))
}

// retryable applies policy to op, retrying only kotaerr.IOError
// failures (spec §7:"Retries are applied by the retry
// wrapper only to IOError-class failures; ValidationError and
// CorruptedStorage are never retried").
func retryable(ctx context.Context, policy RetryPolicy, op func() error) error {
	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(kotaerr.Wrap(kotaerr.Cancelled, err, "retry cancelled"))
		}
		err := op()
		if err == nil {
			return nil
		}
		if !kotaerr.Of(err).Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(attempt, backoff.WithContext(policy.newBackOff(), ctx))
	if err == nil {
		return nil
	}
	if kotaerr.Of(err) != kotaerr.Unknown {
		return err
	}
	return kotaerr.Wrap(kotaerr.ConcurrencyLimit, err, "retry budget exhausted")
}

// RetryableStorage retries IOError-class Storage failures under policy.
type RetryableStorage struct {
	inner  contracts.Storage
	policy RetryPolicy
}

func NewRetryableStorage(inner contracts.Storage, policy RetryPolicy) *RetryableStorage {
	return &RetryableStorage{inner: inner, policy: policy}
}

func (r *RetryableStorage) Insert(ctx context.Context, doc types.Document) error {
	return retryable(ctx, r.policy, func() error { return r.inner.Insert(ctx, doc) })
}

func (r *RetryableStorage) Get(ctx context.Context, id types.DocumentID) (types.Document, error) {
	var out types.Document
	err := retryable(ctx, r.policy, func() error {
		var innerErr error
		out, innerErr = r.inner.Get(ctx, id)
		return innerErr
	})
	return out, err
}

func (r *RetryableStorage) Update(ctx context.Context, doc types.Document) error {
	return retryable(ctx, r.policy, func() error { return r.inner.Update(ctx, doc) })
}

func (r *RetryableStorage) Delete(ctx context.Context, id types.DocumentID) (bool, error) {
	var ok bool
	err := retryable(ctx, r.policy, func() error {
		var innerErr error
		ok, innerErr = r.inner.Delete(ctx, id)
		return innerErr
	})
	return ok, err
}

func (r *RetryableStorage) List(ctx context.Context) ([]types.Document, error) {
	var out []types.Document
	err := retryable(ctx, r.policy, func() error {
		var innerErr error
		out, innerErr = r.inner.List(ctx)
		return innerErr
	})
	return out, err
}

var _ contracts.Storage = (*RetryableStorage)(nil)

// RetryableIndex is RetryableStorage's counterpart for contracts.Index.
type RetryableIndex struct {
	inner  contracts.Index
	policy RetryPolicy
}

func NewRetryableIndex(inner contracts.Index, policy RetryPolicy) *RetryableIndex {
	return &RetryableIndex{inner: inner, policy: policy}
}

func (r *RetryableIndex) Insert(ctx context.Context, id types.DocumentID, path types.ValidatedPath) error {
	return retryable(ctx, r.policy, func() error { return r.inner.Insert(ctx, id, path) })
}

func (r *RetryableIndex) Search(ctx context.Context, q types.Query) ([]contracts.SearchResult, error) {
	var out []contracts.SearchResult
	err := retryable(ctx, r.policy, func() error {
		var innerErr error
		out, innerErr = r.inner.Search(ctx, q)
		return innerErr
	})
	return out, err
}

func (r *RetryableIndex) Delete(ctx context.Context, id types.DocumentID) error {
	return retryable(ctx, r.policy, func() error { return r.inner.Delete(ctx, id) })
}

func (r *RetryableIndex) List(ctx context.Context) ([]contracts.SearchResult, error) {
	var out []contracts.SearchResult
	err := retryable(ctx, r.policy, func() error {
		var innerErr error
		out, innerErr = r.inner.List(ctx)
		return innerErr
	})
	return out, err
}

var _ contracts.Index = (*RetryableIndex)(nil)
