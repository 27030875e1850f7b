package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"iprescribe-console/internal/apiclient"
	"iprescribe-console/internal/metrics"
)

type Status string

const (
	StatusDisabled Status = "disabled"
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// NoRetry disables retries for a single query.
const NoRetry = -1

var ErrTypeMismatch = errors.New("query: cached data has a different type")

// Retryable is the default retry predicate. A 401 has already ended the
// session, so repeating the request cannot succeed.
func Retryable(err error) bool {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type Result[T any] struct {
	Data      T
	Status    Status
	Err       error
	FetchedAt time.Time
	IsStale   bool
}

func (r Result[T]) IsLoading() bool  { return r.Status == StatusPending }
func (r Result[T]) IsError() bool    { return r.Status == StatusError }
func (r Result[T]) IsDisabled() bool { return r.Status == StatusDisabled }
func (r Result[T]) HasData() bool    { return !r.FetchedAt.IsZero() }

type Query[T any] struct {
	Key Key
	Fn  func(ctx context.Context) (T, error)
	// Enabled gates execution; nil means always enabled.
	Enabled func() bool
	// StaleTime and GCTime fall back to the client options when zero.
	StaleTime time.Duration
	GCTime    time.Duration
	// Retry is the number of extra attempts after a failure. Zero uses the
	// client default, NoRetry disables retries.
	Retry int
}

type Options struct {
	StaleTime  time.Duration
	GCTime     time.Duration
	Retry      int
	RetryDelay time.Duration
	MaxEntries int
	// RefetchOnFocus is kept off; the console has no focus-driven refetch.
	RefetchOnFocus bool
	// ShouldRetry reports whether a failed fetch may be retried.
	ShouldRetry func(err error) bool
	Logger      *slog.Logger
	Now         func() time.Time
	// JanitorInterval is how often unused entries are swept. Zero disables
	// the background janitor.
	JanitorInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		StaleTime:       0,
		GCTime:          10 * time.Minute,
		Retry:           1,
		RetryDelay:      time.Second,
		MaxEntries:      512,
		JanitorInterval: time.Minute,
	}
}

type entry struct {
	resource    string
	data        any
	err         error
	hasData     bool
	fetchedAt   time.Time
	staleTime   time.Duration
	gcTime      time.Duration
	invalidated bool
	lastAccess  time.Time
}

// Client caches read results by key, collapses concurrent fetches of the
// same key into one call and retries failed fetches a bounded number of
// times.
type Client struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, *entry]
	inflight   map[string]struct{}
	generation uint64
	group      singleflight.Group

	opts   Options
	logger *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

func New(opts Options) *Client {
	def := DefaultOptions()
	if opts.GCTime <= 0 {
		opts.GCTime = def.GCTime
	}
	if opts.Retry == 0 {
		opts.Retry = def.Retry
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = def.MaxEntries
	}
	if opts.ShouldRetry == nil {
		opts.ShouldRetry = Retryable
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.RefetchOnFocus = false

	entries, err := lru.New[string, *entry](opts.MaxEntries)
	if err != nil {
		// Only returned for a non-positive size, which is ruled out above.
		panic(err)
	}

	c := &Client{
		entries:  entries,
		inflight: make(map[string]struct{}),
		opts:     opts,
		logger:   opts.Logger,
		stop:     make(chan struct{}),
	}
	if opts.JanitorInterval > 0 {
		go c.janitor(opts.JanitorInterval)
	}
	return c
}

func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

// Sweep evicts entries that nobody has read for longer than their GC time.
func (c *Client) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	removed := 0
	for _, k := range c.entries.Keys() {
		e, ok := c.entries.Peek(k)
		if !ok {
			continue
		}
		if _, busy := c.inflight[k]; busy {
			continue
		}
		if now.Sub(e.lastAccess) > e.gcTime {
			c.entries.Remove(k)
			removed++
		}
	}
	return removed
}

// Invalidate marks every entry whose key starts with prefix as stale. The
// next read serves the cached data and refreshes it in the background.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, k := range c.entries.Keys() {
		e, ok := c.entries.Peek(k)
		if !ok {
			continue
		}
		if keyHasPrefix(k, prefix) {
			e.invalidated = true
			n++
		}
	}
	return n
}

// Reset drops every entry. Fetches still in flight complete but their
// results are discarded.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.generation++
	for k := range c.inflight {
		c.group.Forget(k)
	}
	c.inflight = make(map[string]struct{})
}

func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func keyHasPrefix(serialized string, prefix Key) bool {
	p := prefix.String()
	p = p[:len(p)-1]
	if len(prefix) == 0 {
		return true
	}
	if len(serialized) < len(p) || serialized[:len(p)] != p {
		return false
	}
	rest := serialized[len(p):]
	return rest == "]" || rest[0] == ','
}

type snapshot struct {
	found       bool
	hasData     bool
	data        any
	err         error
	fetchedAt   time.Time
	staleTime   time.Duration
	invalidated bool
}

func (c *Client) lookup(key string) snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		return snapshot{}
	}
	e.lastAccess = c.opts.Now()
	return snapshot{
		found:       true,
		hasData:     e.hasData,
		data:        e.data,
		err:         e.err,
		fetchedAt:   e.fetchedAt,
		staleTime:   e.staleTime,
		invalidated: e.invalidated,
	}
}

// settle records a finished fetch unless the cache was reset meanwhile.
func (c *Client) settle(key, resource string, gen uint64, data any, err error, staleTime, gcTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	delete(c.inflight, key)

	now := c.opts.Now()
	e, ok := c.entries.Peek(key)
	if !ok {
		e = &entry{resource: resource}
	}
	e.staleTime = staleTime
	e.gcTime = gcTime
	e.lastAccess = now
	if err != nil {
		e.err = err
	} else {
		e.data = data
		e.err = nil
		e.hasData = true
		e.fetchedAt = now
		e.invalidated = false
	}
	c.entries.Add(key, e)
}

func (c *Client) begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[key] = struct{}{}
	return c.generation
}

func (c *Client) attempts(q int) uint {
	switch {
	case q == NoRetry:
		return 1
	case q > 0:
		return uint(q) + 1
	default:
		return uint(c.opts.Retry) + 1
	}
}

func (c *Client) staleTime(q time.Duration) time.Duration {
	if q > 0 {
		return q
	}
	return c.opts.StaleTime
}

func (c *Client) gcTime(q time.Duration) time.Duration {
	if q > 0 {
		return q
	}
	return c.opts.GCTime
}

// run starts, or joins, the single fetch for key. The fetch runs on a
// context detached from the caller, so an abandoned caller does not cancel
// it for the others.
func run[T any](ctx context.Context, c *Client, key string, q Query[T]) <-chan singleflight.Result {
	resource := q.Key.Resource()
	return c.group.DoChan(key, func() (any, error) {
		gen := c.begin(key)
		fctx := context.WithoutCancel(ctx)

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.opts.RetryDelay
		b.MaxInterval = 30 * time.Second

		data, err := backoff.Retry(fctx, func() (T, error) {
			v, err := q.Fn(fctx)
			if err != nil && !c.opts.ShouldRetry(err) {
				return v, backoff.Permanent(err)
			}
			return v, err
		}, backoff.WithBackOff(b), backoff.WithMaxTries(c.attempts(q.Retry)))

		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		if err != nil {
			metrics.QueryFetchError(resource)
			c.logger.WarnContext(fctx, "query fetch failed", "key", key, "error", err)
		}

		c.settle(key, resource, gen, data, err, c.staleTime(q.StaleTime), c.gcTime(q.GCTime))
		return data, err
	})
}

// Fetch returns the cached result for q.Key, fetching it when absent.
//
// A disabled query returns StatusDisabled without calling Fn. Fresh data is
// returned as-is; stale data is returned with IsStale set while a background
// refresh runs. When ctx ends before a pending fetch completes, Fetch
// returns ctx's error and the fetch still populates the cache.
func Fetch[T any](ctx context.Context, c *Client, q Query[T]) Result[T] {
	resource := q.Key.Resource()
	if q.Enabled != nil && !q.Enabled() {
		metrics.QueryLookup(resource, "disabled")
		return Result[T]{Status: StatusDisabled}
	}

	key := q.Key.String()
	snap := c.lookup(key)

	if snap.hasData {
		data, ok := snap.data.(T)
		if !ok {
			return Result[T]{Status: StatusError, Err: ErrTypeMismatch}
		}
		stale := snap.invalidated || c.opts.Now().Sub(snap.fetchedAt) >= c.staleTime(snap.staleTime)
		if stale {
			metrics.QueryLookup(resource, "stale")
			run(ctx, c, key, q)
		} else {
			metrics.QueryLookup(resource, "hit")
		}
		return Result[T]{Data: data, Status: StatusSuccess, FetchedAt: snap.fetchedAt, IsStale: stale}
	}

	metrics.QueryLookup(resource, "miss")
	ch := run(ctx, c, key, q)
	select {
	case r := <-ch:
		if r.Shared {
			metrics.QueryLookup(resource, "shared")
		}
		if r.Err != nil {
			return Result[T]{Status: StatusError, Err: r.Err}
		}
		data, ok := r.Val.(T)
		if !ok {
			return Result[T]{Status: StatusError, Err: ErrTypeMismatch}
		}
		return Result[T]{Data: data, Status: StatusSuccess, FetchedAt: c.opts.Now()}
	case <-ctx.Done():
		return Result[T]{Status: StatusError, Err: ctx.Err()}
	}
}

// Peek returns cached data for key without fetching.
func Peek[T any](c *Client, key Key) (Result[T], bool) {
	snap := c.lookup(key.String())
	if !snap.hasData {
		return Result[T]{}, false
	}
	data, ok := snap.data.(T)
	if !ok {
		return Result[T]{}, false
	}
	return Result[T]{Data: data, Status: StatusSuccess, FetchedAt: snap.fetchedAt}, true
}
