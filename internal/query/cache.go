// Package query caches backend reads per structured key. Concurrent reads
// of one key share a single fetch, results are served until they go stale,
// and mutations invalidate or seed entries explicitly.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies a cache entry. Params must be comparable (ints, strings,
// or structs of them); it is matched by value, never by string prefix.
type Key struct {
	Entity string
	Kind   string
	Params any
}

func (k Key) String() string {
	if k.Params == nil {
		return k.Entity + "/" + k.Kind
	}
	return fmt.Sprintf("%s/%s/%v", k.Entity, k.Kind, k.Params)
}

// Status is the state of an entry as seen by a read.
type Status int

const (
	// StatusIdle means there is no entry and nothing is being fetched.
	StatusIdle Status = iota
	// StatusPending means a first fetch is in flight.
	StatusPending
	// StatusFresh means the data is within its staleness window.
	StatusFresh
	// StatusStale means the data is served while a refetch runs.
	StatusStale
	// StatusError means the last fetch failed. Data from an earlier
	// success, if any, is still present.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the outcome of a read.
type Result[T any] struct {
	Data      T
	HasData   bool
	Err       error
	Status    Status
	UpdatedAt time.Time
}

// Query describes one read.
type Query[T any] struct {
	Key Key

	// StaleTime is how long a successful result is served without refetching.
	StaleTime time.Duration

	// Enabled gates the read. A disabled read issues no fetch and leaves
	// the entry untouched.
	Enabled bool

	Fetch func(ctx context.Context) (T, error)
}

type entry struct {
	// id is unique per entry lifetime. Together with gen it forms the
	// singleflight key, so invalidation starts a new flight.
	id  string
	gen uint64

	data      any
	hasData   bool
	err       error
	updatedAt time.Time

	invalid bool
	fetches int

	// dataSeq is the sequence of the stored value: the seeding sequence
	// for SetData, the start sequence for a fetch. invalidSeq is the
	// sequence of the last invalidation.
	dataSeq    uint64
	invalidSeq uint64
}

// flight is one fetch of an entry as registered by begin.
type flight struct {
	key   string
	start uint64
}

// Cache is the entity query cache. It is safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	entries   map[Key]*entry
	mutations map[Key]uint64
	seq       uint64
	nextID    uint64

	group   singleflight.Group
	updates chan Key
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used for background refetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New returns an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[Key]*entry),
		mutations: make(map[Key]uint64),
		updates:   make(chan Key, 64),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Updates announces keys whose entry changed outside a foreground read:
// background refetches, SetData and invalidation. Announcements are
// dropped when nobody keeps up.
func (c *Cache) Updates() <-chan Key {
	return c.updates
}

func (c *Cache) notify(key Key) {
	select {
	case c.updates <- key:
	default:
	}
}

// nextSeq returns a new sequence number. Callers hold mu.
func (c *Cache) nextSeq() uint64 {
	c.seq++
	return c.seq
}

// lookup returns the entry for key, creating it if needed. Callers hold mu.
func (c *Cache) lookup(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		c.nextID++
		e = &entry{id: strconv.FormatUint(c.nextID, 10)}
		c.entries[key] = e
	}
	return e
}

// Get reads q.Key through the cache.
//
// Fresh data is returned as is. Time-stale data is returned immediately
// and refetched in the background. Missing or invalidated data is fetched
// in the foreground, sharing the fetch with concurrent readers of the same
// key. Fetches run detached from ctx's cancellation.
func Get[T any](ctx context.Context, c *Cache, q Query[T]) Result[T] {
	if !q.Enabled {
		return Peek[T](c, q.Key)
	}

	c.mu.Lock()
	e := c.lookup(q.Key)
	if e.hasData && !e.invalid {
		if c.now().Sub(e.updatedAt) < q.StaleTime {
			res := snapshot[T](e, c.now(), q.StaleTime)
			c.mu.Unlock()
			return res
		}
		res := snapshot[T](e, c.now(), q.StaleTime)
		if res.Status == StatusFresh {
			res.Status = StatusStale
		}
		if e.fetches == 0 {
			f := c.begin(e)
			go c.refetch(context.WithoutCancel(ctx), q.Key, e, f, erase(q.Fetch))
		}
		c.mu.Unlock()
		return res
	}
	f := c.begin(e)
	c.mu.Unlock()

	c.run(context.WithoutCancel(ctx), q.Key, e, f, erase(q.Fetch))

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[q.Key]; ok {
		e = cur
	}
	return snapshot[T](e, c.now(), q.StaleTime)
}

// Peek returns the cached state of key without fetching.
func Peek[T any](c *Cache, key Key) Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Result[T]{Status: StatusIdle}
	}
	return snapshot[T](e, c.now(), -1)
}

// SetData upserts a fresh entry for key.
func SetData[T any](c *Cache, key Key, value T) {
	c.mu.Lock()
	c.seed(key, value)
	c.mu.Unlock()
	c.notify(key)
}

// seed stores value under key. Callers hold mu.
func (c *Cache) seed(key Key, value any) {
	e := c.lookup(key)
	e.data = value
	e.hasData = true
	e.err = nil
	e.updatedAt = c.now()
	e.invalid = false
	e.dataSeq = c.nextSeq()
}

// IssueMutation records that a mutation targeting key was issued and
// returns its sequence number for SetDataIfLatest.
func (c *Cache) IssueMutation(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.nextSeq()
	c.mutations[key] = seq
	return seq
}

// SetDataIfLatest seeds key with value only when no mutation targeting key
// was issued after seq. It reports whether the entry was seeded; callers
// that lose invalidate the key.
func SetDataIfLatest[T any](c *Cache, key Key, seq uint64, value T) bool {
	c.mu.Lock()
	if c.mutations[key] != seq {
		c.mu.Unlock()
		return false
	}
	c.seed(key, value)
	c.mu.Unlock()
	c.notify(key)
	return true
}

// Invalidate marks every entry of entity with the given kind invalid; an
// empty kind matches all kinds. The next enabled read of an invalid entry
// fetches in the foreground. It returns the number of entries marked.
func (c *Cache) Invalidate(entity, kind string) int {
	c.mu.Lock()
	seq := c.nextSeq()
	var marked []Key
	for key, e := range c.entries {
		if key.Entity != entity || (kind != "" && key.Kind != kind) {
			continue
		}
		c.markInvalid(e, seq)
		marked = append(marked, key)
	}
	c.mu.Unlock()

	for _, key := range marked {
		c.notify(key)
	}
	return len(marked)
}

// InvalidateKey marks the entry for key invalid. It reports whether an
// entry existed.
func (c *Cache) InvalidateKey(key Key) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.markInvalid(e, c.nextSeq())
	}
	c.mu.Unlock()

	if ok {
		c.notify(key)
	}
	return ok
}

// markInvalid invalidates e and detaches it from fetches in flight: they
// still finish, but later reads do not join them. Callers hold mu.
func (c *Cache) markInvalid(e *entry, seq uint64) {
	e.invalid = true
	e.invalidSeq = seq
	e.gen++
}

// Clear drops every entry. Fetches in flight finish without writing back.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[Key]*entry)
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type fetchFunc func(ctx context.Context) (any, error)

func erase[T any](fetch func(ctx context.Context) (T, error)) fetchFunc {
	return func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}
}

func (c *Cache) refetch(ctx context.Context, key Key, e *entry, f flight, fetch fetchFunc) {
	if err := c.run(ctx, key, e, f, fetch); err != nil {
		c.logger.Warn("background refetch failed", "key", key.String(), "error", err)
	}
	c.notify(key)
}

// begin registers a fetch of e in its current generation. Callers hold mu.
func (c *Cache) begin(e *entry) flight {
	e.fetches++
	return flight{
		key:   e.id + "/" + strconv.FormatUint(e.gen, 10),
		start: c.seq,
	}
}

// run joins or leads the flight f of e. Only the leader records the
// outcome, judged against the sequence its own flight started at.
func (c *Cache) run(ctx context.Context, key Key, e *entry, f flight, fetch fetchFunc) error {
	_, err, _ := c.group.Do(f.key, func() (interface{}, error) {
		value, err := fetch(ctx)
		c.mu.Lock()
		c.record(key, e, f.start, value, err)
		c.mu.Unlock()
		return nil, err
	})

	c.mu.Lock()
	e.fetches--
	c.mu.Unlock()
	return err
}

// record stores a fetch outcome. Callers hold mu.
func (c *Cache) record(key Key, e *entry, start uint64, value any, err error) {
	if c.entries[key] != e {
		// Cleared while in flight.
		return
	}
	if err != nil {
		if e.dataSeq <= start {
			e.err = err
		}
		return
	}
	if e.dataSeq > start {
		// Seeded by a mutation, or filled by a newer flight, meanwhile.
		return
	}
	e.data = value
	e.hasData = true
	e.err = nil
	e.updatedAt = c.now()
	e.dataSeq = start
	e.invalid = e.invalidSeq > start
}

// snapshot converts e into a Result. staleTime < 0 skips the age check.
// Callers hold mu.
func snapshot[T any](e *entry, now time.Time, staleTime time.Duration) Result[T] {
	res := Result[T]{Err: e.err, UpdatedAt: e.updatedAt}

	if e.hasData {
		data, ok := e.data.(T)
		if !ok {
			res.Err = fmt.Errorf("cache entry holds %T", e.data)
			res.Status = StatusError
			return res
		}
		res.Data = data
		res.HasData = true
	}

	switch {
	case e.err != nil:
		res.Status = StatusError
	case !e.hasData && e.fetches > 0:
		res.Status = StatusPending
	case !e.hasData:
		res.Status = StatusIdle
	case e.invalid || e.fetches > 0:
		res.Status = StatusStale
	case staleTime >= 0 && now.Sub(e.updatedAt) >= staleTime:
		res.Status = StatusStale
	default:
		res.Status = StatusFresh
	}
	return res
}
