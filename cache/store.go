package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collabmatch_sync/models"
)

// DefaultWindow applies to query classes without an explicit staleness
// window.
const DefaultWindow = time.Minute

// FetchFunc loads fresh data for a single key.
type FetchFunc func(ctx context.Context) (any, error)

// Entry is a read-only view of one cached query result. Err carries the
// most recent refetch failure; the data it sits next to is still the last
// good payload (a transient failure never blanks a populated view).
type Entry struct {
	Key       string
	Data      any
	FetchedAt time.Time
	Stale     bool
	Fetching  bool
	Err       error
}

type entry struct {
	data      any
	hasData   bool
	fetchedAt time.Time
	stale     bool
	err       error

	fetching bool
	fetchSeq uint64        // token of the most recently dispatched fetch
	done     chan struct{} // closed when the current fetch settles
}

// Store is the shared query cache every component talks through: reads go
// via Get/Fetch, optimistic mutations via Patch (with Peek for side-effect-
// free lookups), the realtime bridge via Invalidate/Refresh. Fetches are
// tokenized by dispatch
// order so a late response from a superseded request is always discarded
// (last-request-wins).
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	fetchers map[string]FetchFunc
	windows  map[string]time.Duration
	subs     map[string]map[uint64]func(Entry)
	nextSub  uint64
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store with the per-class staleness windows the feed
// uses in production.
func NewStore() *Store {
	return &Store{
		entries:  make(map[string]*entry),
		fetchers: make(map[string]FetchFunc),
		windows: map[string]time.Duration{
			models.ClassSuggestions:        5 * time.Minute,
			models.ClassHistory:            5 * time.Minute,
			models.ClassCompatibility:      5 * time.Minute,
			models.ClassLeaderboard:        2 * time.Minute,
			models.ClassRizzScore:          2 * time.Minute,
			models.ClassNotifications:      30 * time.Second,
			models.ClassNotificationDetail: 30 * time.Second,
			models.ClassUnreadCount:        30 * time.Second,
		},
		subs: make(map[string]map[uint64]func(Entry)),
		stop: make(chan struct{}),
	}
}

// SetWindow overrides the staleness window for a query class.
func (s *Store) SetWindow(class string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[class] = d
}

func (s *Store) window(class string) time.Duration {
	if d, ok := s.windows[class]; ok {
		return d
	}
	return DefaultWindow
}

func (s *Store) ensureLocked(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

func (s *Store) viewLocked(key string, e *entry) Entry {
	return Entry{
		Key:       key,
		Data:      e.data,
		FetchedAt: e.fetchedAt,
		Stale:     e.stale || time.Since(e.fetchedAt) >= s.window(ClassOf(key)),
		Fetching:  e.fetching,
		Err:       e.err,
	}
}

func (s *Store) subscribersLocked(key string) []func(Entry) {
	m := s.subs[key]
	if len(m) == 0 {
		return nil
	}
	fns := make([]func(Entry), 0, len(m))
	for _, fn := range m {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(Entry), view Entry) {
	for _, fn := range fns {
		fn(view)
	}
}

// RegisterFetcher records how to reload a key in the background. The last
// registration for a key wins.
func (s *Store) RegisterFetcher(key string, fn FetchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchers[key] = fn
}

// Get returns the cached entry for key. A stale entry is still returned;
// if a fetcher is registered and no fetch is in flight, exactly one
// background refetch is scheduled (stale-while-revalidate).
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !e.hasData {
		s.mu.Unlock()
		return Entry{}, false
	}
	view := s.viewLocked(key, e)
	var token uint64
	var fn FetchFunc
	if view.Stale && !e.fetching {
		if f, ok := s.fetchers[key]; ok {
			fn = f
			token = s.beginLocked(e)
			view.Fetching = true
		}
	}
	s.mu.Unlock()
	if fn != nil {
		go s.runFetch(context.Background(), key, token, fn)
	}
	return view, true
}

// Set stores authoritative data for key, clearing staleness, any refetch
// error, and any in-flight fetch (a direct write is newer information, so a
// pending response for this key will be discarded when it lands).
func (s *Store) Set(key string, data any, fetchedAt time.Time) {
	s.mu.Lock()
	e := s.ensureLocked(key)
	e.data = data
	e.hasData = true
	e.fetchedAt = fetchedAt
	e.stale = false
	e.err = nil
	s.supersedeLocked(e)
	view := s.viewLocked(key, e)
	fns := s.subscribersLocked(key)
	s.mu.Unlock()
	notify(fns, view)
}

// Patch applies a pure updater to the cached data synchronously, before any
// network round trip. The updater must return a new value rather than
// mutating the old one: inverse patches recorded for rollback alias the
// previous value. Freshness metadata is left untouched.
func (s *Store) Patch(key string, update func(any) any) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !e.hasData {
		s.mu.Unlock()
		return false
	}
	e.data = update(e.data)
	view := s.viewLocked(key, e)
	fns := s.subscribersLocked(key)
	s.mu.Unlock()
	notify(fns, view)
	return true
}

// Invalidate marks every entry whose key matches pred as stale. Data is
// never deleted: consumers keep seeing stale data until a refetch lands, and
// an optimistic patch pending settlement is never clobbered. Safe to apply
// more than once. Returns the number of entries touched.
func (s *Store) Invalidate(pred func(key string) bool) int {
	s.mu.Lock()
	type touched struct {
		view Entry
		fns  []func(Entry)
	}
	var hits []touched
	for key, e := range s.entries {
		if !pred(key) {
			continue
		}
		e.stale = true
		hits = append(hits, touched{s.viewLocked(key, e), s.subscribersLocked(key)})
	}
	s.mu.Unlock()
	for _, h := range hits {
		notify(h.fns, h.view)
	}
	return len(hits)
}

// InvalidateClass marks every entry of one query class stale.
func (s *Store) InvalidateClass(class string) int {
	return s.Invalidate(func(key string) bool { return ClassOf(key) == class })
}

// Keys returns the cached keys of one query class.
func (s *Store) Keys(class string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key, e := range s.entries {
		if e.hasData && ClassOf(key) == class {
			keys = append(keys, key)
		}
	}
	return keys
}

// Peek returns the cached entry without scheduling a background refetch,
// for callers that need to inspect state mid-mutation without triggering
// revalidation.
func (s *Store) Peek(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.hasData {
		return Entry{}, false
	}
	return s.viewLocked(key, e), true
}

// Subscribe registers fn to run after every write that touches key. The
// returned func removes the subscription.
func (s *Store) Subscribe(key string, fn func(Entry)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	if s.subs[key] == nil {
		s.subs[key] = make(map[uint64]func(Entry))
	}
	s.subs[key][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
	}
}

func (s *Store) beginLocked(e *entry) uint64 {
	e.fetchSeq++
	e.fetching = true
	if e.done == nil {
		e.done = make(chan struct{})
	}
	return e.fetchSeq
}

func (s *Store) supersedeLocked(e *entry) {
	if !e.fetching {
		return
	}
	e.fetchSeq++
	e.fetching = false
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
}

// BeginFetch marks key as being fetched and returns the dispatch token. ok
// is false while another fetch for the same key is already in flight, which
// is what keeps duplicate concurrent refetches from piling up.
func (s *Store) BeginFetch(key string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensureLocked(key)
	if e.fetching {
		return 0, false
	}
	return s.beginLocked(e), true
}

// ForceFetch dispatches a fetch regardless of in-flight state. Any earlier
// fetch for the key is superseded: its response will be discarded when it
// lands, because last-request-wins is decided by dispatch order, not
// completion order.
func (s *Store) ForceFetch(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked(s.ensureLocked(key))
}

// CompleteFetch settles the fetch identified by token. Superseded or
// cancelled tokens are discarded without touching the entry. A failed fetch
// keeps the previous data and records the error next to it.
func (s *Store) CompleteFetch(key string, token uint64, data any, err error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || token != e.fetchSeq {
		s.mu.Unlock()
		return
	}
	e.fetching = false
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
	if err != nil {
		e.err = err
	} else {
		e.data = data
		e.hasData = true
		e.fetchedAt = time.Now()
		e.stale = false
		e.err = nil
	}
	view := s.viewLocked(key, e)
	fns := s.subscribersLocked(key)
	s.mu.Unlock()
	notify(fns, view)
}

// CancelFetch abandons the fetch identified by token, e.g. when no consumer
// remains interested. Its result, if it ever arrives, is never written.
func (s *Store) CancelFetch(key string, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || token != e.fetchSeq {
		return
	}
	e.fetchSeq++
	e.fetching = false
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
}

func (s *Store) runFetch(ctx context.Context, key string, token uint64, fn FetchFunc) {
	data, err := fn(ctx)
	if ctx.Err() != nil {
		s.CancelFetch(key, token)
		return
	}
	s.CompleteFetch(key, token, data, err)
}

// Fetch returns usable data for key, hitting the network when the cache has
// nothing. Fresh and stale entries are both served immediately (Get handles
// the background revalidation); a miss runs the registered fetcher in the
// foreground, joining an already in-flight fetch instead of duplicating it.
// force bypasses the cache and supersedes any in-flight fetch.
func (s *Store) Fetch(ctx context.Context, key string, force bool) (Entry, error) {
	if !force {
		if view, ok := s.Get(key); ok {
			return view, nil
		}
	}

	s.mu.Lock()
	fn, ok := s.fetchers[key]
	if !ok {
		s.mu.Unlock()
		return Entry{}, fmt.Errorf("no fetcher registered for key %q", key)
	}
	e := s.ensureLocked(key)
	if e.fetching && !force {
		ch := e.done
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-ch:
		}
		return s.settledEntry(key)
	}
	token := s.beginLocked(e)
	s.mu.Unlock()

	data, err := fn(ctx)
	if ctx.Err() != nil {
		s.CancelFetch(key, token)
		return Entry{}, ctx.Err()
	}
	s.CompleteFetch(key, token, data, err)
	return s.settledEntry(key)
}

func (s *Store) settledEntry(key string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("fetch for key %q was cancelled", key)
	}
	if !e.hasData {
		if e.err != nil {
			return Entry{}, e.err
		}
		return Entry{}, fmt.Errorf("fetch for key %q was superseded", key)
	}
	return s.viewLocked(key, e), nil
}

// Refresh schedules a background refetch for key if a fetcher is registered
// and none is in flight. Safe to call repeatedly.
func (s *Store) Refresh(key string) bool {
	s.mu.Lock()
	fn, ok := s.fetchers[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	e := s.ensureLocked(key)
	if e.fetching {
		s.mu.Unlock()
		return false
	}
	token := s.beginLocked(e)
	s.mu.Unlock()
	go s.runFetch(context.Background(), key, token, fn)
	return true
}

// RefreshClass schedules background refetches for every cached key of a
// query class.
func (s *Store) RefreshClass(class string) {
	for _, key := range s.Keys(class) {
		s.Refresh(key)
	}
}

// EnableAutoRevalidate starts a loop that refetches every cached key of
// class on the given interval. Notifications run this so the unread badge
// keeps tracking the server even when the push connection is down.
func (s *Store) EnableAutoRevalidate(class string, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RefreshClass(class)
			case <-s.stop:
				return
			}
		}
	}()
}

// Close stops background revalidation loops.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
