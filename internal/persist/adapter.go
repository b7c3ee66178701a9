// Package persist keeps a binary-free copy of the draft in durable storage.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/schema"
)

// DefaultKey is the storage key used when none is configured.
const DefaultKey = "listing_draft"

// SessionKey is the storage key of the draft of one web session.
func SessionKey(prefix, session string) string {
	if prefix == "" {
		prefix = DefaultKey
	}
	return prefix + ":" + session
}

// Storage is a string key/value store.
type Storage interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

var ErrClosed = errors.New("persistence adapter closed")

type op struct {
	seq    uint64
	value  string
	remove bool
}

type waiter struct {
	seq uint64
	ch  chan struct{}
}

// Adapter writes draft snapshots from a single background goroutine. Save
// never blocks on storage: consecutive saves coalesce and only the latest
// pending operation is written. Storage failures are logged and dropped.
type Adapter struct {
	storage Storage
	key     string
	schema  *schema.Schema
	logger  *slog.Logger

	mu      sync.Mutex
	pending *op
	queued  uint64
	applied uint64
	waiters []waiter
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewAdapter(storage Storage, key string, sc *schema.Schema, logger *slog.Logger) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	a := &Adapter{
		storage: storage,
		key:     key,
		schema:  sc,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Adapter) Key() string { return a.key }

// Save queues a write of d's projection and returns immediately.
func (a *Adapter) Save(d domain.Draft) {
	value, err := Marshal(d)
	if err != nil {
		a.logger.Error("failed to encode draft", "key", a.key, "error", err)
		return
	}
	if _, err := a.enqueue(op{value: value}); err != nil {
		a.logger.Warn("draft not saved", "key", a.key, "error", err)
	}
}

// Clear removes the stored draft and waits until the removal was applied.
func (a *Adapter) Clear(ctx context.Context) error {
	seq, err := a.enqueue(op{remove: true})
	if err != nil {
		return err
	}
	return a.waitFor(ctx, seq)
}

// Flush waits until every operation queued before the call was applied.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	seq := a.queued
	a.mu.Unlock()
	return a.waitFor(ctx, seq)
}

// Load reads the stored draft. A missing, unreadable or malformed draft
// yields a fresh one; problems are logged, never returned.
func (a *Adapter) Load(ctx context.Context) domain.Draft {
	raw, found, err := a.storage.Get(ctx, a.key)
	if err != nil {
		a.logger.Warn("failed to read stored draft", "key", a.key, "error", err)
		return a.schema.NewDraft()
	}
	if !found {
		return a.schema.NewDraft()
	}
	d, err := Unmarshal(a.schema, raw)
	if err != nil {
		a.logger.Warn("discarding malformed stored draft", "key", a.key, "error", err)
		return a.schema.NewDraft()
	}
	a.logger.Debug("restored draft", "key", a.key, "rooms", len(d.Rooms))
	return d
}

// Close applies the pending operation, if any, and stops the writer.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()
	close(a.stop)
	<-a.done
}

func (a *Adapter) enqueue(o op) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, ErrClosed
	}
	a.queued++
	o.seq = a.queued
	a.pending = &o
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return o.seq, nil
}

func (a *Adapter) waitFor(ctx context.Context, seq uint64) error {
	a.mu.Lock()
	if a.applied >= seq {
		a.mu.Unlock()
		return nil
	}
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	ch := make(chan struct{})
	a.waiters = append(a.waiters, waiter{seq: seq, ch: ch})
	a.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for draft storage: %w", ctx.Err())
	}
}

func (a *Adapter) run() {
	defer close(a.done)
	for {
		select {
		case <-a.wake:
			a.drain()
		case <-a.stop:
			a.drain()
			a.releaseWaiters()
			return
		}
	}
}

func (a *Adapter) drain() {
	for {
		a.mu.Lock()
		o := a.pending
		a.pending = nil
		a.mu.Unlock()
		if o == nil {
			return
		}
		a.write(*o)

		a.mu.Lock()
		a.applied = o.seq
		remaining := a.waiters[:0]
		for _, w := range a.waiters {
			if w.seq <= o.seq {
				close(w.ch)
				continue
			}
			remaining = append(remaining, w)
		}
		a.waiters = remaining
		a.mu.Unlock()
	}
}

func (a *Adapter) releaseWaiters() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, w := range a.waiters {
		close(w.ch)
	}
	a.waiters = nil
}

func (a *Adapter) write(o op) {
	// Writes outlive any request; storage calls use their own context.
	ctx := context.Background()
	if o.remove {
		if err := a.storage.Remove(ctx, a.key); err != nil {
			a.logger.Error("failed to remove stored draft", "key", a.key, "error", err)
		}
		return
	}
	if err := a.storage.Set(ctx, a.key, o.value); err != nil {
		a.logger.Error("failed to persist draft", "key", a.key, "error", err)
	}
}
