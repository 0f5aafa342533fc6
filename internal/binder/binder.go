package binder

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/notifier"
	"github.com/noah-isme/campus-portal-api/internal/observability"
)

// ErrAlreadyActive is returned when Activate is called on a bound view.
var ErrAlreadyActive = errors.New("view already active")

// Loader reads a collection snapshot.
type Loader[T any] interface {
	Load(ctx context.Context) (collection.Snapshot[T], error)
	Key() collection.Key
}

// Subscriber registers for change events of one key.
type Subscriber interface {
	Subscribe(key collection.Key, origin string, handler notifier.Handler) *notifier.Subscription
}

// Binder keeps one view's copy of a collection current for as long as the view is active.
type Binder[T any] struct {
	loader     Loader[T]
	subscriber Subscriber
	origin     string
	onChange   func(collection.Snapshot[T])
	logger     zerolog.Logger

	mu      sync.Mutex
	current collection.Snapshot[T]
	sub     *notifier.Subscription
	ctx     context.Context
	cancel  context.CancelFunc

	// emitMu serialises onChange with Deactivate.
	emitMu  sync.Mutex
	closed  bool
	emitted int64
}

// New constructs a binder for the view identified by origin. onChange receives every
// snapshot the view should display, starting with the initial load. onChange must not
// call Deactivate.
func New[T any](loader Loader[T], subscriber Subscriber, origin string, onChange func(collection.Snapshot[T]), logger zerolog.Logger) *Binder[T] {
	return &Binder[T]{
		loader:     loader,
		subscriber: subscriber,
		origin:     origin,
		onChange:   onChange,
		logger: logger.With().
			Str("component", "view_binder").
			Str("collection", loader.Key().String()).
			Str("view_id", origin).
			Logger(),
	}
}

// Activate loads the collection, publishes it and subscribes for changes.
func (b *Binder[T]) Activate(ctx context.Context) error {
	b.mu.Lock()
	if b.sub != nil {
		b.mu.Unlock()
		return ErrAlreadyActive
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	active := b.ctx
	b.mu.Unlock()

	b.emitMu.Lock()
	b.closed = false
	b.emitted = -1
	b.emitMu.Unlock()

	snapshot, err := b.loader.Load(active)
	if err != nil {
		b.logger.Warn().Err(err).Msg("initial load failed, showing empty collection")
	}

	b.mu.Lock()
	if active.Err() != nil {
		b.mu.Unlock()
		return active.Err()
	}
	b.current = snapshot
	b.sub = b.subscriber.Subscribe(b.loader.Key(), b.origin, b.handle)
	b.mu.Unlock()

	observability.ActiveBindings().WithLabelValues(b.loader.Key().String()).Inc()
	b.emit(active, snapshot)
	return nil
}

// Deactivate releases the subscription. Reloads still in flight are discarded and no
// snapshot is delivered once it returns.
func (b *Binder[T]) Deactivate() {
	b.emitMu.Lock()
	b.closed = true
	b.emitMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}
	if b.sub == nil {
		return
	}
	b.sub.Unsubscribe()
	b.sub = nil
	observability.ActiveBindings().WithLabelValues(b.loader.Key().String()).Dec()
}

// Snapshot returns the view's current copy.
func (b *Binder[T]) Snapshot() collection.Snapshot[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Refresh re-loads unconditionally, for views that rely on their own mutations.
func (b *Binder[T]) Refresh() {
	b.reload(0)
}

func (b *Binder[T]) handle(event notifier.Event) {
	if event.Key != b.loader.Key() {
		return
	}
	b.reload(event.Revision)
}

func (b *Binder[T]) reload(revision int64) {
	b.mu.Lock()
	ctx := b.ctx
	active := b.sub != nil
	held := b.current.Revision
	b.mu.Unlock()

	if !active || ctx == nil || ctx.Err() != nil {
		return
	}
	if revision > 0 && revision <= held {
		return
	}

	snapshot, err := b.loader.Load(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("reload failed, keeping previous snapshot")
		return
	}

	b.mu.Lock()
	if b.sub == nil || ctx.Err() != nil || snapshot.Revision < b.current.Revision {
		b.mu.Unlock()
		return
	}
	b.current = snapshot
	b.mu.Unlock()

	b.emit(ctx, snapshot)
}

func (b *Binder[T]) emit(ctx context.Context, snapshot collection.Snapshot[T]) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()
	if b.closed || ctx.Err() != nil || b.onChange == nil || snapshot.Revision < b.emitted {
		return
	}
	b.emitted = snapshot.Revision
	b.onChange(snapshot)
}
