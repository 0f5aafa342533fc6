package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/binder"
	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/session"
)

var (
	// ErrUnknownCollection indicates the requested key is not a shared collection.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrSessionRequired indicates an anonymous caller asked for a restricted collection.
	ErrSessionRequired = errors.New("session required")
)

// Deactivator releases a bound view.
type Deactivator interface {
	Deactivate()
}

// SyncService serves raw collection snapshots and binds live views to them.
type SyncService interface {
	Authorize(actor session.Actor, key collection.Key) error
	Snapshot(ctx context.Context, actor session.Actor, key collection.Key) (any, error)
	Bind(ctx context.Context, actor session.Actor, key collection.Key, viewID string, emit func(snapshot any)) (Deactivator, error)
}

type collectionSource struct {
	adminOnly bool
	load      func(ctx context.Context) (any, error)
	bind      func(ctx context.Context, viewID string, emit func(any)) (Deactivator, error)
}

// SyncOption adjusts how a registered collection is exposed.
type SyncOption func(*collectionSource)

// AdminOnly restricts snapshots and bindings of the collection to admin sessions.
func AdminOnly() SyncOption {
	return func(source *collectionSource) {
		source.adminOnly = true
	}
}

type syncService struct {
	sources    map[collection.Key]collectionSource
	subscriber binder.Subscriber
	logger     zerolog.Logger
}

// SyncRegistry collects the collections a SyncService exposes.
type SyncRegistry struct {
	svc *syncService
}

// NewSyncRegistry starts a registry whose bindings subscribe through subscriber.
func NewSyncRegistry(subscriber binder.Subscriber, logger zerolog.Logger) *SyncRegistry {
	return &SyncRegistry{svc: &syncService{
		sources:    make(map[collection.Key]collectionSource),
		subscriber: subscriber,
		logger:     logger.With().Str("component", "sync_service").Logger(),
	}}
}

// RegisterCollection exposes c through the registry.
func RegisterCollection[T collection.Record](r *SyncRegistry, c *collection.Collection[T], opts ...SyncOption) {
	svc := r.svc
	source := collectionSource{
		load: func(ctx context.Context) (any, error) {
			return c.Load(ctx)
		},
		bind: func(ctx context.Context, viewID string, emit func(any)) (Deactivator, error) {
			b := binder.New[T](c, svc.subscriber, viewID, func(snapshot collection.Snapshot[T]) {
				emit(snapshot)
			}, svc.logger)
			if err := b.Activate(ctx); err != nil {
				return nil, err
			}
			return b, nil
		},
	}
	for _, opt := range opts {
		opt(&source)
	}
	svc.sources[c.Key()] = source
}

// Service returns the SyncService over every registered collection.
func (r *SyncRegistry) Service() SyncService {
	return r.svc
}

func (s *syncService) Authorize(actor session.Actor, key collection.Key) error {
	_, err := s.source(actor, key)
	return err
}

func (s *syncService) Snapshot(ctx context.Context, actor session.Actor, key collection.Key) (any, error) {
	source, err := s.source(actor, key)
	if err != nil {
		return nil, err
	}
	return source.load(ctx)
}

func (s *syncService) Bind(ctx context.Context, actor session.Actor, key collection.Key, viewID string, emit func(snapshot any)) (Deactivator, error) {
	source, err := s.source(actor, key)
	if err != nil {
		return nil, err
	}
	return source.bind(ctx, viewID, emit)
}

func (s *syncService) source(actor session.Actor, key collection.Key) (collectionSource, error) {
	source, ok := s.sources[key]
	if !ok {
		return collectionSource{}, fmt.Errorf("%s: %w", key, ErrUnknownCollection)
	}
	if !source.adminOnly {
		return source, nil
	}
	if !actor.Authenticated() {
		return collectionSource{}, fmt.Errorf("%s: %w", key, ErrSessionRequired)
	}
	if !actor.IsAdmin() {
		return collectionSource{}, fmt.Errorf("%s: %w", key, ErrForbidden)
	}
	return source, nil
}
