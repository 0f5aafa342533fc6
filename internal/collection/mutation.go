package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/campus-portal-api/internal/observability"
)

const maxSaveAttempts = 3

// Announcer broadcasts that a collection changed.
type Announcer interface {
	Announce(ctx context.Context, key Key, revision int64, origin string)
}

// MutationOptions carries the originating view and, optionally, the revision that view last saw.
type MutationOptions struct {
	Origin           string
	ExpectedRevision *int64
}

// Transform derives the next collection from a private copy of the current one. Returning an
// error aborts the mutation before anything is written.
type Transform[T any] func(records []T) ([]T, error)

// Mutator runs the load, transform, save, announce sequence against one collection.
type Mutator[T Record] struct {
	collection *Collection[T]
	announcer  Announcer
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewMutator constructs a mutator. A nil announcer disables change broadcasts.
func NewMutator[T Record](collection *Collection[T], announcer Announcer, logger zerolog.Logger) *Mutator[T] {
	return &Mutator[T]{
		collection: collection,
		announcer:  announcer,
		tracer:     otel.Tracer("github.com/noah-isme/campus-portal-api/internal/collection"),
		logger:     logger.With().Str("component", "mutator").Str("collection", collection.Key().String()).Logger(),
	}
}

// Collection exposes the underlying collection for reads.
func (m *Mutator[T]) Collection() *Collection[T] { return m.collection }

// Apply loads the collection fresh, applies fn and saves the result. When the caller did not
// pin a revision, a save that loses a race is retried against freshly loaded state; when it
// did, the race is reported as ErrStaleRevision.
func (m *Mutator[T]) Apply(ctx context.Context, opts MutationOptions, fn Transform[T]) (Snapshot[T], error) {
	key := m.collection.Key()
	ctx, span := m.tracer.Start(ctx, "collection.mutate", trace.WithAttributes(
		attribute.String("collection.key", key.String()),
		attribute.String("collection.origin", opts.Origin),
	))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		current, err := m.collection.Load(ctx)
		if err != nil {
			return m.fail(span, key, "failed", err)
		}
		if err := checkExpected(opts, current.Revision); err != nil {
			return m.fail(span, key, "stale", err)
		}

		next, err := fn(clone(current.Records))
		if err != nil {
			return m.fail(span, key, "rejected", err)
		}

		saved, err := m.collection.Save(ctx, next, current.Revision)
		if err == nil {
			m.announce(ctx, key, saved.Revision, opts.Origin)
			observability.CollectionMutations().WithLabelValues(key.String(), "applied").Inc()
			span.SetAttributes(attribute.Int64("collection.revision", saved.Revision))
			span.SetStatus(codes.Ok, "saved")
			return saved, nil
		}

		lastErr = err
		if !errors.Is(err, ErrStaleRevision) || opts.ExpectedRevision != nil {
			return m.fail(span, key, outcomeFor(err), err)
		}
		m.logger.Debug().Int("attempt", attempt).Msg("collection changed during mutation, retrying")
	}

	return m.fail(span, key, "stale", lastErr)
}

func (m *Mutator[T]) announce(ctx context.Context, key Key, revision int64, origin string) {
	if m.announcer == nil {
		return
	}
	m.announcer.Announce(ctx, key, revision, origin)
}

func (m *Mutator[T]) fail(span trace.Span, key Key, outcome string, err error) (Snapshot[T], error) {
	observability.CollectionMutations().WithLabelValues(key.String(), outcome).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	if outcome == "failed" {
		m.logger.Warn().Err(err).Msg("collection mutation failed")
	}
	return Snapshot[T]{}, err
}

// PairTransform derives the next state of two collections together.
type PairTransform[A, B any] func(first []A, second []B) ([]A, []B, error)

// ApplyPair mutates two collections sharing one store with a single atomic SaveAll, so a
// record moved between them is never visible in both or neither. ExpectedRevision pins the
// first collection.
func ApplyPair[A Record, B Record](ctx context.Context, first *Mutator[A], second *Mutator[B], opts MutationOptions, fn PairTransform[A, B]) (Snapshot[A], Snapshot[B], error) {
	store := first.collection.Store()
	firstKey, secondKey := first.collection.Key(), second.collection.Key()

	ctx, span := first.tracer.Start(ctx, "collection.mutate_pair", trace.WithAttributes(
		attribute.String("collection.key", firstKey.String()),
		attribute.String("collection.second_key", secondKey.String()),
	))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		left, err := first.collection.Load(ctx)
		if err != nil {
			_, failErr := first.fail(span, firstKey, "failed", err)
			return Snapshot[A]{}, Snapshot[B]{}, failErr
		}
		right, err := second.collection.Load(ctx)
		if err != nil {
			_, failErr := first.fail(span, secondKey, "failed", err)
			return Snapshot[A]{}, Snapshot[B]{}, failErr
		}
		if err := checkExpected(opts, left.Revision); err != nil {
			_, failErr := first.fail(span, firstKey, "stale", err)
			return Snapshot[A]{}, Snapshot[B]{}, failErr
		}

		nextLeft, nextRight, err := fn(clone(left.Records), clone(right.Records))
		if err != nil {
			_, failErr := first.fail(span, firstKey, "rejected", err)
			return Snapshot[A]{}, Snapshot[B]{}, failErr
		}

		leftWrite, err := first.collection.Write(nextLeft, left.Revision)
		if err != nil {
			return Snapshot[A]{}, Snapshot[B]{}, err
		}
		rightWrite, err := second.collection.Write(nextRight, right.Revision)
		if err != nil {
			return Snapshot[A]{}, Snapshot[B]{}, err
		}

		revisions, err := store.SaveAll(ctx, leftWrite, rightWrite)
		if err == nil {
			first.announce(ctx, firstKey, revisions[0], opts.Origin)
			second.announce(ctx, secondKey, revisions[1], opts.Origin)
			observability.CollectionMutations().WithLabelValues(firstKey.String(), "applied").Inc()
			observability.CollectionMutations().WithLabelValues(secondKey.String(), "applied").Inc()
			span.SetStatus(codes.Ok, "saved")
			return Snapshot[A]{Key: firstKey, Revision: revisions[0], Records: nextLeft},
				Snapshot[B]{Key: secondKey, Revision: revisions[1], Records: nextRight}, nil
		}

		lastErr = err
		if !errors.Is(err, ErrStaleRevision) || opts.ExpectedRevision != nil {
			_, failErr := first.fail(span, firstKey, outcomeFor(err), err)
			return Snapshot[A]{}, Snapshot[B]{}, failErr
		}
	}

	_, failErr := first.fail(span, firstKey, "stale", lastErr)
	return Snapshot[A]{}, Snapshot[B]{}, failErr
}

func checkExpected(opts MutationOptions, current int64) error {
	if opts.ExpectedRevision == nil {
		return nil
	}
	if *opts.ExpectedRevision != current {
		return fmt.Errorf("expected revision %d, found %d: %w", *opts.ExpectedRevision, current, ErrStaleRevision)
	}
	return nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrStaleRevision):
		return "stale"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota"
	default:
		return "failed"
	}
}

func clone[T any](records []T) []T {
	out := make([]T, len(records))
	copy(out, records)
	return out
}
