package collection

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/observability"
)

// Record is anything stored in a named collection. RecordID is the record's stable identifier.
type Record interface {
	RecordID() string
}

// Snapshot is a decoded copy of a collection at a given revision. It is stale as soon as
// any other mutation of the same key completes.
type Snapshot[T any] struct {
	Key      Key   `json:"key"`
	Revision int64 `json:"revision"`
	Records  []T   `json:"records"`
}

// Collection is the typed view of one named slot.
type Collection[T Record] struct {
	key    Key
	store  Store
	codec  *Codec[T]
	logger zerolog.Logger
}

// New binds a key to a store and codec.
func New[T Record](key Key, store Store, codec *Codec[T], logger zerolog.Logger) *Collection[T] {
	c := &Collection[T]{
		key:    key,
		store:  store,
		logger: logger.With().Str("component", "collection").Str("collection", key.String()).Logger(),
	}

	scoped := *codec
	scoped.OnCorrupt = func(err error) {
		observability.CollectionDecodeFailures().WithLabelValues(key.String()).Inc()
		c.logger.Debug().Err(err).Msg("discarding undecodable collection value")
	}
	c.codec = &scoped
	return c
}

// Key returns the collection key.
func (c *Collection[T]) Key() Key { return c.key }

// Store returns the backing store.
func (c *Collection[T]) Store() Store { return c.store }

// Load fetches and decodes the collection. Corrupt or absent values yield an empty
// snapshot; an error is only returned when the backend itself could not be read.
func (c *Collection[T]) Load(ctx context.Context) (Snapshot[T], error) {
	slot, err := c.store.Load(ctx, c.key)
	if err != nil {
		return Snapshot[T]{Key: c.key, Records: []T{}}, err
	}

	return Snapshot[T]{
		Key:      c.key,
		Revision: slot.Revision,
		Records:  c.codec.Decode(slot.Payload),
	}, nil
}

// Write encodes records into a store write guarded by expectedRevision.
func (c *Collection[T]) Write(records []T, expectedRevision int64) (Write, error) {
	payload, err := c.codec.Encode(records)
	if err != nil {
		return Write{}, fmt.Errorf("encode %s: %w", c.key, err)
	}
	return Write{Key: c.key, Payload: payload, ExpectedRevision: expectedRevision}, nil
}

// Save replaces the whole collection if it is still at expectedRevision.
func (c *Collection[T]) Save(ctx context.Context, records []T, expectedRevision int64) (Snapshot[T], error) {
	write, err := c.Write(records, expectedRevision)
	if err != nil {
		return Snapshot[T]{}, err
	}
	revision, err := c.store.Save(ctx, write)
	if err != nil {
		return Snapshot[T]{}, err
	}
	return Snapshot[T]{Key: c.key, Revision: revision, Records: records}, nil
}

// Find returns the index of the record with the given id, or -1.
func Find[T Record](records []T, id string) int {
	for i, record := range records {
		if record.RecordID() == id {
			return i
		}
	}
	return -1
}
