package collection

import (
	"context"
	"fmt"
	"time"
)

// Slot is the raw stored state of one collection.
type Slot struct {
	Key       Key
	Revision  int64
	Payload   []byte
	UpdatedAt time.Time
}

// Write replaces a slot's payload if its revision still equals ExpectedRevision.
// ExpectedRevision 0 means the slot must not exist yet.
type Write struct {
	Key              Key
	Payload          []byte
	ExpectedRevision int64
}

// Store persists named collections. Every save is a single atomic replace: a rejected or
// failed save leaves the previous payload and revision untouched.
type Store interface {
	Load(ctx context.Context, key Key) (Slot, error)
	Save(ctx context.Context, write Write) (int64, error)
	SaveAll(ctx context.Context, writes ...Write) ([]int64, error)
}

func checkQuota(maxBytes int64, writes []Write) error {
	if maxBytes <= 0 {
		return nil
	}
	for _, w := range writes {
		if int64(len(w.Payload)) > maxBytes {
			return fmt.Errorf("%s: %d bytes over %d byte limit: %w", w.Key, len(w.Payload), maxBytes, ErrQuotaExceeded)
		}
	}
	return nil
}
