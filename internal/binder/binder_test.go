package binder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-portal-api/internal/binder"
	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/notifier"
)

type fakeLoader struct {
	mu       sync.Mutex
	key      collection.Key
	snapshot collection.Snapshot[string]
	err      error
	loads    int
}

func (f *fakeLoader) Key() collection.Key { return f.key }

func (f *fakeLoader) Load(context.Context) (collection.Snapshot[string], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return collection.Snapshot[string]{Key: f.key, Records: []string{}}, f.err
	}
	return f.snapshot, nil
}

func (f *fakeLoader) set(revision int64, records ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = collection.Snapshot[string]{Key: f.key, Revision: revision, Records: records}
}

func (f *fakeLoader) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type seen struct {
	mu        sync.Mutex
	snapshots []collection.Snapshot[string]
}

func (s *seen) add(snapshot collection.Snapshot[string]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
}

func (s *seen) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

func (s *seen) last() collection.Snapshot[string] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[len(s.snapshots)-1]
}

func TestBinderActivatePublishesInitialSnapshot(t *testing.T) {
	loader := &fakeLoader{key: collection.KeyBooks}
	loader.set(3, "a", "b")
	hub := notifier.NewHub(zerolog.Nop())
	out := &seen{}

	b := binder.New[string](loader, hub, "view-1", out.add, zerolog.Nop())
	require.NoError(t, b.Activate(context.Background()))
	defer b.Deactivate()

	require.Equal(t, 1, out.count())
	require.Equal(t, []string{"a", "b"}, out.last().Records)
	require.Equal(t, int64(3), b.Snapshot().Revision)
	require.ErrorIs(t, b.Activate(context.Background()), binder.ErrAlreadyActive)
}

func TestBinderReloadsOnNewerRevision(t *testing.T) {
	loader := &fakeLoader{key: collection.KeyNotes}
	loader.set(1, "a")
	hub := notifier.NewHub(zerolog.Nop())
	out := &seen{}

	b := binder.New[string](loader, hub, "view-1", out.add, zerolog.Nop())
	require.NoError(t, b.Activate(context.Background()))
	defer b.Deactivate()

	loader.set(2, "a", "b")
	hub.Announce(context.Background(), collection.KeyNotes, 2, "view-2")

	require.Eventually(t, func() bool { return out.count() == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"a", "b"}, out.last().Records)

	// An event for a revision the view already holds does not reload.
	loads := loader.loadCount()
	hub.Announce(context.Background(), collection.KeyNotes, 2, "view-3")
	require.Never(t, func() bool { return loader.loadCount() > loads }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestBinderIgnoresOwnMutations(t *testing.T) {
	loader := &fakeLoader{key: collection.KeyDiscussion}
	loader.set(1)
	hub := notifier.NewHub(zerolog.Nop())
	out := &seen{}

	b := binder.New[string](loader, hub, "view-1", out.add, zerolog.Nop())
	require.NoError(t, b.Activate(context.Background()))
	defer b.Deactivate()

	loader.set(2, "mine")
	hub.Announce(context.Background(), collection.KeyDiscussion, 2, "view-1")
	require.Never(t, func() bool { return out.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	b.Refresh()
	require.Equal(t, 2, out.count())
	require.Equal(t, []string{"mine"}, out.last().Records)
}

func TestBinderDeactivateStopsUpdates(t *testing.T) {
	loader := &fakeLoader{key: collection.KeyPYQs}
	loader.set(1, "a")
	hub := notifier.NewHub(zerolog.Nop())
	out := &seen{}

	b := binder.New[string](loader, hub, "view-1", out.add, zerolog.Nop())
	require.NoError(t, b.Activate(context.Background()))
	b.Deactivate()
	b.Deactivate()

	require.Zero(t, hub.Subscribers(collection.KeyPYQs))

	loader.set(2, "a", "b")
	hub.Announce(context.Background(), collection.KeyPYQs, 2, "")
	b.Refresh()
	require.Never(t, func() bool { return out.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestBinderDeactivateWaitsForDeliveryInProgress(t *testing.T) {
	loader := &fakeLoader{key: collection.KeyNotes}
	loader.set(1, "a")
	hub := notifier.NewHub(zerolog.Nop())
	out := &seen{}

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	onChange := func(snapshot collection.Snapshot[string]) {
		out.add(snapshot)
		if snapshot.Revision == 2 {
			entered <- struct{}{}
			<-release
		}
	}

	b := binder.New[string](loader, hub, "view-1", onChange, zerolog.Nop())
	require.NoError(t, b.Activate(context.Background()))

	loader.set(2, "a", "b")
	go b.Refresh()
	<-entered

	done := make(chan struct{})
	go func() {
		b.Deactivate()
		close(done)
	}()
	require.Never(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	loader.set(3, "a", "b", "c")
	b.Refresh()
	require.Equal(t, 2, out.count())
}

func TestBinderShowsEmptyCollectionWhenLoadFails(t *testing.T) {
	loader := &fakeLoader{key: collection.KeyBooks, err: errors.New("backend down")}
	hub := notifier.NewHub(zerolog.Nop())
	out := &seen{}

	b := binder.New[string](loader, hub, "view-1", out.add, zerolog.Nop())
	require.NoError(t, b.Activate(context.Background()))
	defer b.Deactivate()

	require.Equal(t, 1, out.count())
	require.Empty(t, out.last().Records)
}
