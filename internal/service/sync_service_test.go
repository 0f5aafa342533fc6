package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/models"
	"github.com/noah-isme/campus-portal-api/internal/notifier"
	"github.com/noah-isme/campus-portal-api/internal/session"
)

func TestSyncSnapshotAndBind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)
	hub := notifier.NewHub(zerolog.Nop())

	codec := collection.MustCodec[models.UploadRecord]("upload_record", collection.UploadRecordSchema)
	books := collection.New(collection.KeyBooks, store, codec, zerolog.Nop())

	registry := NewSyncRegistry(hub, zerolog.Nop())
	RegisterCollection(registry, books)
	svc := registry.Service()

	raw, err := svc.Snapshot(ctx, session.Actor{}, collection.KeyBooks)
	require.NoError(t, err)
	require.Equal(t, int64(0), raw.(collection.Snapshot[models.UploadRecord]).Revision)

	updates := make(chan collection.Snapshot[models.UploadRecord], 4)
	view, err := svc.Bind(ctx, session.Actor{}, collection.KeyBooks, "reader", func(snapshot any) {
		updates <- snapshot.(collection.Snapshot[models.UploadRecord])
	})
	require.NoError(t, err)
	t.Cleanup(view.Deactivate)

	initial := <-updates
	require.Equal(t, int64(0), initial.Revision)

	saved, err := books.Save(ctx, []models.UploadRecord{{ID: "b1", Name: "optics.pdf"}}, 0)
	require.NoError(t, err)
	hub.Announce(ctx, collection.KeyBooks, saved.Revision, "writer")

	select {
	case next := <-updates:
		require.Equal(t, int64(1), next.Revision)
		require.Len(t, next.Records, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("bound view did not receive the new revision")
	}
}

func TestSyncUnknownCollection(t *testing.T) {
	registry := NewSyncRegistry(notifier.NewHub(zerolog.Nop()), zerolog.Nop())
	svc := registry.Service()

	_, err := svc.Snapshot(context.Background(), adminActor, collection.KeyDiscussion)
	require.ErrorIs(t, err, ErrUnknownCollection)

	_, err = svc.Bind(context.Background(), adminActor, collection.KeyDiscussion, "reader", func(any) {})
	require.ErrorIs(t, err, ErrUnknownCollection)
}

func TestSyncAdminOnlyCollections(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)
	codec := collection.MustCodec[models.StudentRequest]("student_request", collection.StudentRequestSchema)
	pending := collection.New(collection.KeyStudentRequests, store, codec, zerolog.Nop())

	registry := NewSyncRegistry(notifier.NewHub(zerolog.Nop()), zerolog.Nop())
	RegisterCollection(registry, pending, AdminOnly())
	svc := registry.Service()

	_, err := svc.Snapshot(ctx, session.Actor{}, collection.KeyStudentRequests)
	require.ErrorIs(t, err, ErrSessionRequired)
	_, err = svc.Snapshot(ctx, studentActor, collection.KeyStudentRequests)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Bind(ctx, studentActor, collection.KeyStudentRequests, "reader", func(any) {})
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Authorize(adminActor, collection.KeyStudentRequests))
	raw, err := svc.Snapshot(ctx, adminActor, collection.KeyStudentRequests)
	require.NoError(t, err)
	require.Equal(t, collection.KeyStudentRequests, raw.(collection.Snapshot[models.StudentRequest]).Key)
}
