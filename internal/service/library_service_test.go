package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/database"
	"github.com/noah-isme/campus-portal-api/internal/dto"
	"github.com/noah-isme/campus-portal-api/internal/models"
	"github.com/noah-isme/campus-portal-api/internal/notifier"
	"github.com/noah-isme/campus-portal-api/internal/session"
)

var (
	adminActor   = session.Actor{ID: "admin-session", Role: session.RoleAdmin, Name: "Admin"}
	studentActor = session.Actor{ID: "student-session", Role: session.RoleStudent}
)

func newTestStore(t *testing.T, maxBytes int64) *collection.GormStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.OpenGorm(database.DialectSQLite, dsn, zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := collection.NewGormStore(db, maxBytes)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTestValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func newLibrary(t *testing.T, store collection.Store, hub *notifier.Hub, capacity int) *libraryService {
	t.Helper()
	return newLibraryFor(t, collection.KeyBooks, store, hub, capacity, nil)
}

func newLibraryFor(t *testing.T, key collection.Key, store collection.Store, hub *notifier.Hub, capacity int, mirror FileStorage) *libraryService {
	t.Helper()
	codec := collection.MustCodec[models.UploadRecord]("upload_record", collection.UploadRecordSchema)
	coll := collection.New(key, store, codec, zerolog.Nop())
	var announcer collection.Announcer
	if hub != nil {
		announcer = hub
	}
	svc := NewLibraryService(collection.NewMutator(coll, announcer, zerolog.Nop()), NewPayloadEncoder(5, mirror, zerolog.Nop()), newTestValidator(), capacity, zerolog.Nop())
	return svc.(*libraryService)
}

func validUpload() dto.UploadCreateRequest {
	return dto.UploadCreateRequest{
		Category:   "Physics",
		Uploader:   "Prof. Rao",
		Department: models.DepartmentBSc,
		Year:       models.YearFirst,
	}
}

func TestLibraryCreateListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newLibrary(t, newTestStore(t, 0), nil, 0)

	created, err := svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "optics.pdf", samplePDF))
	require.NoError(t, err)
	require.Equal(t, int64(1), created.Revision)
	require.NotEmpty(t, created.Item.ID)
	require.Empty(t, created.Item.Data)

	listing, err := svc.List(ctx, dto.UploadFilter{})
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	require.Equal(t, "optics.pdf", listing.Items[0].Name)
	require.True(t, strings.HasPrefix(listing.Items[0].Data, "data:application/pdf;base64,"))
	require.Equal(t, []string{"Physics"}, listing.Categories)

	revision, err := svc.Delete(ctx, adminActor, collection.MutationOptions{}, created.Item.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), revision)

	listing, err = svc.List(ctx, dto.UploadFilter{})
	require.NoError(t, err)
	require.Empty(t, listing.Items)

	_, err = svc.Delete(ctx, adminActor, collection.MutationOptions{}, created.Item.ID)
	require.ErrorIs(t, err, collection.ErrRecordNotFound)
}

func TestLibraryListsNewestFirstWithFilters(t *testing.T) {
	ctx := context.Background()
	svc := newLibrary(t, newTestStore(t, 0), nil, 0)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	uploads := []struct {
		name       string
		category   string
		department string
	}{
		{"mechanics.txt", "Physics", models.DepartmentBSc},
		{"ledger.txt", "Accounts", models.DepartmentBCom},
		{"waves.txt", "Physics", models.DepartmentBSc},
	}
	for i, u := range uploads {
		at := base.Add(time.Duration(i) * time.Hour)
		svc.now = func() time.Time { return at }
		req := validUpload()
		req.Category = u.category
		req.Department = u.department
		_, err := svc.Create(ctx, adminActor, collection.MutationOptions{}, req, buildFileHeader(t, u.name, []byte("notes for "+u.name)))
		require.NoError(t, err)
	}

	listing, err := svc.List(ctx, dto.UploadFilter{})
	require.NoError(t, err)
	require.Equal(t, "waves.txt", listing.Items[0].Name)
	require.Equal(t, "mechanics.txt", listing.Items[2].Name)
	require.Equal(t, []string{models.DepartmentBCom, models.DepartmentBSc}, listing.Departments)

	listing, err = svc.List(ctx, dto.UploadFilter{Category: "physics"})
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)

	listing, err = svc.List(ctx, dto.UploadFilter{Query: "LEDG"})
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	require.Equal(t, "ledger.txt", listing.Items[0].Name)

	listing, err = svc.List(ctx, dto.UploadFilter{Department: models.DepartmentBA})
	require.NoError(t, err)
	require.Empty(t, listing.Items)
}

func TestLibraryRejectsInvalidRequestsBeforeStoring(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)
	svc := newLibrary(t, store, nil, 0)

	_, err := svc.Create(ctx, studentActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "a.pdf", samplePDF))
	require.ErrorIs(t, err, ErrForbidden)

	bad := validUpload()
	bad.Department = "MBA"
	_, err = svc.Create(ctx, adminActor, collection.MutationOptions{}, bad, buildFileHeader(t, "a.pdf", samplePDF))
	require.Error(t, err)
	require.True(t, isValidation(err))

	missing := validUpload()
	missing.Uploader = "   "
	_, err = svc.Create(ctx, adminActor, collection.MutationOptions{}, missing, buildFileHeader(t, "a.pdf", samplePDF))
	require.True(t, isValidation(err))

	_, err = svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), nil)
	require.ErrorIs(t, err, ErrUploadMissing)

	slot, err := store.Load(ctx, collection.KeyBooks)
	require.NoError(t, err)
	require.Zero(t, slot.Revision)
}

func TestLibraryEnforcesDefaultCapacity(t *testing.T) {
	ctx := context.Background()
	svc := newLibraryFor(t, collection.KeyNotes, newTestStore(t, 0), nil, 0, nil)
	require.Equal(t, DefaultLibraryCapacity, svc.capacity)

	for i := 0; i < DefaultLibraryCapacity; i++ {
		_, err := svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, fmt.Sprintf("n%d.txt", i), []byte("text")))
		require.NoError(t, err)
	}

	before, err := svc.mutator.Collection().Load(ctx)
	require.NoError(t, err)
	require.Len(t, before.Records, DefaultLibraryCapacity)

	_, err = svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "n100.txt", []byte("text")))
	require.ErrorIs(t, err, collection.ErrCollectionFull)

	after, err := svc.mutator.Collection().Load(ctx)
	require.NoError(t, err)
	require.Equal(t, before.Revision, after.Revision)
	require.Len(t, after.Records, DefaultLibraryCapacity)
	for i := range before.Records {
		require.Equal(t, before.Records[i].ID, after.Records[i].ID)
		require.Equal(t, before.Records[i].UploadedAtTs, after.Records[i].UploadedAtTs)
	}
}

func TestLibraryRejectedCreateLeavesNoMirror(t *testing.T) {
	ctx := context.Background()

	t.Run("full collection is refused before mirroring", func(t *testing.T) {
		mirror := &storageStub{}
		svc := newLibraryFor(t, collection.KeyBooks, newTestStore(t, 0), nil, 1, mirror)

		_, err := svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "first.txt", []byte("text")))
		require.NoError(t, err)
		_, err = svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "second.txt", []byte("text")))
		require.ErrorIs(t, err, collection.ErrCollectionFull)

		require.Len(t, mirror.stored, 1)
		require.Empty(t, mirror.deleted)
	})

	t.Run("quota failure removes the mirror copy", func(t *testing.T) {
		mirror := &storageStub{}
		svc := newLibraryFor(t, collection.KeyBooks, newTestStore(t, 1500), nil, 0, mirror)

		_, err := svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "small.txt", []byte("tiny")))
		require.NoError(t, err)
		_, err = svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "large.txt", []byte(strings.Repeat("x", 4096))))
		require.ErrorIs(t, err, collection.ErrQuotaExceeded)

		require.Len(t, mirror.stored, 2)
		require.Equal(t, []string{mirror.stored[1]}, mirror.deleted)
	})
}

func TestLibraryQuotaFailureLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := newLibrary(t, newTestStore(t, 700), nil, 0)

	_, err := svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "small.txt", []byte("tiny")))
	require.NoError(t, err)

	_, err = svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "large.txt", []byte(strings.Repeat("x", 2048))))
	require.ErrorIs(t, err, collection.ErrQuotaExceeded)

	listing, err := svc.List(ctx, dto.UploadFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(1), listing.Revision)
	require.Len(t, listing.Items, 1)
}

func TestLibraryUpdateKeepsPayload(t *testing.T) {
	ctx := context.Background()
	svc := newLibrary(t, newTestStore(t, 0), nil, 0)

	created, err := svc.Create(ctx, adminActor, collection.MutationOptions{}, validUpload(), buildFileHeader(t, "a.pdf", samplePDF))
	require.NoError(t, err)

	category := "Optics"
	year := models.YearThird
	updated, err := svc.Update(ctx, adminActor, collection.MutationOptions{ExpectedRevision: &created.Revision}, created.Item.ID, dto.UploadUpdateRequest{Category: &category, Year: &year})
	require.NoError(t, err)
	require.Equal(t, "Optics", updated.Item.Category)
	require.Equal(t, models.YearThird, updated.Item.Year)

	stale := created.Revision
	_, err = svc.Update(ctx, adminActor, collection.MutationOptions{ExpectedRevision: &stale}, created.Item.ID, dto.UploadUpdateRequest{Category: &category})
	require.ErrorIs(t, err, collection.ErrStaleRevision)

	got, err := svc.Get(ctx, created.Item.ID)
	require.NoError(t, err)
	require.Equal(t, "a.pdf", got.Name)
	require.NotEmpty(t, got.Data)
}

func TestLibraryCreateNotifiesOtherViews(t *testing.T) {
	ctx := context.Background()
	hub := notifier.NewHub(zerolog.Nop())
	svc := newLibrary(t, newTestStore(t, 0), hub, 0)

	events := make(chan notifier.Event, 2)
	hub.Subscribe(collection.KeyBooks, "uploader-view", func(e notifier.Event) { events <- e })
	hub.Subscribe(collection.KeyBooks, "reader-view", func(e notifier.Event) { events <- e })

	_, err := svc.Create(ctx, adminActor, collection.MutationOptions{Origin: "uploader-view"}, validUpload(), buildFileHeader(t, "a.pdf", samplePDF))
	require.NoError(t, err)

	select {
	case e := <-events:
		require.Equal(t, int64(1), e.Revision)
		require.Equal(t, "uploader-view", e.Origin)
	case <-time.After(time.Second):
		t.Fatal("reader view was not notified")
	}
	require.Never(t, func() bool { return len(events) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func isValidation(err error) bool {
	_, ok := err.(validator.ValidationErrors)
	return ok
}
