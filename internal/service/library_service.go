package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/dto"
	"github.com/noah-isme/campus-portal-api/internal/models"
	"github.com/noah-isme/campus-portal-api/internal/session"
)

// ErrForbidden indicates the actor's role does not permit the operation.
var ErrForbidden = errors.New("insufficient permissions for this operation")

// DefaultLibraryCapacity is the record cap applied when none is configured.
const DefaultLibraryCapacity = 100

const uploadedAtLayout = "02 Jan 2006, 15:04"

// LibraryService manages one upload collection (books, notes or PYQs).
type LibraryService interface {
	Key() collection.Key
	List(ctx context.Context, filter dto.UploadFilter) (dto.UploadListResponse, error)
	Get(ctx context.Context, id string) (dto.UploadResponse, error)
	Create(ctx context.Context, actor session.Actor, opts collection.MutationOptions, req dto.UploadCreateRequest, file *multipart.FileHeader) (dto.UploadMutationResponse, error)
	Update(ctx context.Context, actor session.Actor, opts collection.MutationOptions, id string, req dto.UploadUpdateRequest) (dto.UploadMutationResponse, error)
	Delete(ctx context.Context, actor session.Actor, opts collection.MutationOptions, id string) (int64, error)
}

type libraryService struct {
	mutator   *collection.Mutator[models.UploadRecord]
	encoder   *PayloadEncoder
	validator *validator.Validate
	capacity  int
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewLibraryService constructs a library service over one upload collection.
func NewLibraryService(mutator *collection.Mutator[models.UploadRecord], encoder *PayloadEncoder, validate *validator.Validate, capacity int, logger zerolog.Logger) LibraryService {
	if capacity <= 0 {
		capacity = DefaultLibraryCapacity
	}
	key := mutator.Collection().Key()

	return &libraryService{
		mutator:   mutator,
		encoder:   encoder,
		validator: validate,
		capacity:  capacity,
		logger:    logger.With().Str("component", "library_service").Str("collection", key.String()).Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/campus-portal-api/internal/service/library"),
		now:       time.Now,
	}
}

func (s *libraryService) Key() collection.Key {
	return s.mutator.Collection().Key()
}

func (s *libraryService) List(ctx context.Context, filter dto.UploadFilter) (dto.UploadListResponse, error) {
	snapshot, err := s.mutator.Collection().Load(ctx)
	if err != nil {
		return dto.UploadListResponse{}, err
	}

	records := newestFirst(snapshot.Records)
	response := dto.UploadListResponse{
		Revision:    snapshot.Revision,
		Items:       make([]dto.UploadResponse, 0, len(records)),
		Departments: distinct(records, func(r models.UploadRecord) string { return r.Department }),
		Years:       distinct(records, func(r models.UploadRecord) string { return r.Year }),
		Categories:  distinct(records, func(r models.UploadRecord) string { return r.Category }),
	}
	for _, record := range records {
		if matchesUploadFilter(record, filter) {
			response.Items = append(response.Items, dto.NewUploadResponse(record, true))
		}
	}

	return response, nil
}

func (s *libraryService) Get(ctx context.Context, id string) (dto.UploadResponse, error) {
	snapshot, err := s.mutator.Collection().Load(ctx)
	if err != nil {
		return dto.UploadResponse{}, err
	}

	idx := collection.Find(snapshot.Records, id)
	if idx < 0 {
		return dto.UploadResponse{}, collection.ErrRecordNotFound
	}
	return dto.NewUploadResponse(snapshot.Records[idx], true), nil
}

func (s *libraryService) Create(ctx context.Context, actor session.Actor, opts collection.MutationOptions, req dto.UploadCreateRequest, file *multipart.FileHeader) (dto.UploadMutationResponse, error) {
	if !actor.IsAdmin() {
		return dto.UploadMutationResponse{}, ErrForbidden
	}

	req.Category = strings.TrimSpace(req.Category)
	req.Uploader = strings.TrimSpace(req.Uploader)
	if err := s.validator.Struct(req); err != nil {
		return dto.UploadMutationResponse{}, err
	}
	if file == nil {
		return dto.UploadMutationResponse{}, ErrUploadMissing
	}

	ctx, span := s.tracer.Start(ctx, "library.create", trace.WithAttributes(
		attribute.String("library.collection", s.Key().String()),
		attribute.String("library.file", file.Filename),
	))
	defer span.End()

	current, err := s.mutator.Collection().Load(ctx)
	if err != nil {
		span.RecordError(err)
		return dto.UploadMutationResponse{}, err
	}
	if err := s.checkCapacity(current.Records); err != nil {
		span.RecordError(err)
		return dto.UploadMutationResponse{}, err
	}

	encoded, err := s.encoder.EncodeFile(ctx, file)
	if err != nil {
		span.RecordError(err)
		return dto.UploadMutationResponse{}, err
	}

	now := s.now()
	record := models.UploadRecord{
		ID:           uuid.NewString(),
		Name:         encoded.Name,
		Category:     req.Category,
		Uploader:     req.Uploader,
		Department:   req.Department,
		Year:         req.Year,
		Data:         encoded.DataURL,
		MimeType:     encoded.MimeType,
		SizeBytes:    encoded.SizeBytes,
		MirrorURL:    encoded.MirrorURL,
		UploadedAt:   now.Format(uploadedAtLayout),
		UploadedAtTs: now.UnixMilli(),
	}

	snapshot, err := s.mutator.Apply(ctx, opts, func(records []models.UploadRecord) ([]models.UploadRecord, error) {
		if err := s.checkCapacity(records); err != nil {
			return nil, err
		}
		return append(records, record), nil
	})
	if err != nil {
		span.RecordError(err)
		s.encoder.Discard(context.WithoutCancel(ctx), encoded)
		return dto.UploadMutationResponse{}, err
	}

	s.logger.Info().
		Str("record_id", record.ID).
		Str("actor", actor.ID).
		Int64("revision", snapshot.Revision).
		Int64("size_bytes", record.SizeBytes).
		Msg("upload stored")

	return dto.UploadMutationResponse{Revision: snapshot.Revision, Item: dto.NewUploadResponse(record, false)}, nil
}

func (s *libraryService) checkCapacity(records []models.UploadRecord) error {
	if len(records) >= s.capacity {
		return fmt.Errorf("%s holds %d records: %w", s.Key(), len(records), collection.ErrCollectionFull)
	}
	return nil
}

func (s *libraryService) Update(ctx context.Context, actor session.Actor, opts collection.MutationOptions, id string, req dto.UploadUpdateRequest) (dto.UploadMutationResponse, error) {
	if !actor.IsAdmin() {
		return dto.UploadMutationResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UploadMutationResponse{}, err
	}

	var updated models.UploadRecord
	snapshot, err := s.mutator.Apply(ctx, opts, func(records []models.UploadRecord) ([]models.UploadRecord, error) {
		idx := collection.Find(records, id)
		if idx < 0 {
			return nil, collection.ErrRecordNotFound
		}

		record := records[idx]
		if req.Category != nil {
			record.Category = strings.TrimSpace(*req.Category)
		}
		if req.Uploader != nil {
			record.Uploader = strings.TrimSpace(*req.Uploader)
		}
		if req.Department != nil {
			record.Department = *req.Department
		}
		if req.Year != nil {
			record.Year = *req.Year
		}
		records[idx] = record
		updated = record
		return records, nil
	})
	if err != nil {
		return dto.UploadMutationResponse{}, err
	}

	return dto.UploadMutationResponse{Revision: snapshot.Revision, Item: dto.NewUploadResponse(updated, false)}, nil
}

func (s *libraryService) Delete(ctx context.Context, actor session.Actor, opts collection.MutationOptions, id string) (int64, error) {
	if !actor.IsAdmin() {
		return 0, ErrForbidden
	}

	snapshot, err := s.mutator.Apply(ctx, opts, func(records []models.UploadRecord) ([]models.UploadRecord, error) {
		idx := collection.Find(records, id)
		if idx < 0 {
			return nil, collection.ErrRecordNotFound
		}
		return append(records[:idx], records[idx+1:]...), nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().Str("record_id", id).Str("actor", actor.ID).Int64("revision", snapshot.Revision).Msg("upload removed")
	return snapshot.Revision, nil
}

func newestFirst(records []models.UploadRecord) []models.UploadRecord {
	sorted := make([]models.UploadRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UploadedAtTs > sorted[j].UploadedAtTs
	})
	return sorted
}

func matchesUploadFilter(record models.UploadRecord, filter dto.UploadFilter) bool {
	if !equalFoldOrEmpty(filter.Department, record.Department) {
		return false
	}
	if !equalFoldOrEmpty(filter.Year, record.Year) {
		return false
	}
	if !equalFoldOrEmpty(filter.Category, record.Category) {
		return false
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(record.Name), query) ||
		strings.Contains(strings.ToLower(record.Category), query)
}

func equalFoldOrEmpty(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, strings.TrimSpace(got))
}

func distinct[T any](records []T, field func(T) string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, record := range records {
		value := strings.TrimSpace(field(record))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}
