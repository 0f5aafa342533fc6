package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/dto"
	"github.com/noah-isme/campus-portal-api/internal/models"
	"github.com/noah-isme/campus-portal-api/internal/session"
)

var (
	// ErrStudentExists indicates the email is already pending or approved.
	ErrStudentExists = errors.New("a student with this email is already registered")
	// ErrStudentNotFound indicates no pending or approved student matched the email.
	ErrStudentNotFound = errors.New("student not found")
)

// StudentService drives the registration, approval and removal lifecycle.
type StudentService interface {
	Register(ctx context.Context, opts collection.MutationOptions, req dto.StudentRegisterRequest) (dto.StudentResponse, error)
	ListPending(ctx context.Context, actor session.Actor, filter dto.StudentFilter) (dto.StudentListResponse, error)
	ListApproved(ctx context.Context, actor session.Actor, filter dto.StudentFilter) (dto.StudentListResponse, error)
	Approve(ctx context.Context, actor session.Actor, opts collection.MutationOptions, email string) (dto.StudentResponse, error)
	Decline(ctx context.Context, actor session.Actor, opts collection.MutationOptions, email string) error
	Remove(ctx context.Context, actor session.Actor, opts collection.MutationOptions, email string) error
}

type studentService struct {
	pending   *collection.Mutator[models.StudentRequest]
	approved  *collection.Mutator[models.ApprovedStudent]
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewStudentService constructs the student service. Both mutators must share one store so
// approval can move a record atomically.
func NewStudentService(pending *collection.Mutator[models.StudentRequest], approved *collection.Mutator[models.ApprovedStudent], validate *validator.Validate, logger zerolog.Logger) StudentService {
	return &studentService{
		pending:   pending,
		approved:  approved,
		validator: validate,
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) Register(ctx context.Context, opts collection.MutationOptions, req dto.StudentRegisterRequest) (dto.StudentResponse, error) {
	req = normalizeRegistration(req)
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	student := models.StudentRequest{
		Name:       req.Name,
		Email:      req.Email,
		RollNo:     req.RollNo,
		Department: req.Department,
		Year:       req.Year,
		Mobile:     req.Mobile,
	}

	// The approved slot is rewritten unchanged so SaveAll also guards its revision.
	_, _, err := collection.ApplyPair(ctx, s.pending, s.approved, opts,
		func(requests []models.StudentRequest, approved []models.ApprovedStudent) ([]models.StudentRequest, []models.ApprovedStudent, error) {
			if findByEmail(requests, student.Email) >= 0 || findByEmail(approved, student.Email) >= 0 {
				return nil, nil, ErrStudentExists
			}
			return append(requests, student), approved, nil
		})
	if err != nil {
		return dto.StudentResponse{}, err
	}

	s.logger.Info().Str("email", maskEmail(student.Email)).Msg("student registration pending")
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) ListPending(ctx context.Context, actor session.Actor, filter dto.StudentFilter) (dto.StudentListResponse, error) {
	if !actor.IsAdmin() {
		return dto.StudentListResponse{}, ErrForbidden
	}
	snapshot, err := s.pending.Collection().Load(ctx)
	if err != nil {
		return dto.StudentListResponse{}, err
	}
	return studentList(snapshot.Revision, snapshot.Records, filter), nil
}

func (s *studentService) ListApproved(ctx context.Context, actor session.Actor, filter dto.StudentFilter) (dto.StudentListResponse, error) {
	if !actor.IsAdmin() {
		return dto.StudentListResponse{}, ErrForbidden
	}
	snapshot, err := s.approved.Collection().Load(ctx)
	if err != nil {
		return dto.StudentListResponse{}, err
	}
	return studentList(snapshot.Revision, snapshot.Records, filter), nil
}

func (s *studentService) Approve(ctx context.Context, actor session.Actor, opts collection.MutationOptions, email string) (dto.StudentResponse, error) {
	if !actor.IsAdmin() {
		return dto.StudentResponse{}, ErrForbidden
	}

	var moved models.StudentRequest
	_, _, err := collection.ApplyPair(ctx, s.pending, s.approved, opts,
		func(requests []models.StudentRequest, approved []models.ApprovedStudent) ([]models.StudentRequest, []models.ApprovedStudent, error) {
			idx := findByEmail(requests, email)
			if idx < 0 {
				return nil, nil, fmt.Errorf("pending %s: %w", email, ErrStudentNotFound)
			}
			moved = requests[idx]
			requests = append(requests[:idx], requests[idx+1:]...)

			if existing := findByEmail(approved, moved.Email); existing >= 0 {
				approved[existing] = moved
			} else {
				approved = append(approved, moved)
			}
			return requests, approved, nil
		})
	if err != nil {
		return dto.StudentResponse{}, err
	}

	s.logger.Info().Str("email", maskEmail(moved.Email)).Str("actor", actor.ID).Msg("student approved")
	return dto.NewStudentResponse(moved), nil
}

func (s *studentService) Decline(ctx context.Context, actor session.Actor, opts collection.MutationOptions, email string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	_, err := s.pending.Apply(ctx, opts, removeByEmail[models.StudentRequest](email))
	if err != nil {
		return err
	}
	s.logger.Info().Str("email", maskEmail(email)).Str("actor", actor.ID).Msg("student registration declined")
	return nil
}

func (s *studentService) Remove(ctx context.Context, actor session.Actor, opts collection.MutationOptions, email string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	_, err := s.approved.Apply(ctx, opts, removeByEmail[models.ApprovedStudent](email))
	if err != nil {
		return err
	}
	s.logger.Info().Str("email", maskEmail(email)).Str("actor", actor.ID).Msg("approved student removed")
	return nil
}

func removeByEmail[T collection.Record](email string) collection.Transform[T] {
	return func(records []T) ([]T, error) {
		idx := findByEmail(records, email)
		if idx < 0 {
			return nil, fmt.Errorf("%s: %w", email, ErrStudentNotFound)
		}
		return append(records[:idx], records[idx+1:]...), nil
	}
}

func findByEmail[T collection.Record](records []T, email string) int {
	email = strings.TrimSpace(email)
	for i, record := range records {
		if strings.EqualFold(record.RecordID(), email) {
			return i
		}
	}
	return -1
}

// maskEmail keeps the first and last character of the local part for log lines.
func maskEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	if len(local) <= 2 {
		return local[:1] + "***@" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + "@" + domain
}

func normalizeRegistration(req dto.StudentRegisterRequest) dto.StudentRegisterRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.RollNo = strings.TrimSpace(req.RollNo)
	req.Mobile = strings.TrimSpace(req.Mobile)
	return req
}

func studentList(revision int64, students []models.StudentRequest, filter dto.StudentFilter) dto.StudentListResponse {
	response := dto.StudentListResponse{Revision: revision, Items: make([]dto.StudentResponse, 0, len(students))}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, student := range students {
		if !equalFoldOrEmpty(filter.Department, student.Department) || !equalFoldOrEmpty(filter.Year, student.Year) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(student.Name), search) &&
			!strings.Contains(strings.ToLower(student.Email), search) &&
			!strings.Contains(strings.ToLower(student.RollNo), search) {
			continue
		}
		response.Items = append(response.Items, dto.NewStudentResponse(student))
	}
	return response
}
