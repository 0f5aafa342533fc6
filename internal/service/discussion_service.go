package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/dto"
	"github.com/noah-isme/campus-portal-api/internal/models"
	"github.com/noah-isme/campus-portal-api/internal/session"
)

var (
	// ErrDiscussionEmpty indicates the message had no text left after sanitising.
	ErrDiscussionEmpty = errors.New("message text is empty")
	// ErrDisplayNameRequired indicates a student posted before choosing a display name.
	ErrDisplayNameRequired = errors.New("display name is required before posting")
)

const messageTimeLayout = "15:04"

// DiscussionService exposes the shared discussion board.
type DiscussionService interface {
	List(ctx context.Context) (dto.DiscussionBoardResponse, error)
	Post(ctx context.Context, actor session.Actor, opts collection.MutationOptions, req dto.DiscussionPostRequest) (dto.DiscussionBoardResponse, error)
	ToggleHighlight(ctx context.Context, actor session.Actor, opts collection.MutationOptions, id string) (dto.DiscussionBoardResponse, error)
	Delete(ctx context.Context, actor session.Actor, opts collection.MutationOptions, id string) (dto.DiscussionBoardResponse, error)
	GetDisplayName(ctx context.Context, sessionID string) (string, error)
	SetDisplayName(ctx context.Context, sessionID, name string) (string, error)
}

type discussionService struct {
	mutator   *collection.Mutator[models.DiscussionMessage]
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewDiscussionService constructs a discussion service.
func NewDiscussionService(mutator *collection.Mutator[models.DiscussionMessage], validate *validator.Validate, logger zerolog.Logger) DiscussionService {
	return &discussionService{
		mutator:   mutator,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "discussion_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/campus-portal-api/internal/service/discussion"),
		now:       time.Now,
	}
}

func (s *discussionService) List(ctx context.Context) (dto.DiscussionBoardResponse, error) {
	snapshot, err := s.mutator.Collection().Load(ctx)
	if err != nil {
		return dto.DiscussionBoardResponse{}, err
	}
	return s.board(snapshot), nil
}

func (s *discussionService) Post(ctx context.Context, actor session.Actor, opts collection.MutationOptions, req dto.DiscussionPostRequest) (dto.DiscussionBoardResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.DiscussionBoardResponse{}, err
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(req.Text))
	if text == "" {
		return dto.DiscussionBoardResponse{}, ErrDiscussionEmpty
	}

	ctx, span := s.tracer.Start(ctx, "discussion.post", trace.WithAttributes(
		attribute.String("discussion.session_id", actor.ID),
		attribute.String("discussion.role", actor.Role),
	))
	defer span.End()

	now := s.now()
	message := models.DiscussionMessage{
		ID:       uuid.NewString(),
		Text:     text,
		Time:     now.Format(messageTimeLayout),
		From:     models.MessageFromStudent,
		SentAtTs: now.UnixMilli(),
	}

	if actor.IsAdmin() {
		message.From = models.MessageFromAdmin
		message.Name = models.MessageFromAdmin
	} else {
		name, err := s.authorName(ctx, actor, req.Name)
		if err != nil {
			span.RecordError(err)
			return dto.DiscussionBoardResponse{}, err
		}
		message.Name = name
	}

	snapshot, err := s.mutator.Apply(ctx, opts, func(messages []models.DiscussionMessage) ([]models.DiscussionMessage, error) {
		return append(messages, message), nil
	})
	if err != nil {
		span.RecordError(err)
		return dto.DiscussionBoardResponse{}, err
	}

	s.logger.Debug().Str("message_id", message.ID).Str("from", message.From).Int64("revision", snapshot.Revision).Msg("discussion message posted")
	return s.board(snapshot), nil
}

func (s *discussionService) ToggleHighlight(ctx context.Context, actor session.Actor, opts collection.MutationOptions, id string) (dto.DiscussionBoardResponse, error) {
	if !actor.IsAdmin() {
		return dto.DiscussionBoardResponse{}, ErrForbidden
	}

	snapshot, err := s.mutator.Apply(ctx, opts, func(messages []models.DiscussionMessage) ([]models.DiscussionMessage, error) {
		idx := collection.Find(messages, id)
		if idx < 0 {
			return nil, collection.ErrRecordNotFound
		}
		messages[idx].Highlight = !messages[idx].Highlight
		return messages, nil
	})
	if err != nil {
		return dto.DiscussionBoardResponse{}, err
	}
	return s.board(snapshot), nil
}

func (s *discussionService) Delete(ctx context.Context, actor session.Actor, opts collection.MutationOptions, id string) (dto.DiscussionBoardResponse, error) {
	if !actor.IsAdmin() {
		return dto.DiscussionBoardResponse{}, ErrForbidden
	}

	snapshot, err := s.mutator.Apply(ctx, opts, func(messages []models.DiscussionMessage) ([]models.DiscussionMessage, error) {
		idx := collection.Find(messages, id)
		if idx < 0 {
			return nil, collection.ErrRecordNotFound
		}
		return append(messages[:idx], messages[idx+1:]...), nil
	})
	if err != nil {
		return dto.DiscussionBoardResponse{}, err
	}
	return s.board(snapshot), nil
}

func (s *discussionService) GetDisplayName(ctx context.Context, sessionID string) (string, error) {
	slot, err := s.store().Load(ctx, collection.DisplayNameKey(sessionID))
	if err != nil {
		return "", err
	}
	return decodeDisplayName(slot.Payload), nil
}

func (s *discussionService) SetDisplayName(ctx context.Context, sessionID, name string) (string, error) {
	if err := s.validator.Struct(dto.DisplayNameRequest{Name: name}); err != nil {
		return "", err
	}
	name = strings.TrimSpace(s.sanitizer.Sanitize(name))
	if name == "" {
		return "", ErrDisplayNameRequired
	}

	payload, err := json.Marshal(name)
	if err != nil {
		return "", fmt.Errorf("encode display name: %w", err)
	}

	key := collection.DisplayNameKey(sessionID)
	slot, err := s.store().Load(ctx, key)
	if err != nil {
		return "", err
	}
	if _, err := s.store().Save(ctx, collection.Write{Key: key, Payload: payload, ExpectedRevision: slot.Revision}); err != nil {
		return "", err
	}
	return name, nil
}

func (s *discussionService) authorName(ctx context.Context, actor session.Actor, requested string) (string, error) {
	if strings.TrimSpace(requested) != "" {
		return s.SetDisplayName(ctx, actor.ID, requested)
	}

	name, err := s.GetDisplayName(ctx, actor.ID)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrDisplayNameRequired
	}
	return name, nil
}

func (s *discussionService) store() collection.Store {
	return s.mutator.Collection().Store()
}

func (s *discussionService) board(snapshot collection.Snapshot[models.DiscussionMessage]) dto.DiscussionBoardResponse {
	return dto.NewDiscussionBoardResponse(snapshot.Revision, snapshot.Records)
}

func decodeDisplayName(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(payload, &name); err != nil {
		return ""
	}
	return name
}
