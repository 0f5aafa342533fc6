package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/dto"
	"github.com/noah-isme/campus-portal-api/internal/session"
)

// ErrInvalidSession indicates a token that is malformed, expired or signed with another key.
var ErrInvalidSession = errors.New("invalid session token")

const sessionIssuer = "campus-portal-api"

// SessionClaims are the JWT claims carried by a session token.
type SessionClaims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SessionService issues and verifies session tokens.
type SessionService interface {
	Start(req dto.SessionCreateRequest) (dto.SessionResponse, error)
	Parse(token string) (session.Actor, error)
}

type sessionService struct {
	secret    []byte
	ttl       time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSessionService constructs a session service signing HS256 tokens with secret.
func NewSessionService(secret string, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) SessionService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &sessionService{
		secret:    []byte(secret),
		ttl:       ttl,
		validator: validate,
		logger:    logger.With().Str("component", "session_service").Logger(),
		now:       time.Now,
	}
}

func (s *sessionService) Start(req dto.SessionCreateRequest) (dto.SessionResponse, error) {
	req.Role = session.NormalizeRole(req.Role)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return dto.SessionResponse{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	sessionID := uuid.NewString()

	claims := SessionClaims{
		Role: req.Role,
		Name: req.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return dto.SessionResponse{}, fmt.Errorf("sign session token: %w", err)
	}

	s.logger.Info().Str("session_id", sessionID).Str("role", req.Role).Msg("session started")

	return dto.SessionResponse{
		Token:     signed,
		SessionID: sessionID,
		Role:      req.Role,
		Name:      req.Name,
		LoggedIn:  true,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *sessionService) Parse(token string) (session.Actor, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(sessionIssuer))
	if err != nil || !parsed.Valid {
		return session.Actor{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	actor := session.Actor{
		ID:   claims.Subject,
		Role: session.NormalizeRole(claims.Role),
		Name: claims.Name,
	}
	if !actor.Authenticated() {
		return session.Actor{}, ErrInvalidSession
	}
	return actor, nil
}
