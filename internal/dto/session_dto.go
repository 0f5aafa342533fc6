package dto

import "time"

// SessionCreateRequest starts a session for a declared role.
type SessionCreateRequest struct {
	Role string `json:"role" validate:"required,oneof=student admin"`
	Name string `json:"name" validate:"omitempty,max=80"`
}

// SessionResponse returns the issued token and the session it encodes.
type SessionResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Name      string    `json:"name,omitempty"`
	LoggedIn  bool      `json:"logged_in"`
	ExpiresAt time.Time `json:"expires_at"`
}
