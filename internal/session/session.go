package session

import "strings"

// Roles a session may carry.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Actor is the explicit session context handed to every service call.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), RoleAdmin)
}

// Authenticated reports whether the actor came from a valid session.
func (a Actor) Authenticated() bool {
	return strings.TrimSpace(a.ID) != "" && a.Role != ""
}

// NormalizeRole lower-cases a role, returning "" for anything other than student or admin.
func NormalizeRole(role string) string {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case RoleStudent, RoleAdmin:
		return r
	default:
		return ""
	}
}
