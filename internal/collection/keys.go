package collection

import "strings"

// Key identifies a named collection. Keys are a stable contract shared by every view.
type Key string

// Well-known collection keys.
const (
	KeyBooks            Key = "booksUploads"
	KeyNotes            Key = "notesUploads"
	KeyPYQs             Key = "pyqsUploads"
	KeyDiscussion       Key = "discussion_msgs"
	KeyStudentRequests  Key = "student_requests"
	KeyApprovedStudents Key = "approved_students"

	displayNamePrefix = "discussion_user/"
)

var knownKeys = map[Key]struct{}{
	KeyBooks:            {},
	KeyNotes:            {},
	KeyPYQs:             {},
	KeyDiscussion:       {},
	KeyStudentRequests:  {},
	KeyApprovedStudents: {},
}

// String returns the raw key.
func (k Key) String() string { return string(k) }

// Known reports whether k is one of the shared record collections.
func (k Key) Known() bool {
	_, ok := knownKeys[k]
	return ok
}

// ParseKey resolves a raw collection name, reporting false for unknown names.
func ParseKey(raw string) (Key, bool) {
	key := Key(strings.TrimSpace(raw))
	return key, key.Known()
}

// DisplayNameKey returns the single-value slot holding a session's discussion display name.
func DisplayNameKey(sessionID string) Key {
	return Key(displayNamePrefix + strings.TrimSpace(sessionID))
}
