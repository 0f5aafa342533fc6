package models

// Discussion message authors.
const (
	MessageFromAdmin   = "Admin"
	MessageFromStudent = "Student"
)

// DiscussionMessage is a single post on the discussion board. Text is never edited in place;
// only Highlight may change after creation.
type DiscussionMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Time      string `json:"time"`
	From      string `json:"from"`
	Name      string `json:"name,omitempty"`
	Highlight bool   `json:"highlight"`
	SentAtTs  int64  `json:"sentAtTs,omitempty"`
}

// RecordID implements collection.Record.
func (m DiscussionMessage) RecordID() string { return m.ID }
