package dto

import "github.com/noah-isme/campus-portal-api/internal/models"

// DiscussionPostRequest is a new message for the board.
type DiscussionPostRequest struct {
	Text string `json:"text" validate:"required,min=1,max=4000"`
	Name string `json:"name" validate:"omitempty,max=80"`
}

// DisplayNameRequest sets the name shown on a session's posts.
type DisplayNameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=80"`
}

// DiscussionMessageResponse is the serialized form of a message.
type DiscussionMessageResponse struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Time      string `json:"time"`
	From      string `json:"from"`
	Name      string `json:"name,omitempty"`
	Highlight bool   `json:"highlight"`
}

// DiscussionBoardResponse splits admin announcements from the rest of the conversation.
type DiscussionBoardResponse struct {
	Revision int64                       `json:"revision"`
	Admin    []DiscussionMessageResponse `json:"admin"`
	Others   []DiscussionMessageResponse `json:"others"`
}

// NewDiscussionMessageResponse converts a model into a DTO.
func NewDiscussionMessageResponse(message models.DiscussionMessage) DiscussionMessageResponse {
	return DiscussionMessageResponse{
		ID:        message.ID,
		Text:      message.Text,
		Time:      message.Time,
		From:      message.From,
		Name:      message.Name,
		Highlight: message.Highlight,
	}
}

// NewDiscussionBoardResponse groups messages the way the board displays them.
func NewDiscussionBoardResponse(revision int64, messages []models.DiscussionMessage) DiscussionBoardResponse {
	board := DiscussionBoardResponse{
		Revision: revision,
		Admin:    make([]DiscussionMessageResponse, 0),
		Others:   make([]DiscussionMessageResponse, 0),
	}
	for _, message := range messages {
		if message.From == models.MessageFromAdmin {
			board.Admin = append(board.Admin, NewDiscussionMessageResponse(message))
			continue
		}
		board.Others = append(board.Others, NewDiscussionMessageResponse(message))
	}
	return board
}
