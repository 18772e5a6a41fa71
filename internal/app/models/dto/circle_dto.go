package dto

import "github.com/yigit/unilife/internal/app/models"

// CreateCircleRequest represents data for creating a study circle
type CreateCircleRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Subject     string `json:"subject" binding:"max=100"`
	ExamDate    string `json:"examDate" binding:"omitempty,datetime=2006-01-02"`
	Category    string `json:"category" binding:"max=50"`
	Description string `json:"description" binding:"max=1000"`
}

// SendMessageRequest represents a chat message sent to a circle
type SendMessageRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

// ToggleReactionRequest flips the caller's reaction on a message
type ToggleReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}

// CreatedResponse returns the id of a newly created document
type CreatedResponse struct {
	ID string `json:"id"`
}

// CircleSummary is a circle without its chat, for list views
type CircleSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Subject      string   `json:"subject"`
	ExamDate     string   `json:"examDate,omitempty"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	CreatorID    string   `json:"creatorId"`
	Members      []string `json:"members"`
	MemberCount  int      `json:"memberCount"`
	MessageCount int      `json:"messageCount"`
	IsMember     bool     `json:"isMember"`
	CreatedAt    string   `json:"createdAt"`
}

// NewCircleSummary builds the list view of c for viewerID
func NewCircleSummary(c models.Circle, viewerID string) CircleSummary {
	return CircleSummary{
		ID:           c.ID,
		Name:         c.Name,
		Subject:      c.Subject,
		ExamDate:     c.ExamDate,
		Category:     c.Category,
		Description:  c.Description,
		CreatorID:    c.CreatorID,
		Members:      c.Members,
		MemberCount:  len(c.Members),
		MessageCount: len(c.Chat),
		IsMember:     c.IsMember(viewerID),
		CreatedAt:    c.CreatedAt,
	}
}
