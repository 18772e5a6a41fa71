package dto

// AddNoteRequest represents a shared note. Only file metadata is sent.
type AddNoteRequest struct {
	Title      string   `json:"title" binding:"required,max=200"`
	Content    string   `json:"content" binding:"max=20000"`
	Tags       []string `json:"tags" binding:"max=20,dive,max=40"`
	Visibility string   `json:"visibility" binding:"omitempty,oneof=private group public"`
	FileName   string   `json:"fileName" binding:"max=255"`
	FileBytes  int64    `json:"fileBytes" binding:"min=0"`
}

// AddAnnouncementRequest represents a circle announcement
type AddAnnouncementRequest struct {
	Title    string `json:"title" binding:"required,max=200"`
	Content  string `json:"content" binding:"max=5000"`
	Priority string `json:"priority" binding:"omitempty,oneof=normal high"`
}

// AddNoteRequestRequest asks the circle for notes on a topic
type AddNoteRequestRequest struct {
	Topic       string `json:"topic" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

// AssistantResponse carries generated text
type AssistantResponse struct {
	Text string `json:"text"`
}
