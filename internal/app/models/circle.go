package models

import "slices"

// DefaultCircleCategory is used when a circle is created without a category
const DefaultCircleCategory = "Generale"

// Circle is a study group with its embedded chat
type Circle struct {
	ID             string        `json:"id" validate:"required"`
	Name           string        `json:"name" validate:"required"`
	Subject        string        `json:"subject"`
	ExamDate       string        `json:"examDate,omitempty"`
	Category       string        `json:"category"`
	Description    string        `json:"description"`
	CreatorID      string        `json:"creatorId" validate:"required"`
	Members        []string      `json:"members"`
	PendingMembers []string      `json:"pendingMembers"`
	Chat           []ChatMessage `json:"chat" validate:"dive"`
	CreatedAt      string        `json:"createdAt"`

	// Version of the document this value was decoded from
	Version int64 `json:"-"`
}

// IsMember reports whether userID belongs to the circle.
func (c *Circle) IsMember(userID string) bool {
	return slices.Contains(c.Members, userID)
}

// ToggleReaction flips userID's emoji reaction on messageID and returns the
// rewritten chat. The receiver is not modified. ok is false if the message
// does not exist.
func (c *Circle) ToggleReaction(messageID, emoji, userID string) (chat []ChatMessage, ok bool) {
	chat = slices.Clone(c.Chat)
	for i := range chat {
		if chat[i].ID == messageID {
			chat[i].Reactions = chat[i].Reactions.Toggle(emoji, userID)
			return chat, true
		}
	}
	return nil, false
}
