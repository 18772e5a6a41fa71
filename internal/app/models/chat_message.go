package models

import "slices"

// Reactions maps an emoji to the ids of the users who reacted with it
type Reactions map[string][]string

// Toggle adds userID under emoji, or removes it if already there. Emoji
// keys left with no users are dropped. The receiver is not modified.
func (r Reactions) Toggle(emoji, userID string) Reactions {
	out := make(Reactions, len(r)+1)
	for k, v := range r {
		out[k] = slices.Clone(v)
	}

	users := out[emoji]
	if i := slices.Index(users, userID); i >= 0 {
		users = slices.Delete(users, i, i+1)
	} else {
		users = append(users, userID)
	}

	if len(users) == 0 {
		delete(out, emoji)
	} else {
		out[emoji] = users
	}
	return out
}

// Has reports whether userID reacted with emoji.
func (r Reactions) Has(emoji, userID string) bool {
	return slices.Contains(r[emoji], userID)
}

// ChatMessage is one entry of a circle's chat array
type ChatMessage struct {
	ID           string    `json:"id" validate:"required"`
	SenderID     string    `json:"senderId" validate:"required"`
	SenderName   string    `json:"senderName"`
	SenderAvatar string    `json:"senderAvatar"`
	Text         string    `json:"text"`
	Timestamp    string    `json:"timestamp" validate:"required"`
	Reactions    Reactions `json:"reactions"`
}
