package models

// NotificationType classifies a user notification
type NotificationType string

const (
	NotificationFriendRequest   NotificationType = "friend_request"
	NotificationCircleInvite    NotificationType = "circle_invite"
	NotificationJoinRequest     NotificationType = "join_request"
	NotificationRequestAccepted NotificationType = "request_accepted"
	NotificationNoteProvided    NotificationType = "note_provided"
)

// Notification is embedded in the recipient's user document
type Notification struct {
	ID         string           `json:"id" validate:"required"`
	Type       NotificationType `json:"type" validate:"required,oneof=friend_request circle_invite join_request request_accepted note_provided"`
	SenderID   string           `json:"senderId"`
	SenderName string           `json:"senderName"`
	CircleID   string           `json:"circleId,omitempty"`
	CircleName string           `json:"circleName,omitempty"`
	Timestamp  string           `json:"timestamp"`
	Read       bool             `json:"read"`
}
