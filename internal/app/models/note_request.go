package models

// RequestStatus of a note request; it only moves from open to fulfilled
type RequestStatus string

const (
	RequestOpen      RequestStatus = "open"
	RequestFulfilled RequestStatus = "fulfilled"
)

// NoteRequest asks the circle for notes on a topic
type NoteRequest struct {
	ID           string        `json:"id" validate:"required"`
	CircleID     string        `json:"circleId" validate:"required"`
	AuthorID     string        `json:"authorId" validate:"required"`
	AuthorName   string        `json:"authorName"`
	AuthorAvatar string        `json:"authorAvatar"`
	Topic        string        `json:"topic" validate:"required"`
	Description  string        `json:"description"`
	Timestamp    string        `json:"timestamp" validate:"required"`
	Status       RequestStatus `json:"status" validate:"required,oneof=open fulfilled"`
	FulfilledBy  string        `json:"fulfilledBy,omitempty"`

	// Version of the document this value was decoded from
	Version int64 `json:"-"`
}

// IsOpen reports whether the request still accepts a fulfiller.
func (r *NoteRequest) IsOpen() bool {
	return r.Status == RequestOpen
}
