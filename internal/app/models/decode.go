package models

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/yigit/unilife/internal/gateway"
)

var validate = validator.New()

// DecodeError reports a stored document that does not match its entity shape.
type DecodeError struct {
	Collection string
	ID         string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s/%s: %v", e.Collection, e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeInto(collection string, doc gateway.Document, out any, setID func()) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return &DecodeError{Collection: collection, ID: doc.ID, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Collection: collection, ID: doc.ID, Err: err}
	}
	setID()
	if err := validate.Struct(out); err != nil {
		return &DecodeError{Collection: collection, ID: doc.ID, Err: err}
	}
	return nil
}

// DecodeUser parses a users document.
func DecodeUser(doc gateway.Document) (User, error) {
	var u User
	err := decodeInto(CollectionUsers, doc, &u, func() {
		u.ID = doc.ID
		u.Version = doc.Version
	})
	return u, err
}

// DecodeCircle parses a circles document.
func DecodeCircle(doc gateway.Document) (Circle, error) {
	var c Circle
	err := decodeInto(CollectionCircles, doc, &c, func() {
		c.ID = doc.ID
		c.Version = doc.Version
	})
	if c.Category == "" {
		c.Category = DefaultCircleCategory
	}
	return c, err
}

// DecodeNote parses a notes document.
func DecodeNote(doc gateway.Document) (Note, error) {
	var n Note
	err := decodeInto(CollectionNotes, doc, &n, func() { n.ID = doc.ID })
	return n, err
}

// DecodeAnnouncement parses an announcements document.
func DecodeAnnouncement(doc gateway.Document) (Announcement, error) {
	var a Announcement
	err := decodeInto(CollectionAnnouncements, doc, &a, func() { a.ID = doc.ID })
	if a.Priority == "" {
		a.Priority = PriorityNormal
	}
	return a, err
}

// DecodeNoteRequest parses a noteRequests document.
func DecodeNoteRequest(doc gateway.Document) (NoteRequest, error) {
	var r NoteRequest
	err := decodeInto(CollectionNoteRequests, doc, &r, func() {
		r.ID = doc.ID
		r.Version = doc.Version
	})
	return r, err
}
