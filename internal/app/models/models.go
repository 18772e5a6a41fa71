package models

import "time"

// Collection names in the document store
const (
	CollectionUsers         = "users"
	CollectionCircles       = "circles"
	CollectionNotes         = "notes"
	CollectionAnnouncements = "announcements"
	CollectionNoteRequests  = "noteRequests"
)

// Karma rewards
const (
	KarmaNoteShared       = 10
	KarmaRequestFulfilled = 50
)

// TimestampLayout is fixed width so lexical order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a value produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}
