package models

import "fmt"

// Visibility controls who may see a shared note
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityGroup   Visibility = "group"
	VisibilityPublic  Visibility = "public"
)

// PlaceholderFileURL is stored until notes carry real uploads
const PlaceholderFileURL = "#"

// Note is a shared note; only file metadata is kept
type Note struct {
	ID         string     `json:"id" validate:"required"`
	Title      string     `json:"title" validate:"required"`
	Content    string     `json:"content"`
	AuthorID   string     `json:"authorId" validate:"required"`
	CircleID   string     `json:"circleId" validate:"required"`
	Tags       []string   `json:"tags"`
	CreatedAt  string     `json:"createdAt" validate:"required"`
	Visibility Visibility `json:"visibility" validate:"omitempty,oneof=private group public"`
	FileName   string     `json:"fileName,omitempty"`
	FileSize   string     `json:"fileSize,omitempty"`
	FileURL    string     `json:"fileUrl,omitempty"`
}

// FormatFileSize renders a byte count as megabytes with one decimal, e.g. "1.5 MB".
func FormatFileSize(bytes int64) string {
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}

// AnnouncementPriority marks urgent announcements
type AnnouncementPriority string

const (
	PriorityNormal AnnouncementPriority = "normal"
	PriorityHigh   AnnouncementPriority = "high"
)

// Announcement is a circle-wide notice posted by its creator
type Announcement struct {
	ID        string               `json:"id" validate:"required"`
	Title     string               `json:"title" validate:"required"`
	Content   string               `json:"content"`
	AuthorID  string               `json:"authorId" validate:"required"`
	CircleID  string               `json:"circleId" validate:"required"`
	Timestamp string               `json:"timestamp" validate:"required"`
	Priority  AnnouncementPriority `json:"priority" validate:"omitempty,oneof=normal high"`
}
