package models

import (
	"slices"

	"github.com/yigit/unilife/internal/gateway"
)

// RoleType is the community role a student picks on their profile
type RoleType string

const (
	RoleStudent        RoleType = "student"
	RoleTutor          RoleType = "tutor"
	RoleRepresentative RoleType = "representative"
)

// Valid reports whether r is a known role.
func (r RoleType) Valid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleRepresentative:
		return true
	}
	return false
}

// Defaults applied to a user record created on first sign-in
const (
	DefaultUserName      = "Studente"
	DefaultUserCourse    = "In attesa di configurazione"
	DefaultUserYear      = "1° Anno"
	defaultAvatarPattern = "https://api.dicebear.com/7.x/avataaars/svg?seed="
)

// Demo profile used by guest sessions
const (
	DemoUserID    = "demo-user-123"
	DemoUserName  = "Studente Demo"
	DemoUserEmail = "demo@unikorestudent.it"
)

// User is the profile document stored under users/{uid}
type User struct {
	ID              string         `json:"id" validate:"required"`
	Name            string         `json:"name" validate:"required"`
	Email           string         `json:"email" validate:"required"`
	Avatar          string         `json:"avatar"`
	Bio             string         `json:"bio,omitempty"`
	Course          string         `json:"course,omitempty"`
	Year            string         `json:"year,omitempty"`
	Role            RoleType       `json:"role,omitempty" validate:"omitempty,oneof=student tutor representative"`
	Interests       []string       `json:"interests"`
	GithubUsername  string         `json:"githubUsername,omitempty"`
	Karma           int            `json:"karma" validate:"min=0"`
	Friends         []string       `json:"friends"`
	PendingRequests []string       `json:"pendingRequests"`
	Notifications   []Notification `json:"notifications" validate:"dive"`

	// Version of the document this value was decoded from
	Version int64 `json:"-"`
}

// NewUserFromIdentity builds the record created the first time an identity signs in.
func NewUserFromIdentity(id gateway.Identity) *User {
	name := id.DisplayName
	if name == "" {
		name = DefaultUserName
	}
	avatar := id.PhotoURL
	if avatar == "" {
		avatar = defaultAvatarPattern + id.UID
	}
	return &User{
		ID:              id.UID,
		Name:            name,
		Email:           id.Email,
		Avatar:          avatar,
		Role:            RoleStudent,
		Course:          DefaultUserCourse,
		Year:            DefaultUserYear,
		Interests:       []string{},
		Karma:           0,
		Friends:         []string{},
		PendingRequests: []string{},
		Notifications:   []Notification{},
	}
}

// NewDemoUser returns the local-only profile of a guest session.
func NewDemoUser() *User {
	u := NewUserFromIdentity(gateway.Identity{
		UID:         DemoUserID,
		Email:       DemoUserEmail,
		DisplayName: DemoUserName,
	})
	u.Bio = "Account dimostrativo"
	return u
}

// IsFriend reports whether other is in the user's friend list.
func (u *User) IsFriend(other string) bool {
	return slices.Contains(u.Friends, other)
}

// HasPendingRequestFrom reports whether sender already asked for friendship.
func (u *User) HasPendingRequestFrom(sender string) bool {
	return slices.Contains(u.PendingRequests, sender)
}
