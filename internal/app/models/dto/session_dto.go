package dto

import (
	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/session"
)

// SignInRequest carries the ID token issued by the identity provider
type SignInRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// SessionResponse is the session as the view sees it
type SessionResponse struct {
	Authenticated      bool             `json:"authenticated"`
	Guest              bool             `json:"guest"`
	BackendUnreachable bool             `json:"backendUnreachable"`
	User               *models.User     `json:"user,omitempty"`
	LastError          string           `json:"lastError,omitempty"`
	Caches             []CacheStatusDTO `json:"caches,omitempty"`
}

// CacheStatusDTO reports one live collection
type CacheStatusDTO struct {
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	Loaded     bool   `json:"loaded"`
	Degraded   bool   `json:"degraded"`
	LastError  string `json:"lastError,omitempty"`
}

// NewSessionResponse builds the view of st and the cache statuses
func NewSessionResponse(st session.State, caches []livesync.Status) SessionResponse {
	resp := SessionResponse{
		Authenticated:      st.Authenticated,
		Guest:              st.Guest,
		BackendUnreachable: st.BackendUnreachable,
		User:               st.User,
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	for _, c := range caches {
		resp.Caches = append(resp.Caches, CacheStatusDTO{
			Collection: c.Collection,
			Documents:  c.Documents,
			Loaded:     c.Loaded,
			Degraded:   c.Degraded,
			LastError:  c.LastError,
		})
	}
	return resp
}
