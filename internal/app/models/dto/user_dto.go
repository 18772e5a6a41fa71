package dto

// UpdateProfileRequest holds every editable profile field. Omitted fields
// are written as empty.
type UpdateProfileRequest struct {
	Bio            string   `json:"bio"`
	Year           string   `json:"year" binding:"max=30"`
	Role           string   `json:"role" binding:"omitempty,oneof=student tutor representative"`
	Interests      []string `json:"interests"`
	GithubUsername string   `json:"githubUsername"`
}

// ThemeRequest sets the UI theme
type ThemeRequest struct {
	Theme string `json:"theme" binding:"required,oneof=light dark"`
}

// ThemeResponse reports the stored UI theme
type ThemeResponse struct {
	Theme string `json:"theme"`
}
