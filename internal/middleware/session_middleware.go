package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/session"
)

// ContextUserIDKey is where SessionRequired stores the signed-in user's id
const ContextUserIDKey = "userID"

// SessionRequired rejects requests while nobody is signed in, guest included.
func SessionRequired(sess *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := sess.CurrentUser()
		if user == nil {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required").
				WithDetails("Sign in or continue as guest first")
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewAPIErrorResponse(errorDetail))
			return
		}

		c.Set(ContextUserIDKey, user.ID)
		c.Next()
	}
}
