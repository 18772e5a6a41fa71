package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/unilife/internal/app/controllers"
	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/middleware"
	"github.com/yigit/unilife/internal/pkg/websocket"
	"github.com/yigit/unilife/internal/session"
)

// Controllers groups the handlers mounted by SetupRouter
type Controllers struct {
	Session    *controllers.SessionController
	User       *controllers.UserController
	Circle     *controllers.CircleController
	Content    *controllers.ContentController
	Assistant  *controllers.AssistantController
	Preference *controllers.PreferenceController
	Live       *websocket.Handler
}

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	ctrl Controllers,
	sess *session.Store,
	syncer *livesync.Syncer,
	metricsHandler http.Handler,
) {
	v1 := router.Group("/api/v1")

	// --- Public session routes ---
	sessionRoutes := v1.Group("/session")
	{
		sessionRoutes.GET("", ctrl.Session.GetSession)
		sessionRoutes.POST("/sign-in", ctrl.Session.SignIn)
		sessionRoutes.POST("/guest", ctrl.Session.EnterGuest)
		sessionRoutes.POST("/sign-out", ctrl.Session.SignOut)
	}

	// Preferences are local to this client and survive sign-out
	preferences := v1.Group("/preferences")
	{
		preferences.GET("/theme", ctrl.Preference.GetTheme)
		preferences.PUT("/theme", ctrl.Preference.SetTheme)
	}

	// --- Routes that need a session ---
	authenticated := v1.Group("")
	authenticated.Use(middleware.SessionRequired(sess))
	{
		users := authenticated.Group("/users")
		{
			users.GET("", ctrl.User.ListUsers)
			users.PUT("/me", ctrl.User.UpdateProfile)
			users.GET("/:id", ctrl.User.GetUser)
			users.POST("/:id/friend-requests", ctrl.User.SendFriendRequest)
		}

		circles := authenticated.Group("/circles")
		{
			circles.GET("", ctrl.Circle.ListCircles)
			circles.POST("", ctrl.Circle.CreateCircle)
			circles.GET("/:id", ctrl.Circle.GetCircle)
			circles.POST("/:id/join", ctrl.Circle.JoinCircle)

			circles.GET("/:id/messages", ctrl.Circle.ListMessages)
			circles.POST("/:id/messages", ctrl.Circle.SendMessage)
			circles.POST("/:id/messages/:messageId/reactions", ctrl.Circle.ToggleReaction)

			circles.GET("/:id/notes", ctrl.Content.ListNotes)
			circles.POST("/:id/notes", ctrl.Content.AddNote)
			circles.GET("/:id/announcements", ctrl.Content.ListAnnouncements)
			circles.POST("/:id/announcements", ctrl.Content.AddAnnouncement)
			circles.GET("/:id/requests", ctrl.Content.ListRequests)
			circles.POST("/:id/requests", ctrl.Content.AddRequest)
		}

		authenticated.POST("/requests/:id/fulfill", ctrl.Content.FulfillRequest)
		authenticated.POST("/requests/:id/study-plan", ctrl.Assistant.SuggestPlan)
		authenticated.POST("/notes/:id/summary", ctrl.Assistant.SummarizeNote)

		authenticated.GET("/live", ctrl.Live.HandleConnection)
	}

	// Health check endpoint (public)
	v1.GET("/health", func(c *gin.Context) {
		st := sess.State()
		status := "ok"
		if st.BackendUnreachable || syncer.Degraded() {
			status = "degraded"
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{
			"status":             status,
			"authenticated":      st.Authenticated,
			"backendUnreachable": st.BackendUnreachable,
			"liveSync":           syncer.Active(),
		}))
	})

	router.GET("/metrics", gin.WrapH(metricsHandler))
}
