package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/app/services"
	"github.com/yigit/unilife/internal/gateway/memstore"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/pkg/assistant"
	"github.com/yigit/unilife/internal/pkg/auth"
	"github.com/yigit/unilife/internal/session"
)

type liveEnv struct {
	ctx      context.Context
	repos    *repositories.Repositories
	session  *session.Store
	handler  *MessageHandler
	circleID string
	url      string
}

func newLiveEnv(t *testing.T) *liveEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memstore.New(zerolog.Nop())
	t.Cleanup(func() { store.Close() })
	repos := repositories.NewRepositories(store)

	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: "s", TokenIssuer: "unilife-test", TokenTTL: time.Hour})
	sess := session.NewStore(auth.NewTokenProvider(jwtService, zerolog.Nop()), repos.UserRepository,
		session.Config{AllowedEmailDomain: "@unikorestudent.it"}, zerolog.Nop())
	sess.Start()
	t.Cleanup(sess.Stop)

	syncer := livesync.NewSyncer(store, nil, zerolog.Nop())
	t.Cleanup(syncer.Stop)
	unfollow := syncer.Follow(sess)
	t.Cleanup(unfollow)

	circleID, err := repos.CircleRepository.Create(ctx, &models.Circle{
		Name: "Fisica I", CreatorID: models.DemoUserID, Members: []string{models.DemoUserID},
	})
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}
	sess.EnterGuest(ctx)

	ai := assistant.New(ctx, nil, assistant.Config{}, nil, zerolog.Nop())
	svc := services.NewServices(repos, sess, syncer, ai, nil, zerolog.Nop())

	hub := NewHub(nil, zerolog.Nop())
	handler := NewMessageHandler(hub, syncer, sess, svc.CircleService, zerolog.Nop())
	handler.Start(ctx)
	go hub.Run(ctx)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/live", func(c *gin.Context) {
		c.Set("userID", models.DemoUserID)
		c.Next()
	}, NewHandler(ctx, hub, zerolog.Nop()).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &liveEnv{ctx: ctx, repos: repos, session: sess, handler: handler, circleID: circleID, url: srv.URL}
}

type testFrame struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	Ref        string          `json:"ref"`
	Error      string          `json:"error"`
	Data       json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv, "http")+"/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, what string, match func(testFrame) bool) testFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f testFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if match(f) {
			return f
		}
	}
}

func TestLiveChannelPushesSnapshotsAndRunsChat(t *testing.T) {
	e := newLiveEnv(t)
	conn := dial(t, e.url)

	status := readUntil(t, conn, "status frame", func(f testFrame) bool { return f.Type == FrameStatus })
	assert.Equal(t, strings.Contains(string(status.Data), `"guest":true`), true)
	readUntil(t, conn, "circles snapshot", func(f testFrame) bool {
		return f.Type == FrameSnapshot && f.Collection == models.CollectionCircles &&
			strings.Contains(string(f.Data), "Fisica I")
	})

	err := conn.WriteJSON(InboundFrame{Type: FrameChat, Ref: "r1", CircleID: e.circleID, Text: "ciao a tutti"})
	assert.Equal(t, err, nil)
	ack := readUntil(t, conn, "chat ack", func(f testFrame) bool { return f.Ref == "r1" })
	assert.Equal(t, ack.Type, FrameAck)

	readUntil(t, conn, "circles snapshot with the message", func(f testFrame) bool {
		return f.Type == FrameSnapshot && f.Collection == models.CollectionCircles &&
			strings.Contains(string(f.Data), "ciao a tutti")
	})

	err = conn.WriteJSON(InboundFrame{Type: FrameChat, Ref: "r2", CircleID: e.circleID, Text: "  "})
	assert.Equal(t, err, nil)
	rejected := readUntil(t, conn, "chat rejection", func(f testFrame) bool { return f.Ref == "r2" })
	assert.Equal(t, rejected.Type, FrameError)
}

func TestSignOutPushesEmptySnapshots(t *testing.T) {
	e := newLiveEnv(t)
	conn := dial(t, e.url)
	readUntil(t, conn, "circles snapshot", func(f testFrame) bool {
		return f.Type == FrameSnapshot && f.Collection == models.CollectionCircles && strings.Contains(string(f.Data), "Fisica I")
	})

	assert.Equal(t, e.session.SignOut(e.ctx), nil)
	readUntil(t, conn, "cleared circles snapshot", func(f testFrame) bool {
		return f.Type == FrameSnapshot && f.Collection == models.CollectionCircles && string(f.Data) == "[]"
	})
	readUntil(t, conn, "signed-out status", func(f testFrame) bool {
		return f.Type == FrameStatus && strings.Contains(string(f.Data), `"authenticated":false`)
	})
}

func TestHandleInboundUnknownType(t *testing.T) {
	e := newLiveEnv(t)
	f := e.handler.HandleInbound(e.ctx, InboundFrame{Type: "typing"})
	assert.Equal(t, f.Type, FrameError)
}
