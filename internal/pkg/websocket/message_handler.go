package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/app/services"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/session"
)

// statusKey marks the session status as dirty alongside collection names
const statusKey = ""

// MessageHandler bridges the live caches and the session to the hub and
// dispatches inbound frames to the chat intents.
type MessageHandler struct {
	hub     *Hub
	syncer  *livesync.Syncer
	session *session.Store
	circles services.CircleService
	logger  zerolog.Logger

	mu    sync.Mutex
	dirty map[string]bool
	wake  chan struct{}
}

// NewMessageHandler creates a new MessageHandler and installs it on hub
func NewMessageHandler(
	hub *Hub,
	syncer *livesync.Syncer,
	sess *session.Store,
	circles services.CircleService,
	logger zerolog.Logger,
) *MessageHandler {
	h := &MessageHandler{
		hub:     hub,
		syncer:  syncer,
		session: sess,
		circles: circles,
		logger:  logger,
		dirty:   make(map[string]bool),
		wake:    make(chan struct{}, 1),
	}
	hub.SetWelcome(h.currentFrames)
	hub.SetDispatcher(h.HandleInbound)
	return h
}

// Start pushes frames until ctx is done. Bursts of cache events collapse
// into one frame per collection carrying the latest contents.
func (h *MessageHandler) Start(ctx context.Context) {
	unsubCaches := h.syncer.OnUpdate(func(ev livesync.Event) {
		h.markDirty(ev.Collection)
	})
	unsubSession := h.session.OnChange(func(session.State) {
		h.markDirty(statusKey)
	})

	go func() {
		defer unsubSession()
		defer unsubCaches()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.wake:
				for _, frame := range h.takeDirty() {
					h.hub.Broadcast(ctx, frame)
				}
			}
		}
	}()
}

// markDirty runs on subscription goroutines and must not block.
func (h *MessageHandler) markDirty(collection string) {
	h.mu.Lock()
	h.dirty[collection] = true
	// Cache changes can flip the degraded flags.
	h.dirty[statusKey] = true
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *MessageHandler) takeDirty() []Frame {
	h.mu.Lock()
	dirty := h.dirty
	h.dirty = make(map[string]bool)
	h.mu.Unlock()

	frames := make([]Frame, 0, len(dirty))
	for _, collection := range h.syncer.Collections() {
		if dirty[collection] {
			frames = append(frames, h.snapshotFrame(collection))
		}
	}
	if dirty[statusKey] {
		frames = append(frames, h.statusFrame())
	}
	return frames
}

// currentFrames is everything a newly connected client needs.
func (h *MessageHandler) currentFrames() []Frame {
	frames := []Frame{h.statusFrame()}
	for _, collection := range h.syncer.Collections() {
		frames = append(frames, h.snapshotFrame(collection))
	}
	return frames
}

func (h *MessageHandler) snapshotFrame(collection string) Frame {
	data, err := h.syncer.Snapshot(collection)
	if err != nil {
		// Stopped: the view must drop what it shows.
		data = []struct{}{}
	}
	return Frame{Type: FrameSnapshot, Collection: collection, Data: data}
}

func (h *MessageHandler) statusFrame() Frame {
	resp := dto.NewSessionResponse(h.session.State(), h.syncer.Statuses())
	resp.User = h.session.CurrentUser()
	return Frame{Type: FrameStatus, Data: resp}
}

// HandleInbound runs the intent an inbound frame asks for
func (h *MessageHandler) HandleInbound(ctx context.Context, frame InboundFrame) Frame {
	switch frame.Type {
	case FrameChat:
		msg, err := h.circles.SendMessage(ctx, frame.CircleID, &dto.SendMessageRequest{Text: frame.Text})
		if err != nil {
			return h.errorFrame(frame, err)
		}
		return Frame{Type: FrameAck, Data: msg}

	case FrameReaction:
		err := h.circles.ToggleReaction(ctx, frame.CircleID, frame.MessageID, &dto.ToggleReactionRequest{Emoji: frame.Emoji})
		if err != nil {
			return h.errorFrame(frame, err)
		}
		return Frame{Type: FrameAck}

	default:
		return Frame{Type: FrameError, Error: "unknown frame type " + frame.Type}
	}
}

func (h *MessageHandler) errorFrame(frame InboundFrame, err error) Frame {
	h.logger.Debug().Err(err).Str("type", frame.Type).Str("circleID", frame.CircleID).Msg("Inbound intent failed")
	var custom *apperrors.CustomError
	if errors.As(err, &custom) && custom.Message != "" {
		return Frame{Type: FrameError, Error: custom.Message}
	}
	return Frame{Type: FrameError, Error: err.Error()}
}
