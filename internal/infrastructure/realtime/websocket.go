package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
	"civicfix/internal/usecase/distribution"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxClientFrame = 4096
)

// Client frame names.
const (
	FrameJoinLocation  = "join_location"
	FrameLeaveLocation = "leave_location"
	FrameJoinIssue     = "join_issue"
	FrameLeaveIssue    = "leave_issue"
)

// Server reply names.
const (
	ReplyConnected      = "connected"
	ReplyJoinedLocation = "joined_location"
	ReplyLeftLocation   = "left_location"
	ReplyJoinedIssue    = "joined_issue"
	ReplyLeftIssue      = "left_issue"
	ReplyError          = "error"
)

type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type issueRequest struct {
	IssueID uint64 `json:"issue_id"`
}

// Handler upgrades HTTP requests to WebSocket subscriptions on the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowed := map[string]struct{}{}
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			allowed[strings.ToLower(trimmed)] = struct{}{}
		}
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowed),
		},
	}
}

// originChecker accepts same-host requests, and any listed origin. A "*"
// entry accepts everything.
func originChecker(allowed map[string]struct{}) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed["*"]; ok {
			return true
		}
		if _, ok := allowed[strings.ToLower(origin)]; ok {
			return true
		}
		parsed, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(parsed.Host, r.Host)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithAttrs(r.Context(), slog.String("component", "realtime.websocket"))
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(ctx, "websocket upgrade failed", slog.Any("err", errs.Loggable(err)))
		return
	}

	sub := h.hub.Register()
	ctx = logging.WithAttrs(ctx, slog.String("subscriber_id", sub.ID()))
	logging.Info(ctx, "subscriber connected")

	h.hub.Send(sub, Frame{Event: ReplyConnected, Data: map[string]any{
		"message":       "Connected to CivicFix real-time service",
		"subscriber_id": sub.ID(),
	}})

	go writePump(ctx, conn, sub)
	h.readPump(ctx, conn, sub)

	h.hub.Unregister(sub)
	logging.Info(ctx, "subscriber disconnected")
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn(ctx, "websocket read failed", slog.Any("err", errs.Loggable(err)))
			}
			return
		}
		h.hub.Send(sub, h.handleFrame(sub, frame))
	}
}

func (h *Handler) handleFrame(sub *Subscriber, frame clientFrame) Frame {
	switch frame.Event {
	case FrameJoinLocation, FrameLeaveLocation:
		var req locationRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.Latitude == nil || req.Longitude == nil {
			return errorFrame("Latitude and longitude are required")
		}
		channel := distribution.LocationChannel(*req.Latitude, *req.Longitude)
		if frame.Event == FrameJoinLocation {
			h.hub.Join(sub, channel)
			return Frame{Event: ReplyJoinedLocation, Data: map[string]any{
				"room":    channel,
				"message": fmt.Sprintf("Joined location updates for area around %g, %g", *req.Latitude, *req.Longitude),
			}}
		}
		h.hub.Leave(sub, channel)
		return Frame{Event: ReplyLeftLocation, Data: map[string]any{"room": channel, "message": "Left location updates"}}
	case FrameJoinIssue, FrameLeaveIssue:
		var req issueRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.IssueID == 0 {
			return errorFrame("Issue ID is required")
		}
		channel := distribution.IssueChannel(req.IssueID)
		if frame.Event == FrameJoinIssue {
			h.hub.Join(sub, channel)
			return Frame{Event: ReplyJoinedIssue, Data: map[string]any{
				"issue_id": req.IssueID,
				"message":  fmt.Sprintf("Joined updates for issue %d", req.IssueID),
			}}
		}
		h.hub.Leave(sub, channel)
		return Frame{Event: ReplyLeftIssue, Data: map[string]any{"issue_id": req.IssueID, "message": "Left issue updates"}}
	default:
		return errorFrame(fmt.Sprintf("unknown event %q", frame.Event))
	}
}

func errorFrame(message string) Frame {
	return Frame{Event: ReplyError, Data: map[string]any{"message": message}}
}

// writePump is the only writer on conn. It exits when the subscriber's
// frame stream closes or a write fails.
func writePump(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sub.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				logging.Debug(ctx, "websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
