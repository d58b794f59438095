package api

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/metrics"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
)

// wsSession is the per-connection state of the websocket read loop.
type wsSession struct {
	connID  string
	userID  string // authenticated user from the handshake token
	limiter *rate.Limiter
}

func (m *APIModule) newSession(connID, userID string) *wsSession {
	return &wsSession{
		connID:  connID,
		userID:  userID,
		limiter: rate.NewLimiter(rate.Limit(m.cfg.WS.Rate), m.cfg.WS.Burst),
	}
}

// websocketHandler returns the /ws handler. jwtProtected has already run on
// the upgrade request.
func (m *APIModule) websocketHandler() fiber.Handler {
	return websocket.New(m.handleWebSocket)
}

// handleWebSocket runs one connection until the client goes away.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals(userIDKey).(string)
	connID := m.sessions.Connect()

	client := broadcast.NewClient(connID, c)
	if err := m.hub.Register(client); err != nil {
		m.sessions.Disconnect(connID)
		m.logger.Warn("Rejected websocket connection", "connection_id", connID, "error", err)
		return
	}
	defer func() {
		m.sessions.Disconnect(connID)
		m.hub.Unregister(connID)
		// The connection is released when this handler returns, so the
		// writer must be finished with it first.
		<-client.Done()
		m.logger.Info("WebSocket client disconnected", "connection_id", connID, "user_id", userID)
	}()

	m.logger.Info("WebSocket client connected", "connection_id", connID, "user_id", userID)
	m.reply(connID, ConnectedFrame{Type: FrameConnected, ConnectionID: connID})

	sess := m.newSession(connID, userID)
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "connection_id", connID, "error", err)
			}
			return
		}
		// Each frame is handled in the background context: a request already
		// accepted runs to completion even if the client disconnects.
		m.dispatch(context.Background(), sess, raw)
	}
}

// dispatch handles one inbound frame. Replies go through the hub, which is
// the only writer to the connection.
func (m *APIModule) dispatch(ctx context.Context, sess *wsSession, raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		m.replyError(sess.connID, "", domain.Validation("invalid frame"))
		return
	}

	switch frame.Type {
	case FrameJoin:
		m.handleJoin(sess, frame)
	case FrameSubscribe:
		m.handleSubscribe(ctx, sess, frame)
	case FrameSubmitMessage:
		m.handleSubmit(ctx, sess, frame)
	default:
		m.replyError(sess.connID, frame.Type, domain.Validation("unknown frame type %q", frame.Type))
	}
}

func (m *APIModule) handleJoin(sess *wsSession, frame InboundFrame) {
	userID := frame.UserID
	if userID == "" {
		userID = sess.userID
	}
	if userID != sess.userID {
		m.replyError(sess.connID, frame.Type, domain.Validation("user_id does not match the authenticated user"))
		return
	}
	if err := m.sessions.BindUser(sess.connID, userID); err != nil {
		m.replyError(sess.connID, frame.Type, err)
		return
	}
	m.reply(sess.connID, JoinedFrame{Type: FrameJoined, UserID: userID})
}

func (m *APIModule) handleSubscribe(ctx context.Context, sess *wsSession, frame InboundFrame) {
	if err := m.rooms.Subscribe(ctx, sess.connID, frame.ChatID); err != nil {
		m.replyError(sess.connID, frame.Type, err)
		return
	}
	m.reply(sess.connID, SubscribedFrame{Type: FrameSubscribed, ChatID: frame.ChatID})
}

func (m *APIModule) handleSubmit(ctx context.Context, sess *wsSession, frame InboundFrame) {
	userID, _ := m.sessions.UserOf(sess.connID)
	if userID == "" {
		m.replyError(sess.connID, frame.Type, domain.NotAMember("connection has not joined as a user"))
		return
	}
	if !sess.limiter.Allow() {
		metrics.RateLimitHits.WithLabelValues("ws_submit").Inc()
		m.replyError(sess.connID, frame.Type, domain.Validation("rate limit exceeded"))
		return
	}

	res, err := m.pipeline.Submit(ctx, chat.SubmitInput{
		SenderID:      userID,
		ChatID:        frame.ChatID,
		Content:       frame.Content,
		AttachmentRef: frame.AttachmentRef,
		Transport:     chat.TransportWS,
	})
	if err != nil {
		m.replyError(sess.connID, frame.Type, err)
		return
	}
	m.reply(sess.connID, SubmittedFrame{Type: FrameSubmitted, Message: res.Message})
}

func (m *APIModule) reply(connID string, frame any) {
	if err := m.hub.SendTo(connID, frame); err != nil {
		m.logger.Debug("Failed to queue frame", "connection_id", connID, "error", err)
	}
}

func (m *APIModule) replyError(connID, requestType string, err error) {
	code := string(domain.KindOf(err))
	if code == "" {
		code = "internal_error"
		m.logger.Error("WebSocket request failed", "connection_id", connID, "type", requestType, "error", err)
	}
	m.reply(connID, ErrorFrame{
		Type:        FrameError,
		RequestType: requestType,
		Error:       code,
		Message:     errorMessage(err),
	})
}
