package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"social-go/internal/config"
	"social-go/internal/imtypes"
	"social-go/internal/models"
	"social-go/internal/services"
)

// Session wires one chat connection to the message services.
type Session struct {
	Messages services.MessageService
	Reads    services.ReadTracker
	Logger   *slog.Logger
}

// Client is a middleman between the websocket connection and one conversation feed.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound control frames (errors, read acks).
	send chan imtypes.ServerFrame

	UserID string
	PeerID string

	session Session
	cfg     config.WebSocketConfig
	cancel  context.CancelFunc
	logger  *slog.Logger
}

func (c *Client) writeWait() time.Duration {
	return time.Duration(c.cfg.WriteWaitSeconds) * time.Second
}

// queue drops the frame when the client is not keeping up.
func (c *Client) queue(frame imtypes.ServerFrame) {
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("client send buffer full, dropping frame", "type", frame.Type)
	}
}

func (c *Client) queueError(err error) {
	c.queue(imtypes.ServerFrame{Type: imtypes.FrameError, Error: publicError(err)})
}

// publicError hides storage details from the peer.
func publicError(err error) string {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, services.ErrNotFound):
		return "not found"
	default:
		return "internal error"
	}
}

// readPump handles inbound frames until the connection fails or ctx ends.
func (c *Client) readPump(ctx context.Context) {
	pongWait := time.Duration(c.cfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(c.cfg.MaxMessageSizeBytes))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			} else {
				c.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", "message_type", messageType)
			continue
		}

		var frame imtypes.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.queue(imtypes.ServerFrame{Type: imtypes.FrameError, Error: "malformed frame"})
			continue
		}

		switch frame.Type {
		case imtypes.FrameSend:
			// 发送者始终是已认证用户
			if _, err := c.session.Messages.Send(ctx, c.UserID, c.PeerID, frame.Content); err != nil {
				c.logger.Info("send from websocket failed", "error", err)
				c.queueError(err)
			}
		case imtypes.FrameMarkRead:
			n, err := c.session.Reads.MarkRead(ctx, c.UserID, c.PeerID)
			if err != nil {
				c.queueError(err)
				continue
			}
			c.queue(imtypes.ServerFrame{Type: imtypes.FrameRead, ConversationID: models.ConversationID(c.UserID, c.PeerID), Updated: n})
		default:
			c.queue(imtypes.ServerFrame{Type: imtypes.FrameError, Error: "unknown frame type"})
		}
	}
}

// writePump pushes feed snapshots and queued frames to the connection.
// It owns every write on conn.
func (c *Client) writePump(ctx context.Context, feed *services.Feed) {
	ticker := time.NewTicker(time.Duration(c.cfg.PingPeriodSeconds) * time.Second)
	defer func() {
		ticker.Stop()
		// unblocks readPump
		_ = c.conn.Close()
	}()

	first := true
	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case msgs, ok := <-feed.Updates():
			if !ok {
				return
			}
			frame := imtypes.ServerFrame{
				Type:           imtypes.FrameMessages,
				ConversationID: feed.ConversationID,
				Messages:       toChatMessages(msgs),
			}
			if err := c.write(frame); err != nil {
				return
			}
			if first || endsWithUnreadFrom(msgs, c.PeerID) {
				// 正在查看会话，自动标记已读
				if _, err := c.session.Reads.MarkRead(ctx, c.UserID, c.PeerID); err != nil {
					c.logger.Warn("auto mark read failed", "error", err)
				}
			}
			first = false

		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(frame imtypes.ServerFrame) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
	if err := c.conn.WriteJSON(frame); err != nil {
		c.logger.Debug("websocket write failed", "type", frame.Type, "error", err)
		return err
	}
	return nil
}

func endsWithUnreadFrom(msgs []models.Message, senderID string) bool {
	if len(msgs) == 0 {
		return false
	}
	last := msgs[len(msgs)-1]
	return last.SenderID == senderID && !last.IsRead
}

func toChatMessages(msgs []models.Message) []imtypes.ChatMessage {
	out := make([]imtypes.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = imtypes.ChatMessage{
			ID:           m.ID,
			SenderID:     m.SenderID,
			ReceiverID:   m.ReceiverID,
			Content:      m.Content,
			Timestamp:    m.SentAt,
			IsRead:       m.IsRead,
			SenderName:   m.SenderName,
			ReceiverName: m.ReceiverName,
		}
	}
	return out
}

// NewUpgrader builds an upgrader that accepts the given origins; an empty
// list or "*" accepts any origin.
func NewUpgrader(wsCfg config.WebSocketConfig, allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	_, anyOrigin := allowed["*"]
	return &websocket.Upgrader{
		ReadBufferSize:  wsCfg.MaxMessageSizeBytes,
		WriteBufferSize: wsCfg.MaxMessageSizeBytes,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || anyOrigin || len(allowed) == 0 {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// ServeChat upgrades the request and runs the chat session between userID
// and peerID until either side goes away. It blocks for the whole session.
// The feed is closed exactly once, on return.
func ServeChat(hub *Hub, upgrader *websocket.Upgrader, session Session, userID, peerID string,
	w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	logger := session.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("user_id", userID, "peer_id", peerID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// the session outlives nothing but the connection itself
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	feed, err := session.Messages.Subscribe(ctx, userID, peerID)
	if err != nil {
		logger.Error("open message feed failed", "error", err)
		_ = conn.WriteJSON(imtypes.ServerFrame{Type: imtypes.FrameError, Error: publicError(err)})
		_ = conn.Close()
		return
	}
	defer feed.Close()

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan imtypes.ServerFrame, 16),
		UserID:  userID,
		PeerID:  peerID,
		session: session,
		cfg:     wsCfg,
		cancel:  cancel,
		logger:  logger,
	}
	if err := hub.Register(client); err != nil {
		_ = conn.Close()
		return
	}
	defer hub.Unregister(client)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writePump(ctx, feed)
	}()

	logger.Info("chat client connected")
	client.readPump(ctx)
	cancel()
	<-writerDone
	logger.Info("chat client disconnected")
}
