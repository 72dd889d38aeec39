package imtypes

import "time"

// FrameType tags websocket frames in both directions.
type FrameType string

const (
	// server -> client
	FrameMessages FrameType = "messages"
	FrameError    FrameType = "error"
	FrameRead     FrameType = "read_ack"

	// client -> server
	FrameSend     FrameType = "send"
	FrameMarkRead FrameType = "read"
)

// ChatMessage is the wire form of a stored message.
type ChatMessage struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"senderId"`
	ReceiverID   string    `json:"receiverId"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	IsRead       bool      `json:"isRead"`
	SenderName   string    `json:"senderName,omitempty"`
	ReceiverName string    `json:"receiverName,omitempty"`
}

// ServerFrame is pushed to chat clients.
type ServerFrame struct {
	Type           FrameType     `json:"type"`
	ConversationID string        `json:"conversationId,omitempty"`
	Messages       []ChatMessage `json:"messages,omitempty"`
	Updated        int64         `json:"updated,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// ClientFrame is received from chat clients.
type ClientFrame struct {
	Type    FrameType `json:"type"`
	Content string    `json:"content,omitempty"`
}
