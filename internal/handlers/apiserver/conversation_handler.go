package apiserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"social-go/internal/models"
	"social-go/internal/services"
)

// ConversationHandler 封装了会话相关的 HTTP 处理器方法。
type ConversationHandler struct {
	convoService   services.ConversationService
	messageService services.MessageService
	readTracker    services.ReadTracker
	logger         *slog.Logger
}

// NewConversationHandler 创建一个新的 ConversationHandler 实例。
func NewConversationHandler(
	convoService services.ConversationService,
	messageService services.MessageService,
	readTracker services.ReadTracker,
	logger *slog.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		convoService:   convoService,
		messageService: messageService,
		readTracker:    readTracker,
		logger:         handlerLogger(logger, "conversation_handler"),
	}
}

// ConversationView is a conversation summary as seen by one participant.
type ConversationView struct {
	ID                  string            `json:"id"`
	Participants        []string          `json:"participants"`
	OtherUserID         string            `json:"otherUserId"`
	OtherUserName       string            `json:"otherUserName"`
	LastMessageID       *string           `json:"lastMessageId,omitempty"`
	LastMessage         string            `json:"lastMessage,omitempty"`
	LastMessageSenderID string            `json:"lastMessageSenderId,omitempty"`
	LastMessageTime     *time.Time        `json:"lastMessageTime,omitempty"`
	ParticipantNames    map[string]string `json:"participantNames"`
}

func newConversationView(c *models.Conversation, viewerID string) ConversationView {
	other := c.OtherParticipant(viewerID)
	return ConversationView{
		ID:                  c.ID,
		Participants:        c.Participants(),
		OtherUserID:         other,
		OtherUserName:       c.ParticipantNames[other],
		LastMessageID:       c.LastMessageID,
		LastMessage:         c.LastMessageContent,
		LastMessageSenderID: c.LastMessageSenderID,
		LastMessageTime:     c.LastMessageAt,
		ParticipantNames:    c.ParticipantNames,
	}
}

// OpenConversationRequest is the body of POST /conversations.
type OpenConversationRequest struct {
	PeerID string `json:"peerId"`
}

// SendMessageRequest is the body of POST /conversations/{peerId}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// GetUserConversationsHandler 获取当前用户的所有会话列表，最近的在前。
func (h *ConversationHandler) GetUserConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	convs, err := h.convoService.ListForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, "获取会话列表失败", err)
		return
	}
	views := make([]ConversationView, 0, len(convs))
	for i := range convs {
		views = append(views, newConversationView(&convs[i], userID))
	}
	writeJSONResponse(w, http.StatusOK, views)
}

// OpenConversationHandler 获取或创建与 peerId 的私聊会话。
func (h *ConversationHandler) OpenConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req OpenConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	conv, created, err := h.convoService.GetOrCreateConversation(r.Context(), userID, req.PeerID)
	if err != nil {
		writeServiceError(w, h.logger, "打开会话失败", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, newConversationView(conv, userID))
}

// GetConversationMessagesHandler 返回与 peerId 之间的全部消息，按时间升序。
func (h *ConversationHandler) GetConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	msgs, err := h.messageService.ListBetween(r.Context(), userID, mux.Vars(r)["peerId"])
	if err != nil {
		writeServiceError(w, h.logger, "获取消息失败", err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSONResponse(w, http.StatusOK, msgs)
}

// SendMessageHandler 发送一条消息给 peerId。
func (h *ConversationHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.messageService.Send(r.Context(), userID, mux.Vars(r)["peerId"], req.Content)
	if err != nil {
		writeServiceError(w, h.logger, "发送消息失败", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, msg)
}

// MarkReadHandler 将 peerId 发来的未读消息标记为已读。
func (h *ConversationHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	n, err := h.readTracker.MarkRead(r.Context(), userID, mux.Vars(r)["peerId"])
	if err != nil {
		writeServiceError(w, h.logger, "标记已读失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{"updated": n})
}

// UnreadCountHandler 返回当前用户的未读消息总数。
func (h *ConversationHandler) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	n, err := h.messageService.UnreadCount(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, "获取未读数失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{"unread": n})
}
