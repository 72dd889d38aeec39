package apiserver

import (
	"log/slog"
	"net/http"

	"social-go/internal/services"
)

// FriendHandler 封装了好友相关的 HTTP 处理器方法。
type FriendHandler struct {
	friendService services.FriendService
	logger        *slog.Logger
}

// NewFriendHandler 创建一个新的 FriendHandler 实例。
func NewFriendHandler(friendService services.FriendService, logger *slog.Logger) *FriendHandler {
	return &FriendHandler{friendService: friendService, logger: handlerLogger(logger, "friend_handler")}
}

// AddFriendRequest is the body of POST /friends.
type AddFriendRequest struct {
	FriendID string `json:"friendId"`
}

// ListFriendsHandler 列出当前用户的好友。
func (h *FriendHandler) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	friends, err := h.friendService.ListFriends(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, "获取好友列表失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}

// AddFriendHandler 双向添加好友；重复添加不报错。
func (h *FriendHandler) AddFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req AddFriendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.friendService.AddFriend(r.Context(), userID, req.FriendID); err != nil {
		writeServiceError(w, h.logger, "添加好友失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "好友添加成功", "friendId": req.FriendID})
}
