package apiserver

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"social-go/internal/services"
)

// UserHandler 封装了用户相关的 HTTP 处理器方法。
type UserHandler struct {
	userService  services.UserService
	eventService services.EventService
	logger       *slog.Logger
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService services.UserService, eventService services.EventService, logger *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, eventService: eventService, logger: handlerLogger(logger, "user_handler")}
}

// GetMyProfileHandler 处理获取当前登录用户信息的请求。
func (h *UserHandler) GetMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, "获取用户信息失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateMyProfileHandler 处理更新当前登录用户信息的请求。
func (h *UserHandler) UpdateMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req services.UpdateProfileInput
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, h.logger, "更新用户信息失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// GetUserProfileHandler 处理获取指定用户公开信息的请求。
func (h *UserHandler) GetUserProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetProfile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, "获取用户信息失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// SearchUsersHandler 处理 GET /users/search?query=。
func (h *UserHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	users, err := h.userService.Search(r.Context(), r.URL.Query().Get("query"), userID)
	if err != nil {
		writeServiceError(w, h.logger, "搜索用户失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// ListUsersHandler returns every user; the events page uses it to show names.
func (h *UserHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "获取用户列表失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// MyEventsHandler lists events the caller created or joined.
func (h *UserHandler) MyEventsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	events, err := h.eventService.ListForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, "获取活动失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, events)
}
