package apiserver

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"social-go/internal/services"
)

// EventHandler 封装了活动相关的 HTTP 处理器方法。
type EventHandler struct {
	eventService services.EventService
	logger       *slog.Logger
}

// NewEventHandler 创建一个新的 EventHandler 实例。
func NewEventHandler(eventService services.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{eventService: eventService, logger: handlerLogger(logger, "event_handler")}
}

// ListEventsHandler 列出全部活动。
func (h *EventHandler) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "获取活动列表失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, events)
}

// CreateEventHandler 创建活动，创建者自动加入。
func (h *EventHandler) CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req services.CreateEventInput
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := h.eventService.Create(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, h.logger, "创建活动失败", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, event)
}

// GetEventHandler 返回单个活动。
func (h *EventHandler) GetEventHandler(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, "获取活动失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, event)
}

// JoinEventHandler 加入活动。
func (h *EventHandler) JoinEventHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	event, err := h.eventService.Join(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeServiceError(w, h.logger, "加入活动失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, event)
}
