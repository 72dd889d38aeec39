package chatserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/middleware"
	"social-go/internal/services"
	ws "social-go/internal/websocket"
)

// WebSocketHandler 负责处理 WebSocket 连接请求。
type WebSocketHandler struct {
	hub         *ws.Hub
	upgrader    *websocket.Upgrader
	session     ws.Session
	userService services.UserService
	blacklist   auth.TokenBlacklist
	cfg         config.Config
	logger      *slog.Logger
}

// NewWebSocketHandler 创建一个新的 WebSocketHandler 实例。
func NewWebSocketHandler(
	hub *ws.Hub,
	msgService services.MessageService,
	readTracker services.ReadTracker,
	userService services.UserService,
	blacklist auth.TokenBlacklist,
	cfg config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "websocket_handler")
	return &WebSocketHandler{
		hub:         hub,
		upgrader:    ws.NewUpgrader(cfg.WebSocket, cfg.APIServer.CORS.AllowedOrigins),
		session:     ws.Session{Messages: msgService, Reads: readTracker, Logger: logger},
		userService: userService,
		blacklist:   blacklist,
		cfg:         cfg,
		logger:      logger,
	}
}

func (h *WebSocketHandler) reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ServeWS handles GET /ws/chat?token=<jwt>&peer=<userID>.
// Browsers cannot set headers on websocket requests, so the token may come
// from the query string; an Authorization header also works.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}
	if token == "" {
		h.reject(w, http.StatusUnauthorized, "缺少认证令牌")
		return
	}
	claims, err := auth.ValidateToken(r.Context(), token, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		h.logger.Info("websocket auth failed", "error", err)
		h.reject(w, http.StatusUnauthorized, "令牌无效或已过期")
		return
	}

	peerID := r.URL.Query().Get("peer")
	if peerID == "" || peerID == claims.UserID {
		h.reject(w, http.StatusBadRequest, "peer is required and must be another user")
		return
	}
	if _, err := h.userService.GetProfile(r.Context(), peerID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.reject(w, http.StatusNotFound, "peer not found")
			return
		}
		h.logger.Error("load peer failed", "peer_id", peerID, "error", err)
		h.reject(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ws.ServeChat(h.hub, h.upgrader, h.session, claims.UserID, peerID, w, r, h.cfg.WebSocket)
}
