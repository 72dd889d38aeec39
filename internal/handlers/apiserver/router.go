package apiserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/metrics"
	"social-go/internal/middleware"
)

// Handlers groups every HTTP handler of the API server.
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Friend       *FriendHandler
	Event        *EventHandler
	Conversation *ConversationHandler
	Activity     *ActivityHandler
	Admin        *AdminHandler
	Upload       *UploadHandler // nil disables /upload

	// Health is probed by /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the API routes wrapped in CORS and proxy-header handling.
func NewRouter(cfg config.Config, h Handlers, blacklist auth.TokenBlacklist, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := mux.NewRouter()
	r.Use(middleware.RequestInfo)

	// 公开路由
	r.HandleFunc("/healthz", healthHandler(h.Health, logger)).Methods(http.MethodGet)
	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, metrics.Handler()).Methods(http.MethodGet)
	}
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", h.Auth.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.Auth.Login).Methods(http.MethodPost)

	// API 子路由 (需要认证)
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(cfg.Auth.JWTSecretKey, blacklist, logger))

	api.HandleFunc("/auth/logout", h.Auth.LogoutHandler).Methods(http.MethodPost)

	api.HandleFunc("/users", h.User.ListUsersHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/me", h.User.GetMyProfileHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/me", h.User.UpdateMyProfileHandler).Methods(http.MethodPut)
	api.HandleFunc("/users/me/events", h.User.MyEventsHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/search", h.User.SearchUsersHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", h.User.GetUserProfileHandler).Methods(http.MethodGet)

	api.HandleFunc("/friends", h.Friend.ListFriendsHandler).Methods(http.MethodGet)
	api.HandleFunc("/friends", h.Friend.AddFriendHandler).Methods(http.MethodPost)

	api.HandleFunc("/events", h.Event.ListEventsHandler).Methods(http.MethodGet)
	api.HandleFunc("/events", h.Event.CreateEventHandler).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}", h.Event.GetEventHandler).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}/join", h.Event.JoinEventHandler).Methods(http.MethodPost)

	api.HandleFunc("/conversations", h.Conversation.GetUserConversationsHandler).Methods(http.MethodGet)
	api.HandleFunc("/conversations", h.Conversation.OpenConversationHandler).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{peerId}/messages", h.Conversation.GetConversationMessagesHandler).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{peerId}/messages", h.Conversation.SendMessageHandler).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{peerId}/read", h.Conversation.MarkReadHandler).Methods(http.MethodPost)
	api.HandleFunc("/messages/unread-count", h.Conversation.UnreadCountHandler).Methods(http.MethodGet)

	api.HandleFunc("/activity", h.Activity.LogActivityHandler).Methods(http.MethodPost)

	if h.Upload != nil {
		api.HandleFunc("/upload", h.Upload.UploadFileHandler).Methods(http.MethodPost)
	}

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminOnly)
	admin.HandleFunc("/users", h.Admin.ListUsersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", h.Admin.DeleteUserHandler).Methods(http.MethodDelete)
	admin.HandleFunc("/activities", h.Admin.ListActivitiesHandler).Methods(http.MethodGet)
	admin.HandleFunc("/logs", h.Admin.ListLogsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/logs", h.Admin.ClearLogsHandler).Methods(http.MethodDelete)
	admin.HandleFunc("/reconcile", h.Admin.ReconcileHandler).Methods(http.MethodPost)

	// 上传文件的静态服务
	if h.Upload != nil && cfg.Storage.Type == "local" && cfg.Storage.BaseURL != "" {
		staticPath := strings.TrimSuffix(cfg.Storage.BaseURL, "/") + "/"
		r.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(http.Dir(cfg.Storage.LocalPath))))
	}

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	return handlers.ProxyHeaders(handlers.CORS(corsOptions...)(r))
}

func healthHandler(check func(ctx context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				logger.Warn("health check failed", "error", err)
				writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
