package apiserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"social-go/internal/middleware"
	"social-go/internal/models"
	"social-go/internal/services"
)

// AuthHandler 封装了认证相关的 HTTP 处理器方法。
type AuthHandler struct {
	AuthService services.AuthService
	logger      *slog.Logger
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{AuthService: authService, logger: handlerLogger(logger, "auth_handler")}
}

// LoginResponse 是成功登录后返回的结构体。
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// ErrorResponse 是 API 错误响应的通用结构体。
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Register 处理用户注册请求。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.AuthService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "注册失败", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, user)
}

// Login 处理用户登录请求。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}

	token, user, err := h.AuthService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "登录失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// LogoutHandler 处理用户登出请求，将当前 Token 加入黑名单。
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证或无法解析用户声明", http.StatusUnauthorized)
		return
	}
	if err := h.AuthService.Logout(r.Context(), claims); err != nil {
		writeServiceError(w, h.logger, "登出失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "登出成功"})
}

func handlerLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}

// decodeJSON writes a 400 and returns false when the body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return false
	}
	return true
}

// currentUserID reads the authenticated user; Auth middleware guarantees it.
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID，请确保请求已通过认证", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// writeServiceError maps service errors to HTTP statuses. Remote and
// unexpected errors are logged and answered with fallback only.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, fallback string, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSONResponse(w, http.StatusBadRequest, ErrorResponse{Error: "输入无效", Fields: verr.Fields})
	case errors.Is(err, services.ErrNotFound):
		writeJSONError(w, "资源不存在", http.StatusNotFound)
	case errors.Is(err, services.ErrUserAlreadyExists):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrInvalidCredentials):
		writeJSONError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, services.ErrForbidden):
		writeJSONError(w, "没有权限", http.StatusForbidden)
	default:
		logger.Error(fallback, "error", err)
		writeJSONError(w, fallback, http.StatusInternalServerError)
	}
}

// writeJSONResponse 是一个辅助函数，用于发送 JSON 响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		// 头部已发送，编码失败时无法再返回错误
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeJSONError 是一个辅助函数，用于发送 JSON 格式的错误响应。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}
