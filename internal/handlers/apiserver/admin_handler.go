package apiserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"social-go/internal/activitylog"
	"social-go/internal/services"
)

// AdminHandler serves the /admin routes. Access is checked by middleware.AdminOnly.
type AdminHandler struct {
	adminService services.AdminService
	localLog     *activitylog.Logger // optional
	logger       *slog.Logger
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService services.AdminService, localLog *activitylog.Logger, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{adminService: adminService, localLog: localLog, logger: handlerLogger(logger, "admin_handler")}
}

// ListUsersHandler 列出所有用户。
func (h *AdminHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "获取用户列表失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// DeleteUserHandler 删除用户及其关联数据。
func (h *AdminHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	if err := h.adminService.DeleteUser(r.Context(), actorID, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, h.logger, "删除用户失败", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListActivitiesHandler returns the newest server-side activities; ?limit= caps the count.
func (h *AdminHandler) ListActivitiesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, "limit 必须是非负整数", http.StatusBadRequest)
			return
		}
		limit = n
	}
	activities, err := h.adminService.RecentActivities(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, "获取活动记录失败", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, activities)
}

// ListLogsHandler returns the local activity log, newest first.
func (h *AdminHandler) ListLogsHandler(w http.ResponseWriter, r *http.Request) {
	if h.localLog == nil {
		writeJSONResponse(w, http.StatusOK, []activitylog.LogEntry{})
		return
	}
	writeJSONResponse(w, http.StatusOK, h.localLog.Logs(r.Context()))
}

// ClearLogsHandler empties the local activity log.
func (h *AdminHandler) ClearLogsHandler(w http.ResponseWriter, r *http.Request) {
	if h.localLog != nil {
		h.localLog.Clear(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReconcileHandler runs one friend-link repair pass and returns its report.
func (h *AdminHandler) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.adminService.ReconcileFriends(r.Context())
	if err != nil {
		// the partial report is still useful to the operator
		h.logger.Error("reconcile failed", "error", err, "repaired", report.Repaired, "pruned", report.Pruned)
		writeJSONResponse(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  "好友关系修复未完成",
			"report": report,
		})
		return
	}
	writeJSONResponse(w, http.StatusOK, report)
}
