package apiserver

import (
	"log/slog"
	"net/http"
	"strings"

	"social-go/internal/models"
	"social-go/internal/services"
)

const maxActionLength = 32

// ActivityHandler accepts client-side activity records (page views and the like).
type ActivityHandler struct {
	activity services.ActivityRecorder
	logger   *slog.Logger
}

// NewActivityHandler 创建一个新的 ActivityHandler 实例。
func NewActivityHandler(activity services.ActivityRecorder, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activity: activity, logger: handlerLogger(logger, "activity_handler")}
}

// LogActivityRequest is the body of POST /activity.
type LogActivityRequest struct {
	Action  string `json:"action"`
	Details string `json:"details"`
}

// LogActivityHandler records the action for the caller. Recording is best
// effort, so the response is 202 even if the record is later dropped.
func (h *ActivityHandler) LogActivityHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req LogActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	action := strings.TrimSpace(req.Action)
	if action == "" || len(action) > maxActionLength {
		writeJSONResponse(w, http.StatusBadRequest, ErrorResponse{
			Error:  "输入无效",
			Fields: map[string]string{"action": "must be 1-32 characters"},
		})
		return
	}
	h.activity.Record(r.Context(), userID, models.ActivityAction(action), req.Details)
	writeJSONResponse(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
