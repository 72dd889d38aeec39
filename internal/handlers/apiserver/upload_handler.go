package apiserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"social-go/internal/config"
	"social-go/internal/imtypes"
	"social-go/internal/storage"
)

const (
	defaultMaxMemory = 32 << 20 // multipart 表单内存上限
)

// UploadHandler 封装了文件上传相关的 HTTP 处理器方法。
type UploadHandler struct {
	storageService imtypes.StorageService
	cfg            config.StorageConfig
	logger         *slog.Logger
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(storageService imtypes.StorageService, cfg config.StorageConfig, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		storageService: storageService,
		cfg:            cfg,
		logger:         handlerLogger(logger, "upload_handler"),
	}
}

// UploadFileHandler stores one image from the multipart field "file" and
// returns its public URL, for avatars and event images.
func (h *UploadHandler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	maxUploadSize := h.cfg.MaxFileSizeMB << 20
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxMemory
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg := fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20)
			writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
		} else {
			writeJSONError(w, "解析表单失败", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeJSONError(w, "请求中缺少 'file' 字段", http.StatusBadRequest)
		} else {
			writeJSONError(w, "获取文件失败", http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	h.logger.Debug("upload received", "file_name", header.Filename, "size", header.Size, "mime_type", mimeType)

	if header.Size > maxUploadSize {
		msg := fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20)
		writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
		return
	}

	fileInfo, err := h.storageService.UploadFile(r.Context(), file, header.Size, header.Filename, mimeType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedFileType) {
			writeJSONError(w, "只支持图片文件", http.StatusUnsupportedMediaType)
			return
		}
		h.logger.Error("store upload failed", "file_name", header.Filename, "error", err)
		writeJSONError(w, "存储文件失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, fileInfo)
}
