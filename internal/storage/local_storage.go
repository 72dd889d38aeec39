package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"social-go/internal/config"
	"social-go/internal/imtypes"

	"github.com/google/uuid"
)

// ErrUnsupportedFileType is returned for uploads that are not images.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// allowedImageTypes 头像和活动图片允许的 MIME 类型。
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// LocalStorageService 实现了 imtypes.StorageService 接口。
type LocalStorageService struct {
	basePath string // 本地存储的基础路径，例如 "./uploads"
	baseURL  string // 用于构建文件访问 URL 的基础 URL，例如 "/uploads"
}

// NewLocalStorageService 创建一个新的 LocalStorageService 实例。
func NewLocalStorageService(cfg config.StorageConfig) (imtypes.StorageService, error) {
	if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败 '%s': %w", cfg.LocalPath, err)
	}
	return &LocalStorageService{
		basePath: cfg.LocalPath,
		baseURL:  cfg.BaseURL,
	}, nil
}

// UploadFile 将图片保存到本地文件系统。
func (s *LocalStorageService) UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*imtypes.FileInfo, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil || !allowedImageTypes[mediaType] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, mimeType)
	}

	// 生成唯一文件名，保留原始扩展名
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		if extensions, _ := mime.ExtensionsByType(mediaType); len(extensions) > 0 {
			ext = extensions[0]
		}
	}
	uniqueFileName := uuid.New().String() + ext
	dstPath := filepath.Join(s.basePath, uniqueFileName)

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("创建目标文件失败 '%s': %w", dstPath, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, reader)
	if err != nil {
		os.Remove(dstPath)
		return nil, fmt.Errorf("写入文件失败: %w", err)
	}
	if fileSize >= 0 && written != fileSize {
		os.Remove(dstPath)
		return nil, fmt.Errorf("文件大小不匹配: 预期 %d, 实际写入 %d", fileSize, written)
	}

	return &imtypes.FileInfo{
		URL:      strings.TrimSuffix(s.baseURL, "/") + "/" + url.PathEscape(uniqueFileName),
		Path:     dstPath,
		Size:     written,
		MimeType: mediaType,
		FileName: fileName,
	}, nil
}

// DeleteFile removes a file previously returned by UploadFile.
func (s *LocalStorageService) DeleteFile(ctx context.Context, path string) error {
	clean := filepath.Clean(path)
	if filepath.Dir(clean) != filepath.Clean(s.basePath) {
		return fmt.Errorf("path %q is outside storage root", path)
	}
	if err := os.Remove(clean); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}
