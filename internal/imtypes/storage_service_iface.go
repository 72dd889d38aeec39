// internal/imtypes/storage_service_iface.go
package imtypes

import (
	"context"
	"io"
)

// StorageService 定义了文件存储操作的接口。
// 将接口定义放在 imtypes 中以打破 storage 和 handlers 之间的循环依赖。
type StorageService interface {
	// UploadFile 将读取器中的内容上传到存储系统。fileSize 为 -1 时不校验大小。
	UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*FileInfo, error)

	// DeleteFile 从存储系统中删除文件。path 是 UploadFile 返回的 Path。
	DeleteFile(ctx context.Context, path string) error
}
