// internal/imtypes/file_info.go
package imtypes

// FileInfo describes an uploaded image. URL is what clients store as an
// avatar or event image; Path stays server-side.
type FileInfo struct {
	URL      string `json:"url"`
	Path     string `json:"-"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName"`
}
