package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxUploadSize = 10 << 20 // 10 MiB

// allowedUploadTypes maps accepted MIME types to the extension files are
// stored with. The type is sniffed from the bytes, not trusted from the
// client's declared Content-Type.
var allowedUploadTypes = map[string]string{
	"image/jpeg":         "jpg",
	"image/png":          "png",
	"image/gif":          "gif",
	"image/webp":         "webp",
	"application/pdf":    "pdf",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"application/vnd.ms-excel": "xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": "xlsx",
	"text/plain": "txt",
	"text/csv":   "csv",
}

type UploadHandler struct {
	dir    string
	logger *zap.Logger
}

func NewUploadHandler(dir string, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{dir: dir, logger: logger}
}

// Upload handles POST /v1/upload: multipart form with a "file" field.
// Returns a stable reference URL the message endpoints accept as file_url.
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds 10MB limit"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("failed to open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		h.logger.Error("failed to sniff upload type", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	// mtype.Is ignores optional parameters like charset.
	var ext string
	for typ, e := range allowedUploadTypes {
		if mtype.Is(typ) {
			ext = e
			break
		}
	}
	if ext == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file type not allowed"})
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		h.logger.Error("failed to create upload dir", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	name := fmt.Sprintf("%s.%s", uuid.NewString(), ext)
	dest := filepath.Join(h.dir, name)
	if err := c.SaveUploadedFile(fileHeader, dest); err != nil {
		h.logger.Error("failed to save upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"url":  "/uploads/" + name,
		"name": fileHeader.Filename,
		"size": fileHeader.Size,
		"type": mtype.String(),
	})
}
