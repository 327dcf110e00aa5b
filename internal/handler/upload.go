package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUploadSize caps avatar uploads at 3 MiB.
const maxUploadSize = 3 << 20

var allowedExtensions = map[string]bool{
	".png": true,
	".jpg": true,
	".gif": true,
	".svg": true,
}

type UploadHandler struct {
	dir string
	log *zap.Logger
}

func NewUploadHandler(dir string, log *zap.Logger) *UploadHandler {
	return &UploadHandler{dir: dir, log: log}
}

// Upload validates extension and size and stores the file to disk under a
// random name, returning the stored path.
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "file is required")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		fail(c, http.StatusBadRequest, "Only image files can be uploaded")
		return
	}
	if file.Size > maxUploadSize {
		fail(c, http.StatusBadRequest, "File exceeds the 3 MiB limit")
		return
	}

	dst := filepath.Join(h.dir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		h.log.Error("Failed to store uploaded file", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to store file")
		return
	}

	ok(c, dst)
}
