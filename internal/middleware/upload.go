package middleware

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"pedidos-backend/internal/models"
	"pedidos-backend/internal/service"
)

// FilePathsKey holds the temp paths of the saved uploads in the gin context.
const FilePathsKey = "file_paths"

const imagesField = "images"

// maxUploadBytes bounds the in-memory part of multipart parsing (32MB).
const maxUploadBytes = 32 << 20

// UploadMiddleware parses the multipart form, rejects more than
// service.MaxImages files and saves each upload into uploadDir under a
// UUID-prefixed name. Handlers pick the temp paths up via FilePaths.
func UploadMiddleware(uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "failed to parse multipart form",
				Code:    "validation_failed",
				Message: err.Error(),
			})
			return
		}

		files := c.Request.MultipartForm.File[imagesField]
		if len(files) > service.MaxImages {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
				Error: fmt.Sprintf("at most %d images are allowed", service.MaxImages),
				Code:  "validation_failed",
			})
			return
		}

		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "failed to prepare upload directory",
				Code:    "persistence_failure",
				Message: err.Error(),
			})
			return
		}

		paths := make([]string, 0, len(files))
		for _, file := range files {
			dst := filepath.Join(uploadDir, uuid.New().String()+"_"+filepath.Base(file.Filename))
			if err := c.SaveUploadedFile(file, dst); err != nil {
				removeAll(paths)
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
					Error:   "failed to save uploaded file",
					Code:    "persistence_failure",
					Message: err.Error(),
				})
				return
			}
			paths = append(paths, dst)
		}

		c.Set(FilePathsKey, paths)
		c.Next()
	}
}

// FilePaths returns the temp paths saved by UploadMiddleware.
func FilePaths(c *gin.Context) []string {
	value, exists := c.Get(FilePathsKey)
	if !exists {
		return nil
	}
	paths, ok := value.([]string)
	if !ok {
		return nil
	}
	return paths
}

func removeAll(paths []string) {
	for _, path := range paths {
		os.Remove(path)
	}
}
