package handlers

import (
	"errors"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/denisAlshanov/ytgrab/internal/services/storage"
	"github.com/denisAlshanov/ytgrab/internal/utils"
)

type FileHandler struct {
	library storage.Library
}

func NewFileHandler(library storage.Library) *FileHandler {
	return &FileHandler{
		library: library,
	}
}

// GetFile godoc
// @Summary Download a finished video
// @Description Serve a file from the download directory as an attachment. Supports range requests for streaming and seeking.
// @Tags files
// @Produce application/octet-stream
// @Param name path string true "File name"
// @Param Range header string false "Range header for partial content (e.g., bytes=0-1023)"
// @Success 200 {file} binary "Full file download"
// @Success 206 {file} binary "Partial content (range request)"
// @Failure 404 {object} map[string]interface{}
// @Failure 416 {object} map[string]interface{} "Range Not Satisfiable"
// @Router /files/{name} [get]
func (h *FileHandler) GetFile(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	path, info, err := h.library.Resolve(name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, storage.ErrInvalidName) {
			utils.LogError(ctx, "Failed to resolve file", err, utils.Fields{"file_name": name})
		}
		errorResponse(c, utils.NewFileNotFoundError(name))
		return
	}

	utils.LogDebug(ctx, "Serving file", utils.Fields{
		"file_name": name,
		"size":      utils.FormatBytes(info.Size()),
		"range":     c.GetHeader("Range"),
	})

	c.FileAttachment(path, name)
}
