package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/denisAlshanov/ytgrab/internal/models"
	"github.com/denisAlshanov/ytgrab/internal/services/downloader"
	"github.com/denisAlshanov/ytgrab/internal/web"
)

const pageTitle = "YouTube Video Downloader"

type PageHandler struct {
	service *downloader.Service
}

type pageData struct {
	Title  string
	Busy   bool
	Active *models.Download
	Recent []models.Download
}

func NewPageHandler(service *downloader.Service) *PageHandler {
	return &PageHandler{
		service: service,
	}
}

// Index renders the download page with the running download, if any.
func (h *PageHandler) Index(c *gin.Context) {
	data := pageData{
		Title:  pageTitle,
		Recent: h.service.Jobs(),
	}

	if job, ok := h.service.Active(); ok {
		snapshot := job.Snapshot()
		data.Busy = true
		data.Active = &snapshot
	}

	c.HTML(http.StatusOK, web.IndexTemplate, data)
}
