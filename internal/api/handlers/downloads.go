package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/denisAlshanov/ytgrab/internal/models"
	"github.com/denisAlshanov/ytgrab/internal/services/downloader"
	"github.com/denisAlshanov/ytgrab/internal/utils"
)

const defaultHeartbeatInterval = 15 * time.Second

type DownloadHandler struct {
	service   *downloader.Service
	heartbeat time.Duration
}

func NewDownloadHandler(service *downloader.Service) *DownloadHandler {
	return &DownloadHandler{
		service:   service,
		heartbeat: defaultHeartbeatInterval,
	}
}

// CreateDownload godoc
// @Summary Start a download
// @Description Validate a YouTube URL and start downloading it in the background. Only one download runs at a time.
// @Tags downloads
// @Accept json
// @Produce json
// @Param request body models.CreateDownloadRequest true "Video URL"
// @Success 202 {object} models.Download
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/downloads [post]
func (h *DownloadHandler) CreateDownload(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.CreateDownloadRequest
	if err := c.ShouldBind(&req); err != nil {
		errorResponse(c, utils.NewValidationError("Invalid request body", map[string]interface{}{
			"error": err.Error(),
		}))
		return
	}

	job, err := h.service.Submit(ctx, req.URL)
	if err != nil {
		handleError(c, err, "Failed to start download")
		return
	}

	c.Header("Location", "/api/v1/downloads/"+job.ID)
	c.JSON(http.StatusAccepted, job.Snapshot())
}

// ListDownloads godoc
// @Summary List recent downloads
// @Description List the downloads kept in memory, newest first, and whether one is running.
// @Tags downloads
// @Produce json
// @Success 200 {object} models.DownloadListResponse
// @Router /api/v1/downloads [get]
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	c.JSON(http.StatusOK, models.DownloadListResponse{
		Busy:      h.service.Busy(),
		Downloads: h.service.Jobs(),
	})
}

// GetCurrentDownload godoc
// @Summary Get the running download
// @Tags downloads
// @Produce json
// @Success 200 {object} models.Download
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/downloads/current [get]
func (h *DownloadHandler) GetCurrentDownload(c *gin.Context) {
	job, ok := h.service.Active()
	if !ok {
		errorResponse(c, utils.NewError(utils.ErrorCodeDownloadNotFound, "No download in progress", http.StatusNotFound))
		return
	}

	c.JSON(http.StatusOK, job.Snapshot())
}

// GetDownload godoc
// @Summary Get a download
// @Tags downloads
// @Produce json
// @Param id path string true "Download ID"
// @Success 200 {object} models.Download
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/downloads/{id} [get]
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	job, ok := h.service.Get(c.Param("id"))
	if !ok {
		errorResponse(c, utils.NewDownloadNotFoundError(c.Param("id")))
		return
	}

	c.JSON(http.StatusOK, job.Snapshot())
}

// CancelDownload godoc
// @Summary Cancel a running download
// @Description Request cancellation. The download finishes in the cancelled phase shortly after.
// @Tags downloads
// @Produce json
// @Param id path string true "Download ID"
// @Success 202 {object} models.Download
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/downloads/{id} [delete]
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	job, ok := h.service.Get(id)
	if !ok {
		errorResponse(c, utils.NewDownloadNotFoundError(id))
		return
	}
	if err := h.service.Cancel(id); err != nil {
		handleError(c, err, "Failed to cancel download")
		return
	}

	utils.LogInfo(c.Request.Context(), "Download cancellation requested", utils.Fields{"job_id": id})

	c.JSON(http.StatusAccepted, job.Snapshot())
}

// StreamEvents godoc
// @Summary Stream download events
// @Description Server-sent events with status, progress and the final result. Reconnecting clients resume after Last-Event-ID. The stream ends after the terminal event.
// @Tags downloads
// @Produce text/event-stream
// @Param id path string true "Download ID"
// @Param Last-Event-ID header string false "Resume after this event sequence"
// @Success 200 {object} models.DownloadEvent
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/downloads/{id}/events [get]
func (h *DownloadHandler) StreamEvents(c *gin.Context) {
	job, ok := h.service.Get(c.Param("id"))
	if !ok {
		errorResponse(c, utils.NewDownloadNotFoundError(c.Param("id")))
		return
	}

	lastSeq := lastEventID(c)
	events := job.Events().Subscribe(c.Request.Context(), lastSeq)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.Render(-1, sse.Event{
				Id:    strconv.FormatInt(event.Seq, 10),
				Event: string(event.Type),
				Data:  event,
			})
			return true
		case <-heartbeat.C:
			c.Render(-1, sse.Event{
				Event: "heartbeat",
				Data:  gin.H{"timestamp": time.Now().Format(time.RFC3339)},
			})
			return true
		}
	})
}

// lastEventID reads the resume position from the Last-Event-ID header or the
// last_event_id query parameter. Anything unparsable replays from the start.
func lastEventID(c *gin.Context) int64 {
	raw := c.GetHeader("Last-Event-ID")
	if raw == "" {
		raw = c.Query("last_event_id")
	}

	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

func handleError(c *gin.Context, err error, message string) {
	if appErr, ok := utils.AsAppError(err); ok {
		errorResponse(c, appErr)
		return
	}

	utils.LogError(c.Request.Context(), message, err)
	errorResponse(c, utils.NewInternalError())
}

func errorResponse(c *gin.Context, err *utils.AppError) {
	c.JSON(err.StatusCode, gin.H{
		"error":      err,
		"request_id": c.GetString("request_id"),
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}
