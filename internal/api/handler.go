package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"webintel-server/internal/jobs"
	"webintel-server/internal/model"
	"webintel-server/internal/pipeline"
	"webintel-server/internal/routing"
	"webintel-server/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Runner is the pipeline execution dependency of the HTTP layer.
type Runner interface {
	Run(ctx context.Context, jobID string, req model.PipelineRequest) (string, error)
}

// Handler serves the pipeline API.
type Handler struct {
	manager jobs.IManager
	runner  Runner
	store   store.Store
	table   *routing.Table
}

// NewHandler wires the handler.
func NewHandler(manager jobs.IManager, runner Runner, st store.Store, table *routing.Table) *Handler {
	return &Handler{manager: manager, runner: runner, store: st, table: table}
}

// StartPipeline handles POST /api/pipeline/start: it validates the request,
// registers a job and returns immediately with the job ID.
func (h *Handler) StartPipeline(c *gin.Context) {
	var req model.PipelineRequest

	decoder := newStrictDecoder(c.Request.Body)
	if err := decoder.Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ApplyDefaults()

	if req.Model != "" {
		if _, ok := h.table.ByName(req.Model); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model: " + req.Model})
			return
		}
	}

	jobID, err := h.manager.Start(c.Request.Context(), func(ctx context.Context, jobID string) (string, error) {
		return h.runner.Run(ctx, jobID, req)
	})
	if err != nil {
		if errors.Is(err, model.ErrJobLimitReached) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start pipeline"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"status":  model.JobStatusPending,
		"message": "Pipeline started. Poll the status endpoint for progress.",
	})
}

// GetStatus handles GET /api/pipeline/status/:job_id.
func (h *Handler) GetStatus(c *gin.Context) {
	job, err := h.manager.Get(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Download handles GET /api/pipeline/download/:job_id and streams the
// generated workbook.
func (h *Handler) Download(c *gin.Context) {
	job, err := h.manager.Get(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	if job.Status != model.JobStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"error":  model.ErrJobNotCompleted.Error(),
			"status": job.Status,
		})
		return
	}

	data, filename, err := h.store.Load(job.OutputFile)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "artifact no longer available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read artifact"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// DeleteJob handles DELETE /api/pipeline/:job_id. Running jobs are cancelled
// best-effort and their late results are discarded.
func (h *Handler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if err := h.manager.Delete(jobID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted", "job_id": jobID})
}

// ListJobs handles GET /api/jobs.
func (h *Handler) ListJobs(c *gin.Context) {
	list := h.manager.List()
	c.JSON(http.StatusOK, gin.H{"jobs": list, "count": len(list)})
}

// Root handles GET / with a short service description.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "webintel-server",
		"message": "Web page Q&A extraction service",
		"endpoints": gin.H{
			"start":    "POST /api/pipeline/start",
			"status":   "GET /api/pipeline/status/{job_id}",
			"download": "GET /api/pipeline/download/{job_id}",
			"delete":   "DELETE /api/pipeline/{job_id}",
			"jobs":     "GET /api/jobs",
		},
	})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var _ Runner = (*pipeline.Runner)(nil)
