package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
	"github.com/mserranom/lean-ci-sub000/internal/service"
)

// BuildHandler handles build requests, job status callbacks and the
// admission-queue listings.
type BuildHandler struct {
	orchestrator *service.PipelineOrchestrator
	queue        *service.BuildAdmissionQueue
}

// NewBuildHandler creates a new BuildHandler.
func NewBuildHandler(orchestrator *service.PipelineOrchestrator, queue *service.BuildAdmissionQueue) *BuildHandler {
	return &BuildHandler{orchestrator: orchestrator, queue: queue}
}

type requestBuildRequest struct {
	Repo   string `json:"repo" validate:"required"`
	Commit string `json:"commit" validate:"required"`
}

// Request creates a pipeline for the repository and its dependents.
func (h *BuildHandler) Request(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	var req requestBuildRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	pipeline, err := h.orchestrator.RequestBuild(c.Request().Context(), userID, req.Repo, req.Commit)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, pipeline)
}

type updateJobStatusRequest struct {
	Status domain.JobStatus `json:"status" validate:"required,oneof=queued running success failed skipped"`
}

// UpdateJobStatus applies an externally reported job status change, the
// callback path used by the build-agent layer.
func (h *BuildHandler) UpdateJobStatus(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	var req updateJobStatusRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	job, err := h.orchestrator.UpdateJobStatus(c.Request().Context(), userID, c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, job)
}

// ListBuilds lists the user's builds filtered by status, in the admission
// queue's fixed per-status order.
func (h *BuildHandler) ListBuilds(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	page := parsePage(c)
	ctx := c.Request().Context()

	var (
		jobs []domain.Job
		err  error
	)
	switch status := c.QueryParam("status"); status {
	case "queued":
		jobs, err = h.queue.Queued(ctx, userID, page)
	case "running":
		jobs, err = h.queue.Running(ctx, userID, page)
	case "success":
		jobs, err = h.queue.Successful(ctx, userID, page)
	case "failed":
		jobs, err = h.queue.Failed(ctx, userID, page)
	case "", "finished":
		jobs, err = h.queue.Finished(ctx, userID, page)
	default:
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	if err != nil {
		return err
	}

	return JSONList(c, http.StatusOK, jobs, PaginationMeta{
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasNext: page.Limit > 0 && len(jobs) == page.Limit,
	})
}

// DequeueNext returns the next queued build without transitioning it; the
// scheduler commits to running it through UpdateJobStatus.
func (h *BuildHandler) DequeueNext(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	job, err := h.queue.DequeueNext(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	if job == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return JSON(c, http.StatusOK, job)
}

// GetPipeline returns one pipeline.
func (h *BuildHandler) GetPipeline(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	pipeline, err := h.orchestrator.Pipeline(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, pipeline)
}

// ListPipelines lists active or finished pipelines, most recent first.
func (h *BuildHandler) ListPipelines(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	page := parsePage(c)
	ctx := c.Request().Context()

	var (
		pipelines []domain.Pipeline
		err       error
	)
	switch state := c.QueryParam("state"); state {
	case "", "active":
		pipelines, err = h.orchestrator.ActivePipelines(ctx, userID, page)
	case "finished":
		pipelines, err = h.orchestrator.FinishedPipelines(ctx, userID, page)
	default:
		return fmt.Errorf("%w: unknown state %q", domain.ErrInvalidInput, state)
	}
	if err != nil {
		return err
	}

	return JSONList(c, http.StatusOK, pipelines, PaginationMeta{
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasNext: page.Limit > 0 && len(pipelines) == page.Limit,
	})
}

func parsePage(c echo.Context) service.Page {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return service.Page{Limit: limit, Offset: offset}
}
