package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
	"github.com/mserranom/lean-ci-sub000/internal/service"
)

// RepositoryHandler handles repository registration and graph endpoints.
type RepositoryHandler struct {
	graphs *service.DependencyGraphService
}

// NewRepositoryHandler creates a new RepositoryHandler.
func NewRepositoryHandler(graphs *service.DependencyGraphService) *RepositoryHandler {
	return &RepositoryHandler{graphs: graphs}
}

type registerRepositoryRequest struct {
	Name string `json:"name" validate:"required"`
}

// Register registers a repository and links it into the dependency graph.
func (h *RepositoryHandler) Register(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	var req registerRepositoryRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	repo, err := h.graphs.RegisterRepository(c.Request().Context(), userID, req.Name)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, repo)
}

// List returns the user's registered repositories.
func (h *RepositoryHandler) List(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	repos, err := h.graphs.ListRepositories(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, repos)
}

// Delete removes a repository and prunes its dependency edges.
func (h *RepositoryHandler) Delete(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	name := c.QueryParam("name")
	if name == "" {
		return fmt.Errorf("%w: name query parameter is required", domain.ErrInvalidInput)
	}

	if err := h.graphs.RemoveRepository(c.Request().Context(), userID, name); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Sync re-resolves a repository's dependency manifest, typically called from
// a push webhook.
func (h *RepositoryHandler) Sync(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	name := c.QueryParam("name")
	if name == "" {
		return fmt.Errorf("%w: name query parameter is required", domain.ErrInvalidInput)
	}

	snap, err := h.graphs.SyncDependencies(c.Request().Context(), userID, name)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, snap)
}

// Graph returns the user's dependency graph.
func (h *RepositoryHandler) Graph(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	snap, err := h.graphs.Graph(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, snap)
}
