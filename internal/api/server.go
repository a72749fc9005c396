package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"orchestrator-runner/internal/auth"
	"orchestrator-runner/internal/orchestrator"
	"orchestrator-runner/internal/services"
	"orchestrator-runner/pkg/models"
)

// SessionFactory opens the services for one request.
type SessionFactory interface {
	Session(ctx context.Context) (*services.Session, error)
}

// Server holds the dependencies for the API server.
type Server struct {
	Sessions SessionFactory
}

// NewServer creates a new Server.
func NewServer(sessions SessionFactory) *Server {
	return &Server{Sessions: sessions}
}

// RegisterHandlers mounts the runner routes on g. Reads need ScopeRead and
// job starts need ScopeRun.
func RegisterHandlers(g *echo.Group, s *Server) {
	read := echo.WrapMiddleware(auth.RequireScope(auth.ScopeRead))
	run := echo.WrapMiddleware(auth.RequireScope(auth.ScopeRun))

	g.GET("/folders", s.ListFolders, read)
	g.GET("/folders/:folderId/processes", s.ListProcesses, read)
	g.GET("/folders/:folderId/entrypoints", s.ListEntryPoints, read)
	g.GET("/folders/:folderId/arguments", s.ResolveDefaultArguments, read)
	g.GET("/releases", s.ListReleases, read)
	g.POST("/folders/:folderId/jobs", s.RunProcess, run)
}

// ListFolders returns the folder options
// (GET /api/v1/folders)
func (s *Server) ListFolders(c echo.Context) error {
	ctx := c.Request().Context()
	session, err := s.Sessions.Session(ctx)
	if err != nil {
		return err
	}
	folders, err := session.Options.ListFolders(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, folders)
}

// ListProcesses returns the process options of a folder
// (GET /api/v1/folders/{folderId}/processes)
func (s *Server) ListProcesses(c echo.Context) error {
	ctx := c.Request().Context()
	folderID, err := folderParam(c)
	if err != nil {
		return err
	}
	session, err := s.Sessions.Session(ctx)
	if err != nil {
		return err
	}
	processes, err := session.Options.ListProcesses(ctx, folderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, processes)
}

// ListEntryPoints returns the entry points of the process token in ?process=
// (GET /api/v1/folders/{folderId}/entrypoints)
func (s *Server) ListEntryPoints(c echo.Context) error {
	ctx := c.Request().Context()
	folderID, err := folderParam(c)
	if err != nil {
		return err
	}
	ref, err := processParam(c)
	if err != nil {
		return err
	}
	session, err := s.Sessions.Session(ctx)
	if err != nil {
		return err
	}
	eps, err := session.Options.ListEntryPoints(ctx, ref, folderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eps)
}

// ResolveDefaultArguments returns the default arguments of ?entryPoint=
// (GET /api/v1/folders/{folderId}/arguments)
func (s *Server) ResolveDefaultArguments(c echo.Context) error {
	ctx := c.Request().Context()
	folderID, err := folderParam(c)
	if err != nil {
		return err
	}
	ref, err := processParam(c)
	if err != nil {
		return err
	}
	ep, err := models.ParseEntryPointRef(c.QueryParam("entryPoint"))
	if err != nil {
		return orchestrator.NewError("invalid entry point reference", orchestrator.ErrInvalidReference, err)
	}
	session, err := s.Sessions.Session(ctx)
	if err != nil {
		return err
	}
	args, err := session.Options.ResolveDefaultArguments(ctx, ref, folderID, ep)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, args)
}

// ListReleases returns releases filtered by ?folderId=, ?processKey= and ?top=
// (GET /api/v1/releases)
func (s *Server) ListReleases(c echo.Context) error {
	ctx := c.Request().Context()
	var filter models.ReleaseFilter
	if v := c.QueryParam("folderId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "folderId must be an integer")
		}
		filter.FolderID = id
	}
	if v := c.QueryParam("top"); v != "" {
		top, err := strconv.Atoi(v)
		if err != nil || top < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "top must be a non-negative integer")
		}
		filter.Top = top
	}
	filter.ProcessKey = c.QueryParam("processKey")

	session, err := s.Sessions.Session(ctx)
	if err != nil {
		return err
	}
	releases, err := session.Options.ListReleases(ctx, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, releases)
}

// RunRequest is the body of a process run
type RunRequest struct {
	Process        models.ProcessRef     `json:"process"`
	EntryPoint     *models.EntryPointRef `json:"entryPoint,omitempty"`
	InputArguments json.RawMessage       `json:"inputArguments,omitempty"`
}

// RunResponse carries the output arguments of a successful job
type RunResponse struct {
	OutputArguments json.RawMessage `json:"outputArguments"`
}

// RunProcess starts a job and waits for it to finish
// (POST /api/v1/folders/{folderId}/jobs)
func (s *Server) RunProcess(c echo.Context) error {
	ctx := c.Request().Context()
	folderID, err := folderParam(c)
	if err != nil {
		return err
	}
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Process.ReleaseKey == "" {
		return orchestrator.NewError("invalid process reference", orchestrator.ErrInvalidReference, nil)
	}

	session, err := s.Sessions.Session(ctx)
	if err != nil {
		return err
	}
	out, err := session.Runner.Run(ctx, services.RunRequest{
		FolderID:       folderID,
		Process:        req.Process,
		EntryPoint:     req.EntryPoint,
		InputArguments: req.InputArguments,
	})
	if err != nil {
		return err
	}
	if len(out) == 0 {
		out = json.RawMessage("null")
	}
	return c.JSON(http.StatusOK, RunResponse{OutputArguments: out})
}

func folderParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("folderId"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "folderId must be an integer")
	}
	return id, nil
}

func processParam(c echo.Context) (models.ProcessRef, error) {
	ref, err := models.ParseProcessRef(c.QueryParam("process"))
	if err != nil {
		return models.ProcessRef{}, orchestrator.NewError("invalid process reference", orchestrator.ErrInvalidReference, err)
	}
	return ref, nil
}
