package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orchestrator-runner/internal/auth"
	"orchestrator-runner/internal/orchestrator"
	"orchestrator-runner/internal/services"
	"orchestrator-runner/pkg/models"
)

// MockOrchestratorAPI satisfies services.OrchestratorAPI
type MockOrchestratorAPI struct {
	mock.Mock
}

func (m *MockOrchestratorAPI) ListFolders(ctx context.Context) ([]models.Folder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Folder), args.Error(1)
}

func (m *MockOrchestratorAPI) ListReleases(ctx context.Context, filter models.ReleaseFilter) ([]models.Release, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Release), args.Error(1)
}

func (m *MockOrchestratorAPI) GetEntryPoints(ctx context.Context, packageKey string, folderID int64) ([]models.EntryPoint, error) {
	args := m.Called(ctx, packageKey, folderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EntryPoint), args.Error(1)
}

func (m *MockOrchestratorAPI) StartJobs(ctx context.Context, folderID int64, req models.StartJobsRequest) ([]models.Job, error) {
	args := m.Called(ctx, folderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Job), args.Error(1)
}

func (m *MockOrchestratorAPI) GetJob(ctx context.Context, folderID, id int64) (*models.Job, error) {
	args := m.Called(ctx, folderID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

type stubSessions struct {
	api services.OrchestratorAPI
	err error
}

func (s stubSessions) Session(context.Context) (*services.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return services.NewSession(s.api, nil, nil), nil
}

var invoiceRef = models.ProcessRef{ReleaseKey: "rel-1", ProcessKey: "InvoiceBot", Version: "1.0.3"}

func newTestEcho(sessions SessionFactory, scopes ...string) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(nil)
	g := e.Group("/api/v1")
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithCaller(c.Request().Context(), auth.Caller{Subject: "test", Scopes: scopes})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	RegisterHandlers(g, NewServer(sessions))
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func problem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	var p ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestServer_ListFolders(t *testing.T) {
	t.Run("Should return folder options", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("ListFolders", mock.Anything).Return([]models.Folder{{ID: 7, FullyQualifiedName: "Shared"}}, nil)

		rec := do(newTestEcho(stubSessions{api: api}, auth.ScopeRead), http.MethodGet, "/api/v1/folders", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"name":"Shared","id":7}]`, rec.Body.String())
	})

	t.Run("Should report orchestrator outages as bad gateway", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("ListFolders", mock.Anything).
			Return(nil, orchestrator.NewError("transport failure", orchestrator.ErrTransport, errors.New("dial tcp orch.example:443")))

		rec := do(newTestEcho(stubSessions{api: api}, auth.ScopeRead), http.MethodGet, "/api/v1/folders", "")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
		p := problem(t, rec)
		assert.Equal(t, http.StatusBadGateway, p.Status)
		assert.Equal(t, "fetch failed: folders", p.Detail)
		assert.NotContains(t, rec.Body.String(), "orch.example")
	})

	t.Run("Should forbid callers without the read scope", func(t *testing.T) {
		rec := do(newTestEcho(stubSessions{api: new(MockOrchestratorAPI)}), http.MethodGet, "/api/v1/folders", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestServer_ListEntryPoints(t *testing.T) {
	t.Run("Should decode the process token", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("GetEntryPoints", mock.Anything, "InvoiceBot:1.0.3", int64(7)).
			Return([]models.EntryPoint{{UniqueID: "ep-1", Path: "Main.xaml"}}, nil)

		target := "/api/v1/folders/7/entrypoints?process=" + url.QueryEscape(invoiceRef.Token())
		rec := do(newTestEcho(stubSessions{api: api}, auth.ScopeRead), http.MethodGet, target, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"name":"Main.xaml","ref":{"uniqueId":"ep-1"}}]`, rec.Body.String())
	})

	t.Run("Should reject a garbled process token", func(t *testing.T) {
		rec := do(newTestEcho(stubSessions{api: new(MockOrchestratorAPI)}, auth.ScopeRead), http.MethodGet, "/api/v1/folders/7/entrypoints?process=nope", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should reject a non numeric folder", func(t *testing.T) {
		rec := do(newTestEcho(stubSessions{api: new(MockOrchestratorAPI)}, auth.ScopeRead), http.MethodGet, "/api/v1/folders/x/entrypoints", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "folderId must be an integer", problem(t, rec).Detail)
	})
}

func TestServer_ResolveDefaultArguments(t *testing.T) {
	t.Run("Should return 404 for an unknown entry point", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("GetEntryPoints", mock.Anything, mock.Anything, mock.Anything).Return([]models.EntryPoint{}, nil)

		target := "/api/v1/folders/7/arguments?process=" + url.QueryEscape(invoiceRef.Token()) + "&entryPoint=ep-9"
		rec := do(newTestEcho(stubSessions{api: api}, auth.ScopeRead), http.MethodGet, target, "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Should return the defaults", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("GetEntryPoints", mock.Anything, mock.Anything, mock.Anything).Return([]models.EntryPoint{
			{UniqueID: "ep-1", InputArguments: `{"properties":{"a":{"default":1}}}`},
		}, nil)

		target := "/api/v1/folders/7/arguments?process=" + url.QueryEscape(invoiceRef.Token()) + "&entryPoint=ep-1"
		rec := do(newTestEcho(stubSessions{api: api}, auth.ScopeRead), http.MethodGet, target, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"a":1}`, rec.Body.String())
	})
}

func TestServer_ListReleases(t *testing.T) {
	api := new(MockOrchestratorAPI)
	api.On("ListReleases", mock.Anything, models.ReleaseFilter{FolderID: 7, ProcessKey: "InvoiceBot", Top: 5}).
		Return([]models.Release{{Key: "rel-1", Name: "Invoice Bot"}}, nil).Once()

	rec := do(newTestEcho(stubSessions{api: api}, auth.ScopeRead), http.MethodGet, "/api/v1/releases?folderId=7&processKey=InvoiceBot&top=5", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	api.AssertExpectations(t)
}

func TestServer_RunProcess(t *testing.T) {
	body := `{"process":` + invoiceRef.Token() + `,"inputArguments":{"invoiceId":"INV-1"}}`

	t.Run("Should start the job and return its output", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("StartJobs", mock.Anything, int64(7), models.NewStartJobsRequest(invoiceRef, json.RawMessage(`{"invoiceId":"INV-1"}`))).
			Return([]models.Job{{ID: 3}}, nil)
		out := `{"total":10}`
		api.On("GetJob", mock.Anything, int64(7), int64(3)).
			Return(&models.Job{ID: 3, State: models.JobStateSuccessful, OutputArguments: &out}, nil)

		rec := do(newTestEcho(stubSessions{api: api}, auth.ScopeRun), http.MethodPost, "/api/v1/folders/7/jobs", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"outputArguments":{"total":10}}`, rec.Body.String())
	})

	t.Run("Should map a faulted job to 422", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("StartJobs", mock.Anything, mock.Anything, mock.Anything).Return([]models.Job{{ID: 3}}, nil)
		api.On("GetJob", mock.Anything, mock.Anything, mock.Anything).
			Return(&models.Job{ID: 3, State: models.JobStateFaulted, Info: "Selector not found"}, nil)

		rec := do(newTestEcho(stubSessions{api: api}, auth.ScopeRun), http.MethodPost, "/api/v1/folders/7/jobs", body)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, problem(t, rec).Detail, "Selector not found")
	})

	t.Run("Should report output that is not JSON as bad gateway", func(t *testing.T) {
		api := new(MockOrchestratorAPI)
		api.On("StartJobs", mock.Anything, mock.Anything, mock.Anything).Return([]models.Job{{ID: 3}}, nil)
		out := "total=10"
		api.On("GetJob", mock.Anything, mock.Anything, mock.Anything).
			Return(&models.Job{ID: 3, State: models.JobStateSuccessful, OutputArguments: &out}, nil)

		rec := do(newTestEcho(stubSessions{api: api}, auth.ScopeRun), http.MethodPost, "/api/v1/folders/7/jobs", body)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "malformed job output", problem(t, rec).Detail)
	})

	t.Run("Should reject a body without a process", func(t *testing.T) {
		rec := do(newTestEcho(stubSessions{api: new(MockOrchestratorAPI)}, auth.ScopeRun), http.MethodPost, "/api/v1/folders/7/jobs", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should require the run scope", func(t *testing.T) {
		rec := do(newTestEcho(stubSessions{api: new(MockOrchestratorAPI)}, auth.ScopeRead), http.MethodPost, "/api/v1/folders/7/jobs", body)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Should fail when no session can be opened", func(t *testing.T) {
		sessions := stubSessions{err: orchestrator.Wrap("credentials unavailable", errors.New("no token"))}
		rec := do(newTestEcho(sessions, auth.ScopeRun), http.MethodPost, "/api/v1/folders/7/jobs", body)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	e := echo.New()
	e.GET("/health", HandleHealth)

	rec := do(e, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "orchestrator-runner", status.Service)
}

func TestSpecHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	SpecHandler("https://idp.example")(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://idp.example/v1/authorize")
	assert.NotContains(t, rec.Body.String(), "{issuer}")
}

func TestProblemDetail(t *testing.T) {
	t.Run("Should keep client error causes", func(t *testing.T) {
		err := orchestrator.NewError("invalid arguments", orchestrator.ErrInvalidArguments, errors.New("amount is required"))
		assert.Equal(t, "invalid arguments: amount is required", problemDetail(err, http.StatusBadRequest))
	})

	t.Run("Should hide upstream causes of server errors", func(t *testing.T) {
		err := orchestrator.Wrap("fetch failed: job status", &orchestrator.StatusError{StatusCode: http.StatusServiceUnavailable, Method: http.MethodGet, URL: "https://orch.example/acme/Default/odata/Jobs(42)", Body: []byte("upstream body")})
		assert.Equal(t, "fetch failed: job status", problemDetail(err, http.StatusBadGateway))
	})

	t.Run("Should fall back to the status text", func(t *testing.T) {
		assert.Equal(t, "Internal Server Error", problemDetail(errors.New("db password wrong"), http.StatusInternalServerError))
	})

	t.Run("Should use echo messages as is", func(t *testing.T) {
		assert.Equal(t, "missing scope", problemDetail(echo.NewHTTPError(http.StatusForbidden, "missing scope"), http.StatusForbidden))
	})
}
