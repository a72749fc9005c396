package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"orchestrator-runner/pkg/models"
)

// MockOrchestratorAPI satisfies OrchestratorAPI
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

// MockCredentialsProvider satisfies CredentialsProvider
type MockCredentialsProvider struct {
	mock.Mock
}

func (m *MockCredentialsProvider) Credentials(ctx context.Context) (models.Credentials, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Credentials), args.Error(1)
}

var invoiceRef = models.ProcessRef{ReleaseKey: "rel-1", ProcessKey: "InvoiceBot", Version: "1.0.3"}

func strptr(s string) *string { return &s }
