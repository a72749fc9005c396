package services

import (
	"context"

	"orchestrator-runner/pkg/models"
)

// OrchestratorAPI is the typed surface of the orchestrator the services are
// built on. *orchestrator.Client implements it.
type OrchestratorAPI interface {
	// ListFolders returns the first page of folders.
	ListFolders(ctx context.Context) ([]models.Folder, error)
	// ListReleases returns releases matching filter.
	ListReleases(ctx context.Context, filter models.ReleaseFilter) ([]models.Release, error)
	// GetEntryPoints returns the entry points of a `processKey:version` package.
	GetEntryPoints(ctx context.Context, packageKey string, folderID int64) ([]models.EntryPoint, error)
	// StartJobs submits a start request and returns the created jobs.
	StartJobs(ctx context.Context, folderID int64, req models.StartJobsRequest) ([]models.Job, error)
	// GetJob returns the current record of a job.
	GetJob(ctx context.Context, folderID, id int64) (*models.Job, error)
}

// CredentialsProvider supplies the tenant identity for one call chain.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (models.Credentials, error)
}
