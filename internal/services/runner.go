package services

import (
	"context"
	"encoding/json"

	"orchestrator-runner/internal/logging"
	"orchestrator-runner/internal/orchestrator"
	"orchestrator-runner/pkg/models"
)

// RunRequest describes one process execution.
type RunRequest struct {
	FolderID   int64
	Process    models.ProcessRef
	EntryPoint *models.EntryPointRef
	// InputArguments is forwarded verbatim. When empty and an entry point
	// is given, the entry point's schema defaults are used instead.
	InputArguments json.RawMessage
}

// Runner resolves the arguments of a run and hands it to the job service.
type Runner struct {
	options *OptionService
	jobs    *JobService
	logger  logging.Logger
}

// NewRunner creates a new Runner.
func NewRunner(options *OptionService, jobs *JobService, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Nop
	}
	return &Runner{options: options, jobs: jobs, logger: logger}
}

// Run executes req and returns the job's output arguments.
func (r *Runner) Run(ctx context.Context, req RunRequest) (json.RawMessage, error) {
	args, err := r.arguments(ctx, req)
	if err != nil {
		return nil, err
	}
	r.logger.Info("running process",
		logging.KeyFolderID, req.FolderID,
		logging.KeyReleaseKey, req.Process.ReleaseKey,
		logging.KeyPackageKey, req.Process.PackageKey(),
	)
	return r.jobs.StartAndAwait(ctx, req.FolderID, models.NewStartJobsRequest(req.Process, args))
}

func (r *Runner) arguments(ctx context.Context, req RunRequest) (json.RawMessage, error) {
	if len(req.InputArguments) == 0 {
		if req.EntryPoint == nil {
			return nil, nil
		}
		return r.options.ResolveDefaultArguments(ctx, req.Process, req.FolderID, *req.EntryPoint)
	}

	schema := ""
	if req.EntryPoint != nil {
		schema = req.EntryPoint.InputArgumentSchema
	}
	if err := ValidateArguments(schema, req.InputArguments); err != nil {
		return nil, orchestrator.NewError("invalid arguments", orchestrator.ErrInvalidArguments, err)
	}
	return req.InputArguments, nil
}
