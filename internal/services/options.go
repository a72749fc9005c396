package services

import (
	"context"
	"encoding/json"

	"orchestrator-runner/internal/logging"
	"orchestrator-runner/internal/orchestrator"
	"orchestrator-runner/pkg/models"
)

// Pipeline stage names, used in error messages and logs.
const (
	StageFolders          = "folders"
	StageProcesses        = "processes"
	StageEntryPoints      = "entry points"
	StageDefaultArguments = "default arguments"
	StageReleases         = "releases"
)

// OptionService resolves the cascading selections needed to start a job:
// folder, then process, then entry point, then default arguments. Each stage
// takes the previous stage's selection.
type OptionService struct {
	api    OrchestratorAPI
	logger logging.Logger
}

// NewOptionService creates a new OptionService.
func NewOptionService(api OrchestratorAPI, logger logging.Logger) *OptionService {
	if logger == nil {
		logger = logging.Nop
	}
	return &OptionService{api: api, logger: logger}
}

// ListFolders returns every folder on the first page as a name and id.
func (s *OptionService) ListFolders(ctx context.Context) ([]models.FolderOption, error) {
	folders, err := s.api.ListFolders(ctx)
	if err != nil {
		return nil, s.fail(StageFolders, err)
	}

	out := make([]models.FolderOption, 0, len(folders))
	for _, f := range folders {
		name := f.FullyQualifiedName
		if name == "" {
			name = f.DisplayName
		}
		out = append(out, models.FolderOption{Name: name, ID: f.ID})
	}
	s.logger.Info("stage resolved", logging.KeyStage, StageFolders, logging.KeyCount, len(out))
	return out, nil
}

// ListProcesses returns the releases of folderID. Releases reported for any
// other organization unit are dropped.
func (s *OptionService) ListProcesses(ctx context.Context, folderID int64) ([]models.ProcessOption, error) {
	releases, err := s.api.ListReleases(ctx, models.ReleaseFilter{FolderID: folderID})
	if err != nil {
		return nil, s.fail(StageProcesses, err, logging.KeyFolderID, folderID)
	}

	out := make([]models.ProcessOption, 0, len(releases))
	for _, r := range releases {
		if r.OrganizationUnitID != folderID {
			continue
		}
		out = append(out, models.ProcessOption{Name: r.Name, Ref: r.Ref()})
	}
	s.logger.Info("stage resolved", logging.KeyStage, StageProcesses, logging.KeyFolderID, folderID, logging.KeyCount, len(out))
	return out, nil
}

// ListEntryPoints returns the entry points of the exact package version ref
// points at.
func (s *OptionService) ListEntryPoints(ctx context.Context, ref models.ProcessRef, folderID int64) ([]models.EntryPointOption, error) {
	eps, err := s.api.GetEntryPoints(ctx, ref.PackageKey(), folderID)
	if err != nil {
		return nil, s.fail(StageEntryPoints, err, logging.KeyPackageKey, ref.PackageKey())
	}

	out := make([]models.EntryPointOption, 0, len(eps))
	for _, ep := range eps {
		out = append(out, models.EntryPointOption{Name: ep.Path, Ref: ep.Ref()})
	}
	s.logger.Info("stage resolved", logging.KeyStage, StageEntryPoints, logging.KeyPackageKey, ref.PackageKey(), logging.KeyCount, len(out))
	return out, nil
}

// ResolveDefaultArguments re-reads the entry point listing, finds ep by
// unique id and synthesizes an arguments object from the defaults declared
// in its schema. An entry point missing from the listing is an error.
func (s *OptionService) ResolveDefaultArguments(ctx context.Context, ref models.ProcessRef, folderID int64, ep models.EntryPointRef) (json.RawMessage, error) {
	eps, err := s.api.GetEntryPoints(ctx, ref.PackageKey(), folderID)
	if err != nil {
		return nil, s.fail(StageDefaultArguments, err, logging.KeyPackageKey, ref.PackageKey())
	}

	var found *models.EntryPoint
	for i := range eps {
		if eps[i].UniqueID == ep.UniqueID {
			found = &eps[i]
			break
		}
	}
	if found == nil {
		s.logger.Warn("entry point not found", logging.KeyPackageKey, ref.PackageKey(), logging.KeyEntryPoint, ep.UniqueID)
		return nil, orchestrator.NewError("entry point not found", orchestrator.ErrNotFound, nil)
	}

	args, err := DefaultArguments(found.InputArguments)
	if err != nil {
		malformed := orchestrator.NewError(orchestrator.ErrMalformedResponse.Error(), orchestrator.ErrMalformedResponse, err)
		return nil, s.fail(StageDefaultArguments, malformed, logging.KeyEntryPoint, ep.UniqueID)
	}
	s.logger.Info("stage resolved", logging.KeyStage, StageDefaultArguments, logging.KeyEntryPoint, found.Path)
	return args, nil
}

// ListReleases returns releases matching filter without projecting them.
func (s *OptionService) ListReleases(ctx context.Context, filter models.ReleaseFilter) ([]models.Release, error) {
	if filter.Top <= 0 {
		filter.Top = orchestrator.DefaultReleaseTop
	}
	releases, err := s.api.ListReleases(ctx, filter)
	if err != nil {
		return nil, s.fail(StageReleases, err)
	}
	s.logger.Info("stage resolved", logging.KeyStage, StageReleases, logging.KeyCount, len(releases))
	return releases, nil
}

func (s *OptionService) fail(stage string, err error, keyvals ...any) error {
	s.logger.Error("stage failed", append([]any{logging.KeyStage, stage, logging.KeyError, err}, keyvals...)...)
	return orchestrator.Wrap("fetch failed: "+stage, err)
}
