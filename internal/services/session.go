package services

import (
	"context"

	"github.com/google/uuid"

	"orchestrator-runner/internal/logging"
	"orchestrator-runner/internal/orchestrator"
	"orchestrator-runner/internal/telemetry"
)

// Session bundles the services of one call chain. Sessions share nothing
// mutable with each other.
type Session struct {
	Options *OptionService
	Jobs    *JobService
	Runner  *Runner
}

// NewSession creates a new Session over api.
func NewSession(api OrchestratorAPI, logger logging.Logger, metrics *telemetry.JobMetrics) *Session {
	options := NewOptionService(api, logger)
	jobs := NewJobService(api, logger, metrics)
	return &Session{
		Options: options,
		Jobs:    jobs,
		Runner:  NewRunner(options, jobs, logger),
	}
}

// Factory builds a fresh orchestrator client and Session per call chain.
type Factory struct {
	host      string
	transport orchestrator.HTTPClient
	creds     CredentialsProvider
	logger    logging.Logger
	metrics   *telemetry.JobMetrics
}

// NewFactory creates a new Factory.
func NewFactory(host string, transport orchestrator.HTTPClient, creds CredentialsProvider, logger logging.Logger, metrics *telemetry.JobMetrics) *Factory {
	if logger == nil {
		logger = logging.Nop
	}
	return &Factory{
		host:      host,
		transport: transport,
		creds:     creds,
		logger:    logger,
		metrics:   metrics,
	}
}

// Session resolves credentials and returns a new Session tagged with a run id.
func (f *Factory) Session(ctx context.Context) (*Session, error) {
	creds, err := f.creds.Credentials(ctx)
	if err != nil {
		return nil, orchestrator.Wrap("credentials unavailable", err)
	}
	logger := f.logger.With(
		logging.KeyRunID, uuid.NewString(),
		logging.KeyOrganization, creds.Organization,
		logging.KeyTenant, creds.Tenant,
	)
	client := orchestrator.New(creds, f.host, f.transport)
	return NewSession(client, logger, f.metrics), nil
}
