package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	"orchestrator-runner/internal/logging"
	"orchestrator-runner/internal/orchestrator"
	"orchestrator-runner/internal/telemetry"
	"orchestrator-runner/pkg/models"
)

const (
	// PollInterval is the wait between two job status checks.
	PollInterval = 5 * time.Second
	// MaxPollAttempts is the number of status checks before giving up.
	MaxPollAttempts = 20
)

var errJobPending = errors.New("job has not reached a terminal state")

// JobService starts a job and follows it to a terminal outcome.
type JobService struct {
	api         OrchestratorAPI
	logger      logging.Logger
	metrics     *telemetry.JobMetrics
	interval    time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewJobService creates a new JobService. metrics may be nil.
func NewJobService(api OrchestratorAPI, logger logging.Logger, metrics *telemetry.JobMetrics) *JobService {
	if logger == nil {
		logger = logging.Nop
	}
	return &JobService{
		api:         api,
		logger:      logger,
		metrics:     metrics,
		interval:    PollInterval,
		maxAttempts: MaxPollAttempts,
		now:         time.Now,
	}
}

// StartAndAwait starts the job described by req in folderID and blocks until
// it finishes. It returns the output arguments of a successful job, which
// may be empty.
func (s *JobService) StartAndAwait(ctx context.Context, folderID int64, req models.StartJobsRequest) (json.RawMessage, error) {
	job, err := s.Run(ctx, folderID, req)
	if err != nil {
		return nil, err
	}
	return job.Output(), nil
}

// Run is StartAndAwait returning the full final job record. A faulted job is
// returned together with its error.
func (s *JobService) Run(ctx context.Context, folderID int64, req models.StartJobsRequest) (*models.Job, error) {
	started := s.now()
	id, err := s.Start(ctx, folderID, req)
	if err != nil {
		s.metrics.RecordOutcome(ctx, telemetry.OutcomeFailed, s.now().Sub(started))
		return nil, err
	}

	job, err := s.Await(ctx, folderID, id)
	s.metrics.RecordOutcome(ctx, outcome(err), s.now().Sub(started))
	return job, err
}

// Start submits req and returns the id of the created job.
func (s *JobService) Start(ctx context.Context, folderID int64, req models.StartJobsRequest) (int64, error) {
	logger := s.logger.With(logging.KeyFolderID, folderID, logging.KeyReleaseKey, req.StartInfo.ReleaseKey)

	jobs, err := s.api.StartJobs(ctx, folderID, req)
	if err != nil {
		logger.Error("job start failed", logging.KeyError, err)
		return 0, orchestrator.Wrap("job start failed", err)
	}
	logger.Info("job submitted", logging.KeyJobID, jobs[0].ID, logging.KeyState, jobs[0].State)
	return jobs[0].ID, nil
}

// Await polls job id until it is Successful or Faulted, checking at most
// MaxPollAttempts times. A terminal job is never polled again.
func (s *JobService) Await(ctx context.Context, folderID, id int64) (*models.Job, error) {
	logger := s.logger.With(logging.KeyFolderID, folderID, logging.KeyJobID, id)

	retries := s.maxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	interval := s.interval
	backoff := retry.WithMaxRetries(uint64(retries), retry.BackoffFunc(func() (time.Duration, bool) {
		return interval, false
	}))

	var (
		job     *models.Job
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		current, err := s.api.GetJob(ctx, folderID, id)
		if err != nil {
			return err
		}
		job = current
		s.metrics.RecordPoll(ctx, string(current.State))
		logger.Debug("job polled", logging.KeyAttempt, attempt, logging.KeyAttempts, s.maxAttempts, logging.KeyState, current.State)
		if current.State.Terminal() {
			return nil
		}
		return retry.RetryableError(errJobPending)
	})

	switch {
	case errors.Is(err, errJobPending):
		logger.Warn("job timed out", logging.KeyAttempt, attempt, logging.KeyState, job.State)
		return job, orchestrator.NewError("job timed out", orchestrator.ErrJobTimedOut, nil)
	case err != nil && ctx.Err() != nil:
		logger.Warn("job await canceled", logging.KeyAttempt, attempt, logging.KeyError, ctx.Err())
		return job, orchestrator.NewError("job await canceled", ctx.Err(), err)
	case err != nil:
		logger.Error("job status failed", logging.KeyAttempt, attempt, logging.KeyError, err)
		return job, orchestrator.Wrap("fetch failed: job status", err)
	}

	if job.State == models.JobStateFaulted {
		var cause error
		if job.Info != "" {
			cause = errors.New(job.Info)
		}
		logger.Error("job faulted", logging.KeyAttempt, attempt, logging.KeyError, job.Info)
		return job, orchestrator.NewError("job faulted", orchestrator.ErrJobFaulted, cause)
	}
	if out := job.Output(); out != nil && !gjson.ValidBytes(out) {
		logger.Error("job output is not JSON", logging.KeyAttempt, attempt)
		return job, orchestrator.NewError("malformed job output", orchestrator.ErrMalformedResponse, nil)
	}
	logger.Info("job finished", logging.KeyAttempt, attempt, logging.KeyState, job.State)
	return job, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccessful
	case errors.Is(err, orchestrator.ErrJobFaulted):
		return telemetry.OutcomeFaulted
	case errors.Is(err, orchestrator.ErrJobTimedOut):
		return telemetry.OutcomeTimedOut
	default:
		return telemetry.OutcomeFailed
	}
}
