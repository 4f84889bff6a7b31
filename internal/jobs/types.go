package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExport builds a CSV or XLSX export of an account.
	JobTypeExport JobType = "export"
	// JobTypeMirrorBigQuery copies transactions into the BigQuery mirror.
	JobTypeMirrorBigQuery JobType = "mirror_bigquery"
	// JobTypeSyncNotion pushes an account's transactions to Notion.
	JobTypeSyncNotion JobType = "sync_notion"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeExport, JobTypeMirrorBigQuery, JobTypeSyncNotion:
		return true
	}
	return false
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job is published without MaxRetries.
const DefaultMaxRetries = 3

// ErrNotFound is returned by JobStore lookups for unknown IDs.
var ErrNotFound = errors.New("job not found")

// Job is a unit of background work. Which fields matter depends on Type.
type Job struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	Type JobType `json:"type"`

	// AccountID scopes export and sync jobs. Mirror jobs may leave it empty
	// when TransactionIDs is set.
	AccountID string `json:"account_id,omitempty"`

	// TransactionIDs lists the transactions a mirror job copies.
	TransactionIDs []string `json:"transaction_ids,omitempty"`

	// Format is "csv" or "xlsx" for export jobs.
	Format string `json:"format,omitempty"`

	// From and To bound the transaction dates (From inclusive, To exclusive).
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	DryRun bool `json:"dry_run,omitempty"`

	// Result carries the handler output, such as an export download URL.
	Result string `json:"result,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues a job, filling in ID, status and defaults.
	Publish(ctx context.Context, job *Job) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job *Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Type      JobType
	AccountID string
	Status    JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// ForTransaction returns the follow-up jobs of a newly recorded transaction:
// a mirror copy of it and a Notion sync of its day.
func ForTransaction(accountID, transactionID string, date time.Time, mirror, notion bool) []*Job {
	var out []*Job
	if mirror {
		out = append(out, &Job{
			Type:           JobTypeMirrorBigQuery,
			AccountID:      accountID,
			TransactionIDs: []string{transactionID},
		})
	}
	if notion {
		from := date
		to := from.AddDate(0, 0, 1)
		out = append(out, &Job{
			Type:      JobTypeSyncNotion,
			AccountID: accountID,
			From:      &from,
			To:        &to,
		})
	}
	return out
}

// Reconcile returns the periodic catch-up jobs: one mirror backfill across
// all accounts and a Notion sync of the current month per account.
func Reconcile(accountIDs []string, now time.Time, mirror, notion bool) []*Job {
	var out []*Job
	if mirror {
		out = append(out, &Job{Type: JobTypeMirrorBigQuery})
	}
	if !notion {
		return out
	}
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0)
	for _, id := range accountIDs {
		out = append(out, &Job{
			Type:      JobTypeSyncNotion,
			AccountID: id,
			From:      &from,
			To:        &to,
		})
	}
	return out
}
