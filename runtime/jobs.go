package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// JobState is the lifecycle position of a job
type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Job is the status record of one processing request
type Job struct {
	ID        string          `json:"id"`
	Operation string          `json:"operation"`
	Source    string          `json:"source"`
	State     JobState        `json:"state"`
	Percent   int             `json:"percent"`
	Message   string          `json:"message,omitempty"`
	Outputs   []string        `json:"outputs,omitempty"`
	Manifest  string          `json:"manifest,omitempty"`
	Error     *pipeline.Error `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// JobStore keeps job records in a KVStore under "job:<id>"
type JobStore struct {
	kv  KVStore
	ttl time.Duration
	now func() time.Time
}

func NewJobStore(kv KVStore, ttl time.Duration) *JobStore {
	return &JobStore{kv: kv, ttl: ttl, now: time.Now}
}

func jobKey(id string) string {
	return "job:" + id
}

// Create records a new running job
func (s *JobStore) Create(ctx context.Context, operation, source string) (*Job, error) {
	now := s.now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Operation: operation,
		Source:    source,
		State:     JobRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobStore) Save(ctx context.Context, job *Job) error {
	job.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := s.kv.Put(ctx, jobKey(job.ID), data, s.ttl); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Load returns ErrNotFound for unknown or expired jobs
func (s *JobStore) Load(ctx context.Context, id string) (*Job, error) {
	data, err := s.kv.Get(ctx, jobKey(id))
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Tracker returns a progress callback that records progress on job.
// Storage failures are logged and never interrupt processing.
func (s *JobStore) Tracker(ctx context.Context, job *Job) pipeline.ProgressFunc {
	var mu sync.Mutex
	return func(percent int, message string) {
		mu.Lock()
		defer mu.Unlock()
		if percent == job.Percent && message == job.Message {
			return
		}
		job.Percent = percent
		job.Message = message
		if err := s.Save(ctx, job); err != nil {
			logrus.WithError(err).WithField("job", job.ID).Warn("job progress not saved")
		}
	}
}

// Finish records the outcome of job
func (s *JobStore) Finish(ctx context.Context, job *Job, out *pipeline.Output, manifest *Manifest) error {
	if out.Success {
		job.State = JobSucceeded
		job.Percent = 100
	} else {
		job.State = JobFailed
		job.Error = out.Error
	}
	if manifest != nil {
		job.Manifest = manifest.Key
		job.Outputs = manifest.Keys()
	}
	return s.Save(ctx, job)
}

// Delete removes a job record. Unknown ids are not an error.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, jobKey(id)); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// IsNotFound reports whether err means a missing key
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
