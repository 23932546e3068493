package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// ManifestName is the file written next to every job's outputs
const ManifestName = "manifest.json"

// Manifest describes the stored outputs of one job
type Manifest struct {
	Key         string          `json:"-"`
	JobID       string          `json:"jobId"`
	Operation   string          `json:"operation"`
	Source      string          `json:"source"`
	ProcessedAt string          `json:"processedAt"`
	Outputs     []ManifestEntry `json:"outputs"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// ManifestEntry is one stored blob
type ManifestEntry struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// Keys returns the storage keys of every output
func (m *Manifest) Keys() []string {
	keys := make([]string, len(m.Outputs))
	for i, o := range m.Outputs {
		keys[i] = o.Key
	}
	return keys
}

// StoreOutputs writes every blob of a successful envelope under
// <jobID>/<name> followed by <jobID>/manifest.json. If any write fails the
// blobs already written are removed again.
func StoreOutputs(ctx context.Context, st Storage, job *Job, out *pipeline.Output) (m *Manifest, err error) {
	m = &Manifest{
		Key:         path.Join(job.ID, ManifestName),
		JobID:       job.ID,
		Operation:   job.Operation,
		Source:      job.Source,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		Metadata:    out.Metadata,
	}

	var written []string
	defer func() {
		if err != nil {
			err = errors.Join(err, removeKeys(context.WithoutCancel(ctx), st, written))
			m = nil
		}
	}()

	for _, b := range out.Result {
		key := path.Join(job.ID, b.Name)
		if err := st.Put(ctx, key, b.Data, b.ContentType); err != nil {
			return nil, fmt.Errorf("store %s: %w", b.Name, err)
		}
		written = append(written, key)
		m.Outputs = append(m.Outputs, ManifestEntry{
			Name:        b.Name,
			Key:         key,
			ContentType: b.ContentType,
			Size:        len(b.Data),
		})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := st.Put(ctx, m.Key, data, "application/json"); err != nil {
		return nil, fmt.Errorf("store manifest: %w", err)
	}
	return m, nil
}

// ListOutputs returns the keys stored for a job, manifest included
func ListOutputs(ctx context.Context, st Storage, jobID string) ([]string, error) {
	res, err := st.List(ctx, jobID+"/", "")
	if err != nil {
		return nil, fmt.Errorf("list outputs of %s: %w", jobID, err)
	}
	return res.Keys, nil
}

// DeleteOutputs removes everything stored for a job and reports how many
// keys were removed
func DeleteOutputs(ctx context.Context, st Storage, jobID string) (int, error) {
	keys, err := ListOutputs(ctx, st, jobID)
	if err != nil {
		return 0, err
	}
	if err := removeKeys(ctx, st, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func removeKeys(ctx context.Context, st Storage, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := st.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
