package pipeline

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// BatchResult records which items of a batch failed
type BatchResult struct {
	Succeeded int
	Failed    []int
}

// RunBatch calls fn for every item in order. Cancellation is checked before
// each item. A failing item is logged and skipped; the batch fails only when
// no item succeeded.
func RunBatch[T any](r *Reporter, op string, items []T, fn func(i int, item T) error) (BatchResult, error) {
	var res BatchResult
	if len(items) == 0 {
		return res, NewError(KindProcessingFailed, "nothing to process")
	}

	var last error
	for i, item := range items {
		if err := r.Check(); err != nil {
			return res, err
		}

		err := fn(i, item)
		if err == nil {
			res.Succeeded++
			continue
		}
		if errors.Is(err, ErrCancelled) || r.Cancelled() {
			return res, ErrCancelled
		}
		if KindOf(err) == KindPDFEncrypted {
			return res, err
		}

		logrus.WithFields(logrus.Fields{
			"operation": op,
			"item":      i,
			"error":     err,
		}).Warn("item failed, skipping")
		res.Failed = append(res.Failed, i)
		last = err
	}

	if res.Succeeded == 0 {
		return res, NewError(KindProcessingFailed, "all %d items failed", len(items)).WithDetail(last.Error())
	}
	return res, nil
}
