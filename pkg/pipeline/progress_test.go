package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporterMonotonic(t *testing.T) {
	var seen []int
	r := NewReporter(context.Background(), nil, func(p int, _ string) {
		seen = append(seen, p)
	})

	r.Update(10, "a")
	r.Update(5, "b")
	r.Update(150, "c")
	r.Done("done")

	assert.Equal(t, []int{10, 10, 99, 100}, seen)
	assert.Equal(t, "done", r.Message())
}

func TestReporterStep(t *testing.T) {
	r := NewReporter(context.Background(), nil, nil)
	r.Step(1, 4, 20, 60, "page")
	assert.Equal(t, 30, r.Percent())
	r.Step(0, 0, 70, 90, "none")
	assert.Equal(t, 70, r.Percent())
}

func TestReporterCancellation(t *testing.T) {
	flag := &CancelFlag{}
	r := NewReporter(context.Background(), flag, nil)
	require.NoError(t, r.Check())

	flag.Cancel()
	assert.ErrorIs(t, r.Check(), ErrCancelled)

	ctx, cancel := context.WithCancel(context.Background())
	r = NewReporter(ctx, nil, nil)
	cancel()
	assert.True(t, r.Cancelled())
}

func TestNilCancelFlag(t *testing.T) {
	var f *CancelFlag
	assert.False(t, f.Cancelled())
}

func TestRunBatchIsolation(t *testing.T) {
	items := make([]int, 10)
	for i := range items {
		items[i] = i + 1
	}

	r := NewReporter(context.Background(), nil, nil)
	res, err := RunBatch(r, "test", items, func(_ int, page int) error {
		if page == 7 {
			return errors.New("bad page")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Succeeded)
	assert.Equal(t, []int{6}, res.Failed)
}

func TestRunBatchAllFail(t *testing.T) {
	r := NewReporter(context.Background(), nil, nil)
	_, err := RunBatch(r, "test", []int{1, 2, 3}, func(int, int) error {
		return errors.New("bad page")
	})
	require.Error(t, err)
	assert.Equal(t, KindProcessingFailed, KindOf(err))
}

func TestRunBatchSingleItemFails(t *testing.T) {
	r := NewReporter(context.Background(), nil, nil)
	_, err := RunBatch(r, "test", []int{1}, func(int, int) error {
		return errors.New("bad page")
	})
	assert.Equal(t, KindProcessingFailed, KindOf(err))
}

func TestRunBatchCancelledBeforeFirstItem(t *testing.T) {
	flag := &CancelFlag{}
	flag.Cancel()
	r := NewReporter(context.Background(), flag, nil)

	calls := 0
	_, err := RunBatch(r, "test", []int{1, 2, 3}, func(int, int) error {
		calls++
		return nil
	})
	assert.Equal(t, KindProcessingCancelled, KindOf(err))
	assert.Zero(t, calls)
}

func TestRunBatchCancelledMidway(t *testing.T) {
	flag := &CancelFlag{}
	r := NewReporter(context.Background(), flag, nil)

	calls := 0
	_, err := RunBatch(r, "test", []int{1, 2, 3, 4}, func(_ int, page int) error {
		calls++
		if page == 2 {
			flag.Cancel()
		}
		return nil
	})
	assert.Equal(t, KindProcessingCancelled, KindOf(err))
	assert.Equal(t, 2, calls)
}
