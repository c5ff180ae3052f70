package progress_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncline/syncline/pkg/sync/engine/progress"
)

func TestTracker_UpdateProgress(t *testing.T) {
	tr := progress.NewTracker()
	tr.StartTracking("job-1", 100)

	snap, err := tr.UpdateProgress("job-1", 20, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 25, snap.Processed)
	assert.Equal(t, 20, snap.Created)
	assert.Equal(t, 5, snap.Updated)
	assert.Equal(t, 0, snap.Failed)
	assert.InDelta(t, 25.0, snap.PercentComplete, 1e-9)

	snap, err = tr.UpdateProgress("job-1", 50, 20, 5)
	require.NoError(t, err)
	assert.Equal(t, 100, snap.Processed)
	assert.Equal(t, 5, snap.Failed)
	assert.InDelta(t, 100.0, snap.PercentComplete, 1e-9)
}

func TestTracker_RatesAndETA(t *testing.T) {
	tr := progress.NewTracker()
	tr.StartTracking("job-1", 100)

	// Ensure measurable elapsed time so a rate can be derived.
	time.Sleep(20 * time.Millisecond)

	snap, err := tr.UpdateProgress("job-1", 50, 0, 0)
	require.NoError(t, err)
	assert.Greater(t, snap.ItemsPerSecond, 0.0)
	assert.InDelta(t, snap.ItemsPerSecond*60, snap.ItemsPerMinute, 1e-9)
	require.NotNil(t, snap.EstimatedTimeRemaining)
	assert.Greater(t, *snap.EstimatedTimeRemaining, time.Duration(0))

	// Overshooting the total clamps the remaining estimate at zero.
	snap, err = tr.UpdateProgress("job-1", 60, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, snap.EstimatedTimeRemaining)
	assert.Equal(t, time.Duration(0), *snap.EstimatedTimeRemaining)
}

func TestTracker_UnknownTotal(t *testing.T) {
	tr := progress.NewTracker()
	tr.StartTracking("job-1", 0)

	snap, err := tr.UpdateProgress("job-1", 10, 0, 0)
	require.NoError(t, err)
	// Without a total there is no meaningful completion percentage.
	assert.Equal(t, 0.0, snap.PercentComplete)
}

func TestTracker_NotTracked(t *testing.T) {
	tr := progress.NewTracker()

	_, err := tr.UpdateProgress("nope", 1, 0, 0)
	assert.True(t, errors.Is(err, progress.ErrNotTracked))

	_, err = tr.Snapshot("nope")
	assert.True(t, errors.Is(err, progress.ErrNotTracked))

	_, err = tr.History("nope")
	assert.True(t, errors.Is(err, progress.ErrNotTracked))

	_, err = tr.CompleteTracking("nope")
	assert.True(t, errors.Is(err, progress.ErrNotTracked))
}

func TestTracker_History(t *testing.T) {
	tr := progress.NewTracker()
	tr.StartTracking("job-1", 10)

	_, err := tr.UpdateProgress("job-1", 3, 0, 0)
	require.NoError(t, err)
	_, err = tr.UpdateProgress("job-1", 0, 2, 1)
	require.NoError(t, err)

	hist, err := tr.History("job-1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 3, hist[0].Created)
	assert.Equal(t, 2, hist[1].Updated)
	assert.Equal(t, 1, hist[1].Failed)
}

func TestTracker_CompleteFreezesDuration(t *testing.T) {
	tr := progress.NewTracker()
	tr.StartTracking("job-1", 10)
	_, err := tr.UpdateProgress("job-1", 10, 0, 0)
	require.NoError(t, err)

	snap, err := tr.CompleteTracking("job-1")
	require.NoError(t, err)
	assert.True(t, snap.Done)
	frozen := snap.Duration

	time.Sleep(10 * time.Millisecond)
	snap, err = tr.Snapshot("job-1")
	require.NoError(t, err)
	assert.Equal(t, frozen, snap.Duration)
}

func TestTracker_StartTrackingResets(t *testing.T) {
	tr := progress.NewTracker()
	tr.StartTracking("job-1", 10)
	_, err := tr.UpdateProgress("job-1", 5, 0, 0)
	require.NoError(t, err)

	tr.StartTracking("job-1", 20)
	snap, err := tr.Snapshot("job-1")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Processed)
	assert.Equal(t, 20, snap.Total)
}

func TestTracker_Cleanup(t *testing.T) {
	tr := progress.NewTracker()
	tr.StartTracking("job-1", 10)
	tr.StartTracking("job-2", 10)
	assert.Len(t, tr.TrackedJobs(), 2)

	tr.Cleanup("job-1")
	_, err := tr.Snapshot("job-1")
	assert.True(t, errors.Is(err, progress.ErrNotTracked))

	tr.CleanupAll()
	assert.Empty(t, tr.TrackedJobs())
}
