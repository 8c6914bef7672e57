package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webintel-server/internal/model"
)

// fakePurger records purge calls.
type fakePurger struct {
	mu     sync.Mutex
	purged []string
}

func (p *fakePurger) Purge(jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purged = append(p.purged, jobID)
	return nil
}

func (p *fakePurger) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.purged))
	copy(out, p.purged)
	return out
}

func waitForStatus(t *testing.T, m *Manager, jobID string, want model.JobStatus) model.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Get(jobID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return model.Job{}
}

func TestManager_CompletedJob(t *testing.T) {
	m := New(Config{MaxJobs: 5}, &fakePurger{})

	jobID, err := m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		return id + "/golden_qna.xlsx", nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := waitForStatus(t, m, jobID, model.JobStatusCompleted)
	assert.Equal(t, jobID+"/golden_qna.xlsx", job.OutputFile)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.CompletedAt)
	assert.False(t, job.CompletedAt.Before(job.CreatedAt))
}

func TestManager_FailedJob(t *testing.T) {
	m := New(Config{MaxJobs: 5}, &fakePurger{})

	jobID, err := m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		return "", errors.New("fetch blew up")
	})
	require.NoError(t, err)

	job := waitForStatus(t, m, jobID, model.JobStatusFailed)
	assert.Contains(t, job.Error, "fetch blew up")
	assert.Empty(t, job.OutputFile)
	require.NotNil(t, job.CompletedAt)
}

func TestManager_GetUnknownJob(t *testing.T) {
	m := New(Config{MaxJobs: 5}, &fakePurger{})
	_, err := m.Get("nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestManager_JobLimit(t *testing.T) {
	m := New(Config{MaxJobs: 1}, &fakePurger{})
	release := make(chan struct{})

	_, err := m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		<-release
		return "ref", nil
	})
	require.NoError(t, err)

	_, err = m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		return "ref", nil
	})
	assert.ErrorIs(t, err, model.ErrJobLimitReached)

	close(release)
}

func TestManager_DeleteRunningJob(t *testing.T) {
	purger := &fakePurger{}
	m := New(Config{MaxJobs: 5}, purger)

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})

	jobID, err := m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		close(started)
		<-release
		defer close(finished)
		return id + "/late.xlsx", nil
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, m.Delete(jobID))

	// The deleted job is gone immediately.
	_, err = m.Get(jobID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// Let the worker finish after the delete: the job must not resurrect and
	// the orphan artifact must be purged.
	close(release)
	<-finished

	require.Eventually(t, func() bool {
		// One purge from Delete itself, one from the orphan cleanup.
		return len(purger.calls()) >= 2
	}, 3*time.Second, 5*time.Millisecond)

	_, err = m.Get(jobID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	for _, id := range purger.calls() {
		assert.Equal(t, jobID, id)
	}
}

func TestManager_DeleteCompletedJobPurgesArtifacts(t *testing.T) {
	purger := &fakePurger{}
	m := New(Config{MaxJobs: 5}, purger)

	jobID, err := m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		return id + "/out.xlsx", nil
	})
	require.NoError(t, err)
	waitForStatus(t, m, jobID, model.JobStatusCompleted)

	require.NoError(t, m.Delete(jobID))
	assert.Equal(t, []string{jobID}, purger.calls())

	assert.ErrorIs(t, m.Delete(jobID), model.ErrNotFound)
}

func TestManager_DeleteUnknownJob(t *testing.T) {
	m := New(Config{MaxJobs: 5}, &fakePurger{})
	assert.ErrorIs(t, m.Delete("missing"), model.ErrNotFound)
}

func TestManager_ListNewestFirst(t *testing.T) {
	m := New(Config{MaxJobs: 5}, &fakePurger{})

	first, err := m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		return "a", nil
	})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		return "b", nil
	})
	require.NoError(t, err)

	waitForStatus(t, m, first, model.JobStatusCompleted)
	waitForStatus(t, m, second, model.JobStatusCompleted)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
}

func TestManager_CleanupJobs(t *testing.T) {
	purger := &fakePurger{}
	m := New(Config{MaxJobs: 5}, purger)

	jobID, err := m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		return "ref", nil
	})
	require.NoError(t, err)
	waitForStatus(t, m, jobID, model.JobStatusCompleted)

	// Too young to be cleaned.
	m.CleanupJobs(time.Hour)
	_, err = m.Get(jobID)
	require.NoError(t, err)

	m.CleanupJobs(0)
	_, err = m.Get(jobID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, []string{jobID}, purger.calls())
}

func TestManager_ShutdownWaitsForJobs(t *testing.T) {
	m := New(Config{MaxJobs: 5}, &fakePurger{})

	jobID, err := m.Start(context.Background(), func(ctx context.Context, id string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "ref", nil
		}
	})
	require.NoError(t, err)
	_ = jobID

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Shutdown cancels the running job's context, so the wait completes well
	// before the timeout.
	assert.NoError(t, m.Shutdown(ctx))
}
