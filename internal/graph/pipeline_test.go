package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

func pipelineJobs(statuses map[string]domain.JobStatus) []*domain.Job {
	var jobs []*domain.Job
	for id, status := range statuses {
		jobs = append(jobs, &domain.Job{ID: id, UserID: 1, Repo: "repo-" + id, Status: status})
	}
	return jobs
}

func edges(pairs ...[2]string) []domain.Edge {
	var out []domain.Edge
	for _, p := range pairs {
		out = append(out, domain.Edge{Up: p[0], Down: p[1]})
	}
	return out
}

func TestNewPipelineGraph_Cyclic(t *testing.T) {
	jobs := pipelineJobs(map[string]domain.JobStatus{"1": domain.JobStatusQueued, "2": domain.JobStatusIdle})

	_, err := NewPipelineGraph(jobs, edges([2]string{"1", "2"}, [2]string{"2", "1"}))
	assert.ErrorIs(t, err, domain.ErrPipelineCyclic)
}

func TestNewPipelineGraph_MultipleSources(t *testing.T) {
	jobs := pipelineJobs(map[string]domain.JobStatus{
		"1": domain.JobStatusQueued, "2": domain.JobStatusIdle, "3": domain.JobStatusIdle,
	})

	_, err := NewPipelineGraph(jobs, edges([2]string{"1", "3"}, [2]string{"2", "3"}))
	assert.ErrorIs(t, err, domain.ErrMultipleSources)
}

func TestNextIdle_SingleJob(t *testing.T) {
	for _, status := range []domain.JobStatus{
		domain.JobStatusQueued, domain.JobStatusRunning,
		domain.JobStatusSuccess, domain.JobStatusFailed,
	} {
		p, err := NewPipelineGraph(pipelineJobs(map[string]domain.JobStatus{"1": status}), nil)
		require.NoError(t, err)
		assert.Nil(t, p.NextIdle(), "status %s", status)
	}

	p, err := NewPipelineGraph(pipelineJobs(map[string]domain.JobStatus{"1": domain.JobStatusIdle}), nil)
	require.NoError(t, err)
	next := p.NextIdle()
	require.NotNil(t, next)
	assert.Equal(t, "1", next.ID)
}

func TestNextIdle_Chain(t *testing.T) {
	p, err := NewPipelineGraph(
		pipelineJobs(map[string]domain.JobStatus{"1": domain.JobStatusIdle, "2": domain.JobStatusIdle}),
		edges([2]string{"1", "2"}),
	)
	require.NoError(t, err)

	next := p.NextIdle()
	require.NotNil(t, next)
	assert.Equal(t, "1", next.ID)

	// Job 2 stays locked until job 1 succeeds.
	_, err = p.Advance("1", domain.JobStatusQueued)
	require.NoError(t, err)
	assert.Nil(t, p.NextIdle())

	_, err = p.Advance("1", domain.JobStatusSuccess)
	require.NoError(t, err)

	// The success cascade already queued job 2.
	job2, _ := p.g.Node("2")
	assert.Equal(t, domain.JobStatusQueued, job2.Status)
	assert.Nil(t, p.NextIdle())
}

func TestNextIdle_DiamondWaitsForAllBranches(t *testing.T) {
	p, err := NewPipelineGraph(
		pipelineJobs(map[string]domain.JobStatus{
			"1": domain.JobStatusQueued, "2": domain.JobStatusIdle,
			"3": domain.JobStatusIdle, "4": domain.JobStatusIdle,
		}),
		edges([2]string{"1", "2"}, [2]string{"1", "3"}, [2]string{"2", "4"}, [2]string{"3", "4"}),
	)
	require.NoError(t, err)

	changed, err := p.Advance("1", domain.JobStatusSuccess)
	require.NoError(t, err)

	// Both branches unlock; the merge job must not.
	var queued []string
	for _, job := range changed[1:] {
		queued = append(queued, job.ID)
	}
	assert.ElementsMatch(t, []string{"2", "3"}, queued)
	job4, _ := p.g.Node("4")
	assert.Equal(t, domain.JobStatusIdle, job4.Status)

	_, err = p.Advance("2", domain.JobStatusSuccess)
	require.NoError(t, err)
	job4, _ = p.g.Node("4")
	assert.Equal(t, domain.JobStatusIdle, job4.Status)

	_, err = p.Advance("3", domain.JobStatusSuccess)
	require.NoError(t, err)
	job4, _ = p.g.Node("4")
	assert.Equal(t, domain.JobStatusQueued, job4.Status)
}

func TestAdvance_SuccessCompletesPipeline(t *testing.T) {
	p, err := NewPipelineGraph(
		pipelineJobs(map[string]domain.JobStatus{"1": domain.JobStatusQueued, "2": domain.JobStatusIdle}),
		edges([2]string{"1", "2"}),
	)
	require.NoError(t, err)

	_, err = p.Advance("1", domain.JobStatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineStatusRunning, p.Status())

	_, err = p.Advance("2", domain.JobStatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineStatusSuccess, p.Status())
}

func TestAdvance_FailureSkipsForwardClosure(t *testing.T) {
	p, err := NewPipelineGraph(
		pipelineJobs(map[string]domain.JobStatus{"1": domain.JobStatusQueued, "2": domain.JobStatusIdle}),
		edges([2]string{"1", "2"}),
	)
	require.NoError(t, err)

	changed, err := p.Advance("1", domain.JobStatusFailed)
	require.NoError(t, err)
	assert.Len(t, changed, 2)

	job2, _ := p.g.Node("2")
	assert.Equal(t, domain.JobStatusSkipped, job2.Status)
	assert.NotNil(t, job2.FinishedAt)
	assert.Equal(t, domain.PipelineStatusFailed, p.Status())
}

func TestAdvance_MidPipelineFailureSparesUnrelatedBranch(t *testing.T) {
	// 1 fans out to 2 and 3; 3 feeds 4. A failure in 3 skips 4 only.
	p, err := NewPipelineGraph(
		pipelineJobs(map[string]domain.JobStatus{
			"1": domain.JobStatusSuccess, "2": domain.JobStatusQueued,
			"3": domain.JobStatusQueued, "4": domain.JobStatusIdle,
		}),
		edges([2]string{"1", "2"}, [2]string{"1", "3"}, [2]string{"3", "4"}),
	)
	require.NoError(t, err)

	_, err = p.Advance("3", domain.JobStatusFailed)
	require.NoError(t, err)

	job2, _ := p.g.Node("2")
	job4, _ := p.g.Node("4")
	assert.Equal(t, domain.JobStatusQueued, job2.Status)
	assert.Equal(t, domain.JobStatusSkipped, job4.Status)
	assert.Equal(t, domain.PipelineStatusFailed, p.Status())
}

func TestAdvance_Idempotent(t *testing.T) {
	p, err := NewPipelineGraph(
		pipelineJobs(map[string]domain.JobStatus{"1": domain.JobStatusQueued, "2": domain.JobStatusIdle}),
		edges([2]string{"1", "2"}),
	)
	require.NoError(t, err)

	changed, err := p.Advance("1", domain.JobStatusQueued)
	require.NoError(t, err)
	assert.Nil(t, changed)
}

func TestAdvance_TerminalJobsAreImmutable(t *testing.T) {
	for _, terminal := range []domain.JobStatus{
		domain.JobStatusSuccess, domain.JobStatusFailed, domain.JobStatusSkipped,
	} {
		p, err := NewPipelineGraph(pipelineJobs(map[string]domain.JobStatus{"1": terminal}), nil)
		require.NoError(t, err)

		_, err = p.Advance("1", domain.JobStatusRunning)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "from %s", terminal)
	}
}

func TestAdvance_UnknownJob(t *testing.T) {
	p, err := NewPipelineGraph(pipelineJobs(map[string]domain.JobStatus{"1": domain.JobStatusQueued}), nil)
	require.NoError(t, err)

	_, err = p.Advance("42", domain.JobStatusSuccess)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
