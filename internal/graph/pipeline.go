package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

// PipelineGraph is the build state machine for one pipeline. Nodes are jobs
// keyed by job id; an edge up → down means down cannot run until up has
// succeeded. Construction validates the two structural invariants: the
// graph is acyclic and has exactly one source job (the job for the
// originally requested repository).
//
// PipelineGraph mutates the *domain.Job values it was built from; callers
// own persistence of whatever Advance reports as changed.
type PipelineGraph struct {
	g      *Directed[*domain.Job]
	source string
}

// NewPipelineGraph builds the state machine from a pipeline's jobs and
// dependency edges. Fails with ErrPipelineCyclic on a cycle and with
// ErrMultipleSources when more than one job has no incoming edge, which
// means the dependency slice is malformed or disconnected.
func NewPipelineGraph(jobs []*domain.Job, dependencies []domain.Edge) (*PipelineGraph, error) {
	g := NewDirected[*domain.Job]()
	for _, job := range jobs {
		g.AddNode(job.ID, job)
	}
	for _, e := range dependencies {
		if err := g.AddEdge(e.Up, e.Down); err != nil {
			return nil, fmt.Errorf("build pipeline graph: %w", err)
		}
	}

	if !g.IsAcyclic() {
		return nil, domain.ErrPipelineCyclic
	}
	sources := g.Sources()
	if len(sources) != 1 {
		return nil, fmt.Errorf("pipeline has %d source jobs: %w", len(sources), domain.ErrMultipleSources)
	}

	return &PipelineGraph{g: g, source: sources[0]}, nil
}

// Source returns the pipeline's single entry-point job.
func (p *PipelineGraph) Source() *domain.Job {
	job, _ := p.g.Node(p.source)
	return job
}

// Jobs returns every job, ordered by id.
func (p *PipelineGraph) Jobs() []*domain.Job {
	var jobs []*domain.Job
	for _, id := range p.g.Nodes() {
		job, _ := p.g.Node(id)
		jobs = append(jobs, job)
	}
	return jobs
}

// NextIdle returns one job eligible to move from idle to queued, or nil.
// Jobs are considered in ascending distance from the source job, so the
// offer order respects dependencies and stays closest-to-root-first; a job
// is eligible only when every direct predecessor has succeeded, which keeps
// a diamond's merge job locked until all converging branches are done.
// Equal-distance siblings are returned in no particular order.
func (p *PipelineGraph) NextIdle() *domain.Job {
	dist := p.g.DistancesFrom(p.source)

	ids := p.g.Nodes()
	sort.SliceStable(ids, func(i, j int) bool {
		return dist[ids[i]] < dist[ids[j]]
	})

	for _, id := range ids {
		job, _ := p.g.Node(id)
		if job.Status != domain.JobStatusIdle {
			continue
		}
		if p.predecessorsSucceeded(id) {
			return job
		}
	}
	return nil
}

func (p *PipelineGraph) predecessorsSucceeded(id string) bool {
	for _, up := range p.g.Predecessors(id) {
		pred, _ := p.g.Node(up)
		if pred.Status != domain.JobStatusSuccess {
			return false
		}
	}
	return true
}

// Advance applies a status change to one job and ripples the consequences
// through the pipeline: success unlocks every newly-eligible idle job, and
// failure marks the failed job's entire forward closure skipped, since one
// of their ancestors will never succeed. Returns the jobs whose status
// changed, the updated job first.
//
// Advancing to the job's current status is a no-op returning nil. An
// illegal step fails with ErrInvalidTransition and changes nothing.
func (p *PipelineGraph) Advance(jobID string, status domain.JobStatus) ([]*domain.Job, error) {
	job, ok := p.g.Node(jobID)
	if !ok {
		return nil, fmt.Errorf("advance job %s: %w", jobID, domain.ErrNotFound)
	}
	if job.Status == status {
		return nil, nil
	}
	if !job.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("job %s cannot move %s -> %s: %w", jobID, job.Status, status, domain.ErrInvalidTransition)
	}

	now := time.Now()
	p.apply(job, status, now)
	changed := []*domain.Job{job}

	switch status {
	case domain.JobStatusSuccess:
		// One success can complete a multi-branch join, so keep draining
		// until no idle job is eligible.
		for next := p.NextIdle(); next != nil; next = p.NextIdle() {
			p.apply(next, domain.JobStatusQueued, now)
			changed = append(changed, next)
		}
	case domain.JobStatusFailed:
		for id := range p.g.DistancesFrom(jobID) {
			if id == jobID {
				continue
			}
			down, _ := p.g.Node(id)
			if down.Status == domain.JobStatusIdle || down.Status == domain.JobStatusQueued {
				p.apply(down, domain.JobStatusSkipped, now)
				changed = append(changed, down)
			}
		}
	}

	return changed, nil
}

func (p *PipelineGraph) apply(job *domain.Job, status domain.JobStatus, now time.Time) {
	job.Status = status
	switch status {
	case domain.JobStatusRunning:
		t := now
		job.StartedAt = &t
	case domain.JobStatusSuccess, domain.JobStatusFailed, domain.JobStatusSkipped:
		t := now
		job.FinishedAt = &t
	}
}

// Status derives the aggregate pipeline status from the job statuses:
// failed if any job failed, success once every job succeeded, running
// otherwise.
func (p *PipelineGraph) Status() domain.PipelineStatus {
	allSuccess := true
	for _, id := range p.g.Nodes() {
		job, _ := p.g.Node(id)
		if job.Status == domain.JobStatusFailed {
			return domain.PipelineStatusFailed
		}
		if job.Status != domain.JobStatusSuccess {
			allSuccess = false
		}
	}
	if allSuccess {
		return domain.PipelineStatusSuccess
	}
	return domain.PipelineStatusRunning
}
