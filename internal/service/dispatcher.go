package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

// Dispatcher is the polling scheduler that drains each user's admission
// queue and hands queued jobs to the build agent. The agent reports
// completion back through the orchestrator's status-update path; the
// dispatcher only commits jobs to running and forwards them.
type Dispatcher struct {
	queue        *BuildAdmissionQueue
	orchestrator *PipelineOrchestrator
	users        UserStore
	agent        BuildAgent
	interval     time.Duration
}

// NewDispatcher creates a new Dispatcher polling at the given interval.
func NewDispatcher(queue *BuildAdmissionQueue, orchestrator *PipelineOrchestrator, users UserStore, agent BuildAgent, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:        queue,
		orchestrator: orchestrator,
		users:        users,
		agent:        agent,
		interval:     interval,
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	slog.Info("dispatcher started", "interval", d.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
		}

		if err := d.dispatchCycle(ctx); err != nil {
			slog.Error("dispatch cycle failed", "error", err)
		}
	}
}

func (d *Dispatcher) dispatchCycle(ctx context.Context) error {
	userIDs, err := d.users.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, userID := range userIDs {
		for {
			job, err := d.queue.DequeueNext(ctx, userID)
			if err != nil {
				return err
			}
			if job == nil {
				break
			}
			if err := d.dispatch(ctx, *job); err != nil {
				slog.Error("dispatch failed", "user_id", userID, "job_id", job.ID, "error", err)
				break
			}
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, job domain.Job) error {
	// Committing to running is the explicit write that makes the earlier
	// dequeue read safe to repeat.
	running, err := d.orchestrator.UpdateJobStatus(ctx, job.UserID, job.ID, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("mark job %s running: %w", job.ID, err)
	}

	if err := d.agent.Execute(ctx, *running); err != nil {
		if _, ferr := d.orchestrator.UpdateJobStatus(ctx, job.UserID, job.ID, domain.JobStatusFailed); ferr != nil {
			slog.Error("failed to fail undispatchable job", "job_id", job.ID, "error", ferr)
		}
		return fmt.Errorf("hand job %s to agent: %w", job.ID, err)
	}

	slog.Info("job dispatched", "user_id", job.UserID, "job_id", job.ID, "repo", job.Repo)
	return nil
}

// HTTPBuildAgent forwards jobs to a remote build-agent endpoint.
type HTTPBuildAgent struct {
	url    string
	client *http.Client
}

// NewHTTPBuildAgent creates an agent posting to the given URL.
func NewHTTPBuildAgent(url string) *HTTPBuildAgent {
	return &HTTPBuildAgent{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Execute posts the job to the agent endpoint.
func (a *HTTPBuildAgent) Execute(ctx context.Context, job domain.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("post job to agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("agent returned status %d", resp.StatusCode)
	}
	return nil
}
