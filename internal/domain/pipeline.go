package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PipelineStatus represents the aggregate state of a pipeline. It is a pure
// function of the constituent job statuses and is never set independently.
type PipelineStatus string

const (
	PipelineStatusRunning PipelineStatus = "running"
	PipelineStatusSuccess PipelineStatus = "success"
	PipelineStatusFailed  PipelineStatus = "failed"
)

// Terminal reports whether the pipeline can no longer change.
func (s PipelineStatus) Terminal() bool {
	return s == PipelineStatusSuccess || s == PipelineStatusFailed
}

// Edge is a directed dependency: Up must build successfully before Down.
// Depending on context the endpoints are repository names or job ids.
type Edge struct {
	Up   string `json:"up"`
	Down string `json:"down"`
}

// EdgeList is a JSONB-persisted slice of edges.
type EdgeList []Edge

func (l EdgeList) Value() (driver.Value, error) {
	if l == nil {
		l = EdgeList{}
	}
	return json.Marshal(l)
}

func (l *EdgeList) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan EdgeList: unexpected type %T", src)
	}
	return json.Unmarshal(b, l)
}

// StringList is a JSONB-persisted slice of strings.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan StringList: unexpected type %T", src)
	}
	return json.Unmarshal(b, l)
}

// Pipeline is the set of jobs and inter-job dependencies created in response
// to one build request: the requested repository plus all of its downstream
// dependents. Created atomically with its jobs, terminal once success or
// failed.
type Pipeline struct {
	ID           string         `json:"id" db:"id"`
	UserID       int64          `json:"user_id" db:"user_id"`
	Status       PipelineStatus `json:"status" db:"status"`
	Jobs         StringList     `json:"jobs" db:"jobs"`
	Dependencies EdgeList       `json:"dependencies" db:"dependencies"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty" db:"finished_at"`
}
