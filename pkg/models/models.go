// Package models defines the shared data types exchanged between the gateway,
// its admission layer, and the real-time fan-out.
package models

import "time"

// Role is the platform role carried in the auth token. Roles scale the base
// request quota of every rate-limit preset.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleDeveloper Role = "DEVELOPER"
	RoleTester    Role = "TESTER"
	RoleViewer    Role = "VIEWER"
)

// RateLimitInfo is a point-in-time usage snapshot for one limiting key.
type RateLimitInfo struct {
	Limit     int           `json:"limit"`
	Current   int64         `json:"current"`
	Remaining int           `json:"remaining"`
	ResetAt   time.Time     `json:"reset_at"`
	Window    time.Duration `json:"window"`
}

// Pipeline represents a CI/CD pipeline definition.
type Pipeline struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Repo      string    `json:"repo"`
	Branch    string    `json:"branch"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PipelineRun is a single execution of a pipeline.
type PipelineRun struct {
	ID         string     `json:"id"`
	PipelineID string     `json:"pipeline_id"`
	Number     int        `json:"number"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TestRun is an execution of a test suite, usually attached to a pipeline run.
type TestRun struct {
	ID        string    `json:"id"`
	SuiteName string    `json:"suite_name"`
	Status    string    `json:"status"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"started_at"`
}

// Deployment is a release of a service to an environment.
type Deployment struct {
	ID          string    `json:"id"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Version     string    `json:"version"`
	Status      string    `json:"status"`
	DeployedAt  time.Time `json:"deployed_at"`
}
