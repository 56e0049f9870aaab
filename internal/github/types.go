package github

import "time"

// Account identifies a GitHub user or organisation.
type Account struct {
	Login string `json:"login"`
	Type  string `json:"type,omitempty"`
}

// Installation describes one installed tenant of the app.
type Installation struct {
	ID      int64   `json:"id"`
	Account Account `json:"account"`
}

// Repository is the subset of repository fields the service reads.
type Repository struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	FullName string  `json:"full_name"`
	Private  bool    `json:"private"`
	Owner    Account `json:"owner"`
}

// WorkflowRun is an ephemeral DTO; runs are fetched per request and
// never cached or persisted.
type WorkflowRun struct {
	ID            int64     `json:"id"`
	HeadBranch    string    `json:"head_branch"`
	Event         string    `json:"event"`
	Status        string    `json:"status"`
	Conclusion    string    `json:"conclusion"`
	CheckSuiteURL string    `json:"check_suite_url"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Artifact is an ephemeral DTO describing one uploaded build artifact.
type Artifact struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	SizeInBytes int64     `json:"size_in_bytes"`
	Expired     bool      `json:"expired"`
	CreatedAt   time.Time `json:"created_at"`
}

// Paginated Actions endpoints wrap their items in a total_count envelope.
type installationsPage struct {
	TotalCount    int            `json:"total_count"`
	Installations []Installation `json:"installations"`
}

type repositoriesPage struct {
	TotalCount   int          `json:"total_count"`
	Repositories []Repository `json:"repositories"`
}

type workflowRunsPage struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

type artifactsPage struct {
	TotalCount int        `json:"total_count"`
	Artifacts  []Artifact `json:"artifacts"`
}

type accessTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
