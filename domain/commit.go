package domain

// Commit is one commit record returned by the source-control host.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

// CommitMatch records a task auto-completed by commit reconciliation.
type CommitMatch struct {
	TaskID    string `json:"taskId"`
	CommitSHA string `json:"commit"`
}
