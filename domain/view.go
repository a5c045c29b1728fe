package domain

import "time"

// View types mirror the aggregate with user references resolved to
// {id, email} projections. They are what reads return over the wire.

type CommentView struct {
	ID        string    `json:"id"`
	Author    UserRef   `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type TaskView struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
	Priority    Priority      `json:"priority"`
	TaskID      string        `json:"taskId"`
	Status      Status        `json:"status"`
	Assignees   []UserRef     `json:"assignees"`
	Comments    []CommentView `json:"comments"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type ListView struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Tasks []TaskView `json:"tasks"`
}

type BoardView struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	GitHubRepo string     `json:"githubRepo,omitempty"`
	Owner      UserRef    `json:"owner"`
	Members    []UserRef  `json:"members"`
	Background string     `json:"background"`
	Lists      []ListView `json:"lists"`
	CreatedAt  time.Time  `json:"createdAt"`
}
