package domain

import "time"

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status tracks where a task sits in its lifecycle.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In-Progress"
	StatusCompleted  Status = "Completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// DefaultBackground is applied to boards created without an explicit one.
const DefaultBackground = "#f0f0f0"

// Comment is a member's note on a task. The author is referenced by ID;
// reads resolve it to an email projection.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is a single card embedded in a list. TaskID is the human-readable
// token matched against commit messages, distinct from the primary ID.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    Priority   `json:"priority"`
	TaskID      string     `json:"taskId"`
	Status      Status     `json:"status"`
	AssigneeIDs []string   `json:"assignees"`
	Comments    []Comment  `json:"comments"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// List is an ordered column of tasks. Lists exist only inside a board.
type List struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// Board is the aggregate root. It embeds its lists and their tasks and is
// persisted and mutated as one unit. The owner is immutable after creation
// and always present in MemberIDs.
type Board struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	GitHubRepo string    `json:"githubRepo,omitempty"`
	OwnerID    string    `json:"owner"`
	MemberIDs  []string  `json:"members"`
	Background string    `json:"background"`
	Lists      []List    `json:"lists"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HasMember reports whether userID is in the board's member set.
func (b *Board) HasMember(userID string) bool {
	for _, id := range b.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// FindList returns a pointer into the board's list slice, or nil.
func (b *Board) FindList(listID string) *List {
	for i := range b.Lists {
		if b.Lists[i].ID == listID {
			return &b.Lists[i]
		}
	}
	return nil
}

// FindTask returns a pointer into the list's task slice, or nil.
func (l *List) FindTask(taskID string) *Task {
	for i := range l.Tasks {
		if l.Tasks[i].ID == taskID {
			return &l.Tasks[i]
		}
	}
	return nil
}

// TaskCount is the total number of tasks across all lists.
func (b *Board) TaskCount() int {
	n := 0
	for i := range b.Lists {
		n += len(b.Lists[i].Tasks)
	}
	return n
}
