package board

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// TaskCreate carries caller-supplied fields for a new task. Status is always
// forced to Pending; assignees must already be board members.
type TaskCreate struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    domain.Priority
	Assignees   []string
}

// TaskUpdate is a partial task update. Title is mandatory and always
// replaces. For the optional fields nil keeps the current value; a non-nil
// zero clears it (empty description, ClearDueDate). Status accepts any valid
// value, including backward transitions.
type TaskUpdate struct {
	Title        string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Priority     *domain.Priority
	Status       *domain.Status
	Assignees    *[]string
}

// CreateList appends an empty list to the board.
func (e *Engine) CreateList(ctx context.Context, principal, boardID, title string) (*domain.List, error) {
	if strings.TrimSpace(title) == "" {
		return nil, invalidf("list title is required")
	}
	var created domain.List
	_, err := e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleMember); err != nil {
			return err
		}
		created = domain.List{ID: uuid.NewString(), Title: title, Tasks: []domain.Task{}}
		cur.Lists = append(cur.Lists, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteList removes the list and every task it holds. Deleting a list that
// does not exist is NotFound; callers should not have to guess whether a
// silent no-op hid a stale identifier.
func (e *Engine) DeleteList(ctx context.Context, principal, boardID, listID string) error {
	_, err := e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleMember); err != nil {
			return err
		}
		for i := range cur.Lists {
			if cur.Lists[i].ID == listID {
				cur.Lists = append(cur.Lists[:i], cur.Lists[i+1:]...)
				return nil
			}
		}
		return notFoundf("list %s", listID)
	})
	return err
}

// CreateTask appends a task to the list with a fresh board-unique commit
// token and Pending status.
func (e *Engine) CreateTask(ctx context.Context, principal, boardID, listID string, in TaskCreate) (*domain.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalidf("task title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityLow
	}
	if !priority.Valid() {
		return nil, invalidf("unknown priority %q", priority)
	}
	var created domain.Task
	_, err := e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleMember); err != nil {
			return err
		}
		list := cur.FindList(listID)
		if list == nil {
			return notFoundf("list %s", listID)
		}
		if err := validateAssignees(cur, in.Assignees); err != nil {
			return err
		}
		token, err := uniqueTaskToken(cur)
		if err != nil {
			return err
		}
		created = domain.Task{
			ID:          uuid.NewString(),
			Title:       in.Title,
			Description: in.Description,
			DueDate:     in.DueDate,
			Priority:    priority,
			TaskID:      token,
			Status:      domain.StatusPending,
			AssigneeIDs: append([]string{}, in.Assignees...),
			Comments:    []domain.Comment{},
			CreatedAt:   e.now().UTC(),
		}
		list.Tasks = append(list.Tasks, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(log.Fields{"board": boardID, "list": listID, "task": created.ID}).Debug("task created")
	return &created, nil
}

// UpdateTask applies a partial update to the task's mutable fields.
func (e *Engine) UpdateTask(ctx context.Context, principal, boardID, listID, taskID string, in TaskUpdate) (*domain.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalidf("task title is required")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, invalidf("unknown priority %q", *in.Priority)
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, invalidf("unknown status %q", *in.Status)
	}
	var updated domain.Task
	_, err := e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleMember); err != nil {
			return err
		}
		list := cur.FindList(listID)
		if list == nil {
			return notFoundf("list %s", listID)
		}
		task := list.FindTask(taskID)
		if task == nil {
			return notFoundf("task %s", taskID)
		}
		task.Title = in.Title
		if in.Description != nil {
			task.Description = *in.Description
		}
		if in.ClearDueDate {
			task.DueDate = nil
		} else if in.DueDate != nil {
			task.DueDate = in.DueDate
		}
		if in.Priority != nil {
			task.Priority = *in.Priority
		}
		if in.Status != nil {
			task.Status = *in.Status
		}
		if in.Assignees != nil {
			if err := validateAssignees(cur, *in.Assignees); err != nil {
				return err
			}
			task.AssigneeIDs = append([]string{}, *in.Assignees...)
		}
		updated = *task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTask removes the task from its list. Absent task or list is NotFound,
// matching DeleteList.
func (e *Engine) DeleteTask(ctx context.Context, principal, boardID, listID, taskID string) error {
	_, err := e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleMember); err != nil {
			return err
		}
		list := cur.FindList(listID)
		if list == nil {
			return notFoundf("list %s", listID)
		}
		for i := range list.Tasks {
			if list.Tasks[i].ID == taskID {
				list.Tasks = append(list.Tasks[:i], list.Tasks[i+1:]...)
				return nil
			}
		}
		return notFoundf("task %s", taskID)
	})
	return err
}

// AssignMember adds a board member to the task's assignee set. Assigning an
// already-assigned user is a no-op success.
func (e *Engine) AssignMember(ctx context.Context, principal, boardID, listID, taskID, userID string) (*domain.Task, error) {
	if userID == "" {
		return nil, invalidf("user id is required")
	}
	var updated domain.Task
	_, err := e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleMember); err != nil {
			return err
		}
		if !cur.HasMember(userID) {
			return invalidf("user %s is not a board member", userID)
		}
		list := cur.FindList(listID)
		if list == nil {
			return notFoundf("list %s", listID)
		}
		task := list.FindTask(taskID)
		if task == nil {
			return notFoundf("task %s", taskID)
		}
		assigned := false
		for _, id := range task.AssigneeIDs {
			if id == userID {
				assigned = true
				break
			}
		}
		if !assigned {
			task.AssigneeIDs = append(task.AssigneeIDs, userID)
		}
		updated = *task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AddComment appends a comment authored by the principal.
func (e *Engine) AddComment(ctx context.Context, principal, boardID, listID, taskID, text string) (*domain.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalidf("comment text is required")
	}
	var updated domain.Task
	_, err := e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleMember); err != nil {
			return err
		}
		list := cur.FindList(listID)
		if list == nil {
			return notFoundf("list %s", listID)
		}
		task := list.FindTask(taskID)
		if task == nil {
			return notFoundf("task %s", taskID)
		}
		task.Comments = append(task.Comments, domain.Comment{
			ID:        uuid.NewString(),
			AuthorID:  principal,
			Text:      text,
			CreatedAt: e.now().UTC(),
		})
		updated = *task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// MoveTask relocates a task to the end of the destination list. The
// operation is addressed by task identifier alone: the owning board is
// located globally, then remove and append happen inside one save so the
// task can never end up in both lists or neither.
func (e *Engine) MoveTask(ctx context.Context, principal, taskID, destListID string) error {
	if destListID == "" {
		return invalidf("destination list id is required")
	}
	owning, err := e.repo.FindByTask(ctx, taskID)
	if err != nil {
		return err
	}
	_, err = e.repo.Update(ctx, owning.ID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleMember); err != nil {
			return err
		}
		// Relocate within the freshly loaded copy: a concurrent writer may
		// have moved or deleted the task since the global lookup.
		var src *domain.List
		var idx int
		for i := range cur.Lists {
			for j := range cur.Lists[i].Tasks {
				if cur.Lists[i].Tasks[j].ID == taskID {
					src = &cur.Lists[i]
					idx = j
				}
			}
		}
		if src == nil {
			return notFoundf("task %s", taskID)
		}
		dest := cur.FindList(destListID)
		if dest == nil {
			return notFoundf("destination list %s", destListID)
		}
		task := src.Tasks[idx]
		src.Tasks = append(src.Tasks[:idx], src.Tasks[idx+1:]...)
		dest.Tasks = append(dest.Tasks, task)
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.WithFields(log.Fields{"board": owning.ID, "task": taskID, "dest": destListID}).Debug("task moved")
	return nil
}

func validateAssignees(b *domain.Board, assignees []string) error {
	for _, id := range assignees {
		if !b.HasMember(id) {
			return invalidf("assignee %s is not a board member", id)
		}
	}
	return nil
}
